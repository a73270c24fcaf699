package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/cmdpool/internal/api"
	"github.com/slok/cmdpool/internal/model"
)

type TokenCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	subject     string
	ttl         time.Duration
	tokenSecret string
}

// NewTokenCommand returns the token command.
func NewTokenCommand(rootCmd *RootCommand, app *kingpin.Application) *TokenCommand {
	c := &TokenCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("token", "Create a bearer token for the HTTP API.")
	c.Cmd.Arg("subject", "Who the token is for, it's logged on every submit.").Required().StringVar(&c.subject)
	c.Cmd.Flag("ttl", "Token lifetime (0 never expires).").Default("24h").DurationVar(&c.ttl)
	c.Cmd.Flag("token-secret", "Secret used by the API (overrides config).").StringVar(&c.tokenSecret)

	return c
}

func (c TokenCommand) Name() string { return c.Cmd.FullCommand() }

func (c TokenCommand) Run(ctx context.Context) error {
	secret := c.tokenSecret
	if secret == "" {
		cfg, err := c.rootCmd.LoadConfig(ctx)
		if err != nil {
			return err
		}
		secret = cfg.API.TokenSecret
	}
	if secret == "" {
		return fmt.Errorf("a token secret is required (--token-secret or api.token_secret): %w", model.ErrNotValid)
	}

	token, err := api.NewToken([]byte(secret), c.subject, c.ttl, time.Now())
	if err != nil {
		return fmt.Errorf("could not create token: %w", err)
	}

	fmt.Fprintln(c.rootCmd.Stdout, token)
	return nil
}
