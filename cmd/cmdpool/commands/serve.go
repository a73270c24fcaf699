package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slok/cmdpool/internal/api"
	utilsenv "github.com/slok/cmdpool/internal/utils/env"
)

const shutdownTimeout = 10 * time.Second

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listen      string
	workers     int
	envSpecs    []string
	tokenSecret string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the pool and accept commands through the HTTP API until stopped.")
	c.Cmd.Flag("listen", "Address the HTTP API listens on (overrides config).").StringVar(&c.listen)
	c.Cmd.Flag("workers", "Number of concurrent workers (overrides config).").Short('w').IntVar(&c.workers)
	c.Cmd.Flag("env", "Environment variable for the commands (KEY=VALUE or KEY to inherit from host). Repeatable.").StringsVar(&c.envSpecs)
	c.Cmd.Flag("token-secret", "Secret to require bearer tokens on the API (overrides config).").StringVar(&c.tokenSecret)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if c.workers != 0 {
		cfg.Workers = c.workers
	}
	if c.listen != "" {
		cfg.API.Listen = c.listen
	}
	if c.tokenSecret != "" {
		cfg.API.TokenSecret = c.tokenSecret
	}
	if cfg.API.TokenSecret == "" {
		logger.Warningf("API authentication is disabled, anyone reaching %s can run commands", cfg.API.Listen)
	}

	env, err := utilsenv.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	lp, err := c.rootCmd.newLivePool(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer lp.close()

	handler, err := api.NewHandler(api.HandlerConfig{
		SubmitService: lp.submit,
		ListService:   lp.list,
		ShowService:   lp.show,
		OutputService: lp.output,
		TokenSecret:   []byte(cfg.API.TokenSecret),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create API handler: %w", err)
	}

	var g run.Group

	// Workers, they stop when the command context ends and that stops the server.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return lp.pool.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	// HTTP API.
	{
		server := &http.Server{
			Addr:              cfg.API.Listen,
			Handler:           otelhttp.NewHandler(handler, "cmdpool.api"),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Add(
			func() error {
				logger.Infof("HTTP API listening on %s (run %s)", cfg.API.Listen, lp.store.RunID())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Errorf("Could not shutdown HTTP server: %s", err)
				}
			},
		)
	}

	return g.Run()
}
