package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/cmdpool/internal/app/runs"
	"github.com/slok/cmdpool/internal/printer"
)

type RunsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit  int
	format string
}

// NewRunsCommand returns the runs command.
func NewRunsCommand(rootCmd *RootCommand, app *kingpin.Application) *RunsCommand {
	c := &RunsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("runs", "List archived pool runs, most recent first.")
	c.Cmd.Flag("limit", "Max number of runs.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RunsCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsCommand) Run(ctx context.Context) error {
	repo, closeRepo, err := c.rootCmd.openArchive(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := runs.NewService(runs.ServiceConfig{Repository: repo, Logger: c.rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	rs, err := svc.Run(ctx, runs.Request{Limit: c.limit})
	if err != nil {
		return err
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintRunList(rs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}
