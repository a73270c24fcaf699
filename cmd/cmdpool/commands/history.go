package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/cmdpool/internal/history"
	"github.com/slok/cmdpool/internal/printer"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "Show the submitted commands history.")
	c.Cmd.Flag("limit", "Show only the last N commands (0 for all).").Default("0").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	h, err := history.NewFile(history.FileConfig{Path: cfg.History.Path, Logger: c.rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create history: %w", err)
	}

	commands, err := h.Load(c.limit)
	if err != nil {
		return fmt.Errorf("could not load history: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintHistory(commands); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
