package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/cmdpool/internal/app/list"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/printer"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID        string
	statusFilter string
	limit        int
	format       string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List archived tasks, most recent first.")
	c.Cmd.Flag("run", "Only tasks of this run.").StringVar(&c.runID)
	c.Cmd.Flag("status", "Filter by status (finished, failed).").EnumVar(&c.statusFilter, model.TaskStatusNames...)
	c.Cmd.Flag("limit", "Max number of tasks.").Default("50").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var statusFilter *model.TaskStatus
	if c.statusFilter != "" {
		status, err := model.ParseTaskStatus(c.statusFilter)
		if err != nil {
			return err
		}
		statusFilter = &status
	}

	repo, closeRepo, err := c.rootCmd.openArchive(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.Run(ctx, list.Request{
		StatusFilter: statusFilter,
		RunID:        c.runID,
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
