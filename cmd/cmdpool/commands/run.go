package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/cmdpool/internal/app/list"
	"github.com/slok/cmdpool/internal/app/submit"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/printer"
	utilsenv "github.com/slok/cmdpool/internal/utils/env"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	commands []string
	file     string
	workers  int
	envSpecs []string
	details  bool
	format   string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run commands concurrently and wait until all of them end.")
	c.Cmd.Arg("command", "Command lines to run (quoted), if missing they are read from --file or stdin, one per line.").StringsVar(&c.commands)
	c.Cmd.Flag("file", "File with one command per line ('-' for stdin).").Short('f').StringVar(&c.file)
	c.Cmd.Flag("workers", "Number of concurrent workers (overrides config).").Short('w').IntVar(&c.workers)
	c.Cmd.Flag("env", "Environment variable for the commands (KEY=VALUE or KEY to inherit from host). Repeatable.").StringsVar(&c.envSpecs)
	c.Cmd.Flag("details", "Print the details and output of every task.").BoolVar(&c.details)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if c.workers != 0 {
		cfg.Workers = c.workers
	}

	env, err := utilsenv.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	commands, err := c.readCommands()
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return fmt.Errorf("no commands to run: %w", model.ErrNotValid)
	}

	lp, err := c.rootCmd.newLivePool(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer lp.close()

	for _, cmd := range commands {
		if _, err := lp.submit.Run(ctx, submit.Request{Command: cmd}); err != nil {
			return fmt.Errorf("could not submit %q: %w", cmd, err)
		}
	}

	var g run.Group

	// Workers.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error { return lp.pool.Run(ctx) },
			func(_ error) { cancel() },
		)
	}

	// Wait until every task is terminal.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				if err := lp.pool.WaitIdle(ctx); err != nil {
					return fmt.Errorf("tasks not completed: %w", err)
				}
				logger.Debugf("All tasks completed")
				return nil
			},
			func(_ error) { cancel() },
		)
	}

	if err := g.Run(); err != nil {
		return err
	}

	tasks, err := lp.list.Run(ctx, list.Request{RunID: lp.store.RunID()})
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if err := c.print(tasks); err != nil {
		return err
	}

	failed := 0
	for _, t := range tasks {
		if t.Status == model.TaskStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks could not be executed: %w", failed, len(tasks), model.ErrTaskFailed)
	}

	return nil
}

func (c RunCommand) print(tasks []model.Task) error {
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if !c.details {
		if err := p.PrintTaskList(tasks); err != nil {
			return fmt.Errorf("could not print tasks: %w", err)
		}
		return nil
	}

	for i, t := range tasks {
		if i > 0 && c.format != "json" {
			fmt.Fprintln(c.rootCmd.Stdout)
		}
		if err := p.PrintTask(t); err != nil {
			return fmt.Errorf("could not print task: %w", err)
		}
	}

	return nil
}

// readCommands returns the commands from the arguments, or the file (stdin if
// no arguments nor file). Blank lines are ignored.
func (c RunCommand) readCommands() ([]string, error) {
	if len(c.commands) > 0 {
		return c.commands, nil
	}

	var r io.Reader = c.rootCmd.Stdin
	if c.file != "" && c.file != "-" {
		f, err := os.Open(c.file)
		if err != nil {
			return nil, fmt.Errorf("could not open commands file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var commands []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		commands = append(commands, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read commands: %w", err)
	}

	return commands, nil
}
