package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/slok/cmdpool/internal/command"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/runner"
	utilsenv "github.com/slok/cmdpool/internal/utils/env"
)

// RunnerConfig is the configuration for the local runner.
type RunnerConfig struct {
	// Env are extra environment variables set on top of the current process environment.
	Env map[string]string
	// WorkingDir is the directory commands run in, the current one if empty.
	WorkingDir string
	// MaxOutputBytes limits the captured bytes per stream, 0 means unbounded.
	MaxOutputBytes int64
	Logger         log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("max output bytes can't be negative: %w", model.ErrNotValid)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Local"})
	return nil
}

// Runner executes commands as child processes of the current process.
type Runner struct {
	env        []string
	workingDir string
	maxOutput  int64
	logger     log.Logger
}

// NewRunner creates a new local runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		env:        utilsenv.List(cfg.Env),
		workingDir: cfg.WorkingDir,
		maxOutput:  cfg.MaxOutputBytes,
		logger:     cfg.Logger,
	}, nil
}

var _ runner.Runner = &Runner{}

// Run spawns the command and blocks until it exits. The process is not tied to
// the context, once started it runs to completion.
func (r *Runner) Run(ctx context.Context, spec command.Spec) (*model.Output, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = r.workingDir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	r.logger.Debugf("Spawning process: %q", spec.Argv())
	out, err := runner.Capture(cmd, r.maxOutput)
	if err != nil {
		return nil, err
	}
	r.logger.Debugf("Process %q exited with code %d", spec.Program, out.ExitCode)

	return out, nil
}
