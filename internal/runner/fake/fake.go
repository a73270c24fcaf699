package fake

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slok/cmdpool/internal/command"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/runner"
)

// RunnerConfig is the configuration for the fake runner.
type RunnerConfig struct {
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Fake"})
	return nil
}

// Runner is a fake implementation of the runner.Runner interface.
// It simulates a small set of programs without spawning processes:
//
//   - echo ARGS...: prints the arguments joined by spaces and a newline.
//   - sleep DURATION: sleeps the Go duration (e.g. 10ms) or seconds.
//   - exit CODE: exits with the code.
//   - true / false: exits with 0 / 1.
//
// Any other program fails to spawn.
type Runner struct {
	mu     sync.Mutex
	calls  []command.Spec
	logger log.Logger
}

// NewRunner creates a new fake runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{logger: cfg.Logger}, nil
}

var _ runner.Runner = &Runner{}

// Run simulates the execution of the command.
func (r *Runner) Run(ctx context.Context, spec command.Spec) (*model.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	r.mu.Unlock()

	r.logger.Debugf("Faking process: %q", spec.Argv())

	switch spec.Program {
	case "echo":
		return &model.Output{Stdout: []byte(strings.Join(spec.Args, " ") + "\n"), Stderr: []byte{}}, nil
	case "true":
		return &model.Output{Stdout: []byte{}, Stderr: []byte{}}, nil
	case "false":
		return &model.Output{ExitCode: 1, Stdout: []byte{}, Stderr: []byte{}}, nil
	case "exit":
		if len(spec.Args) != 1 {
			return &model.Output{ExitCode: 2, Stdout: []byte{}, Stderr: []byte("exit: missing code\n")}, nil
		}
		code, err := strconv.Atoi(spec.Args[0])
		if err != nil {
			return &model.Output{ExitCode: 2, Stdout: []byte{}, Stderr: []byte("exit: invalid code\n")}, nil
		}
		return &model.Output{ExitCode: code, Stdout: []byte{}, Stderr: []byte{}}, nil
	case "sleep":
		if len(spec.Args) != 1 {
			return &model.Output{ExitCode: 1, Stdout: []byte{}, Stderr: []byte("sleep: missing operand\n")}, nil
		}
		d, err := parseDuration(spec.Args[0])
		if err != nil {
			return &model.Output{ExitCode: 1, Stdout: []byte{}, Stderr: []byte("sleep: invalid time interval\n")}, nil
		}
		time.Sleep(d)
		return &model.Output{Stdout: []byte{}, Stderr: []byte{}}, nil
	}

	return nil, fmt.Errorf("%w: exec: %q: executable file not found", model.ErrSpawn, spec.Program)
}

// Calls returns the commands the runner received, in call order.
func (r *Runner) Calls() []command.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]command.Spec{}, r.calls...)
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
