package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/slok/cmdpool/internal/command"
	"github.com/slok/cmdpool/internal/model"
)

// Runner knows how to execute a command to completion and capture its output.
//
// A process that was started and exited (whatever the exit code) is a successful
// run. Implementations must wrap model.ErrSpawn when the process couldn't be started.
// Once started, a process is never cancelled.
type Runner interface {
	Run(ctx context.Context, spec command.Spec) (*model.Output, error)
}

//go:generate mockery --case underscore --output runnermock --outpkg runnermock --name Runner --structname MockRunner

// RunnerFunc is a helper to create runners from functions.
type RunnerFunc func(ctx context.Context, spec command.Spec) (*model.Output, error)

func (r RunnerFunc) Run(ctx context.Context, spec command.Spec) (*model.Output, error) {
	return r(ctx, spec)
}

// Capture starts cmd, waits for it and returns its captured output. Each stream
// keeps at most limit bytes (0 or less means unbounded).
func Capture(cmd *exec.Cmd, limit int64) (*model.Output, error) {
	stdout := NewLimitedBuffer(limit)
	stderr := NewLimitedBuffer(limit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSpawn, err)
	}

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("could not wait for process: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &model.Output{
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}, nil
}

// LimitedBuffer is an io.Writer that keeps the first limit bytes written to it and
// discards the rest. Writes never fail so the process pipes are always drained.
type LimitedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

// NewLimitedBuffer returns a new buffer, limit <= 0 means unbounded.
func NewLimitedBuffer(limit int64) *LimitedBuffer {
	return &LimitedBuffer{limit: limit}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}

	remaining := b.limit - int64(b.buf.Len())
	switch {
	case remaining <= 0:
		if len(p) > 0 {
			b.truncated = true
		}
	case int64(len(p)) > remaining:
		b.buf.Write(p[:remaining])
		b.truncated = true
	default:
		b.buf.Write(p)
	}

	return len(p), nil
}

// Bytes returns a copy of the kept bytes.
func (b *LimitedBuffer) Bytes() []byte {
	return append([]byte{}, b.buf.Bytes()...)
}

// Truncated returns true if any byte was discarded.
func (b *LimitedBuffer) Truncated() bool { return b.truncated }
