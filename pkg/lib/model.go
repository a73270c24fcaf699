package lib

import (
	"errors"
	"time"

	"github.com/slok/cmdpool/internal/model"
)

var (
	// ErrNotFound is returned when a task does not exist, or when its output is
	// requested before it finished.
	ErrNotFound = errors.New("not found")
	// ErrTaskFailed is returned when the output of a task whose process could not
	// be spawned is requested.
	ErrTaskFailed = errors.New("task failed")
	// ErrNotValid is returned on invalid input or configuration.
	ErrNotValid = errors.New("not valid")
	// ErrClosed is returned when waiting on a pool whose workers are stopped while
	// tasks are still queued or running.
	ErrClosed = errors.New("pool closed")
)

// RunnerType identifies where the commands are executed.
type RunnerType string

const (
	// RunnerLocal executes the commands as child processes.
	RunnerLocal RunnerType = "local"
	// RunnerDocker executes the commands inside a running container.
	RunnerDocker RunnerType = "docker"
	// RunnerFake simulates a few commands without spawning processes.
	RunnerFake RunnerType = "fake"
)

// TaskID identifies a task inside a pool. IDs are sequential starting at 1.
type TaskID uint64

// TaskStatus represents the lifecycle state of a task.
//
//	In Queue -> Running -> Finished
//	                    -> Failed (the process could not be spawned)
type TaskStatus string

const (
	TaskStatusQueued   TaskStatus = TaskStatus(model.TaskStatusQueued)
	TaskStatusRunning  TaskStatus = TaskStatus(model.TaskStatusRunning)
	TaskStatusFinished TaskStatus = TaskStatus(model.TaskStatusFinished)
	TaskStatusFailed   TaskStatus = TaskStatus(model.TaskStatusFailed)
)

// Task is a read-only snapshot of a task at the time of the call.
type Task struct {
	ID      TaskID
	RunID   string
	Command string
	Status  TaskStatus
	// StartedAt is zero while the task is queued.
	StartedAt  time.Time
	FinishedAt *time.Time
	// Output is set on finished tasks.
	Output *Output
	// Error is the spawn error of failed tasks.
	Error string
}

// Duration returns the time the task has been running, or took to complete.
func (t Task) Duration() time.Duration {
	switch {
	case t.StartedAt.IsZero():
		return 0
	case t.FinishedAt != nil:
		return t.FinishedAt.Sub(t.StartedAt)
	default:
		return time.Since(t.StartedAt)
	}
}

// Output is the captured result of a finished process.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Truncated is set when part of the output was dropped because of
	// [Config].MaxOutputBytes.
	Truncated bool
}

func fromInternalTask(t model.Task) Task {
	task := Task{
		ID:         TaskID(t.ID),
		RunID:      t.RunID,
		Command:    t.Command,
		Status:     TaskStatus(t.Status),
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Error:      t.Error,
	}
	if t.Output != nil {
		out := fromInternalOutput(*t.Output)
		task.Output = &out
	}
	return task
}

func fromInternalTaskList(ts []model.Task) []Task {
	result := make([]Task, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTask(t)
	}
	return result
}

func fromInternalOutput(o model.Output) Output {
	c := o.Copy()
	return Output{
		ExitCode:  c.ExitCode,
		Stdout:    c.Stdout,
		Stderr:    c.Stderr,
		Truncated: c.Truncated,
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrTaskFailed):
		return joinErrors(err, ErrTaskFailed)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
