package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaskID identifies a submitted task inside a pool run. IDs are assigned
// sequentially by the submitter and never reused.
type TaskID uint64

func (id TaskID) String() string { return strconv.FormatUint(uint64(id), 10) }

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusQueued   TaskStatus = "In Queue"
	TaskStatusRunning  TaskStatus = "Running"
	TaskStatusFinished TaskStatus = "Finished"
	// TaskStatusFailed is set on tasks whose process could not be spawned.
	TaskStatusFailed TaskStatus = "Failed"
)

// Terminal returns true when the status will not change anymore.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusFinished || s == TaskStatusFailed
}

var taskStatusByName = map[string]TaskStatus{
	"queued":   TaskStatusQueued,
	"running":  TaskStatusRunning,
	"finished": TaskStatusFinished,
	"failed":   TaskStatusFailed,
}

// TaskStatusNames are the short names accepted by ParseTaskStatus.
var TaskStatusNames = []string{"queued", "running", "finished", "failed"}

// ParseTaskStatus returns the status of a short name (queued, running, finished,
// failed), case insensitive.
func ParseTaskStatus(name string) (TaskStatus, error) {
	s, ok := taskStatusByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown task status %q: %w", name, ErrNotValid)
	}
	return s, nil
}

// Task is the record of one submitted command and its lifecycle.
type Task struct {
	ID TaskID
	// RunID identifies the pool process instance that executed the task.
	RunID   string
	Command string
	Status  TaskStatus
	// StartedAt is stamped when a worker claims the task, zero while queued.
	StartedAt  time.Time
	FinishedAt *time.Time
	Output     *Output
	// Error is the spawn error message of failed tasks.
	Error string
}

// Duration returns the execution time of a terminal task, or the elapsed time
// since start for a running one.
func (t Task) Duration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.FinishedAt == nil {
		return time.Since(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Output is the captured result of a process that ran to completion.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Truncated is set when the capture limit dropped part of stdout or stderr.
	Truncated bool
}

// Success returns true if the process exited with a zero exit code.
func (o Output) Success() bool { return o.ExitCode == 0 }

// Copy returns a deep copy of the output.
func (o Output) Copy() Output {
	c := o
	c.Stdout = append([]byte(nil), o.Stdout...)
	c.Stderr = append([]byte(nil), o.Stderr...)
	return c
}
