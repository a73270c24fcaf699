package storage

import (
	"context"

	"github.com/slok/cmdpool/internal/model"
)

// ListTasksOpts filters the archived tasks.
type ListTasksOpts struct {
	// RunID returns only the tasks of a pool run, all runs if empty.
	RunID string
	// Status returns only the tasks with the status, all statuses if nil.
	Status *model.TaskStatus
	// Limit returns at most N tasks (most recent first), unlimited if 0.
	Limit int
}

// Run is a summary of the tasks archived by one pool run.
type Run struct {
	ID       string
	Tasks    int
	Finished int
	Failed   int
}

// TaskRepository is the interface for terminal task persistence. Tasks are
// identified by their run ID and task ID.
type TaskRepository interface {
	SaveTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, runID string, id model.TaskID) (*model.Task, error)
	ListTasks(ctx context.Context, opts ListTasksOpts) ([]model.Task, error)
	ListRuns(ctx context.Context) ([]Run, error)
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository --structname MockTaskRepository
