package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

type taskKey struct {
	runID string
	id    model.TaskID
}

// Repository is an in-memory implementation of storage.TaskRepository.
type Repository struct {
	tasks  map[taskKey]model.Task
	order  []taskKey
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[taskKey]model.Task),
		logger: cfg.Logger,
	}, nil
}

var _ storage.TaskRepository = &Repository{}

// SaveTask stores a terminal task.
func (r *Repository) SaveTask(ctx context.Context, t model.Task) error {
	if !t.Status.Terminal() {
		return fmt.Errorf("task %d is not terminal (status: %s): %w", t.ID, t.Status, model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey{runID: t.RunID, id: t.ID}
	if _, ok := r.tasks[key]; ok {
		return fmt.Errorf("task %s/%d: %w", t.RunID, t.ID, model.ErrAlreadyExists)
	}

	r.tasks[key] = t
	r.order = append(r.order, key)
	r.logger.Debugf("Saved task in repository: %s/%d", t.RunID, t.ID)

	return nil
}

// GetTask retrieves a task by run and task ID.
func (r *Repository) GetTask(ctx context.Context, runID string, id model.TaskID) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[taskKey{runID: runID, id: id}]
	if !ok {
		return nil, fmt.Errorf("task %s/%d: %w", runID, id, model.ErrNotFound)
	}

	// Return a copy
	taskCopy := t
	return &taskCopy, nil
}

// ListTasks returns the tasks matching the options, most recently saved first.
func (r *Repository) ListTasks(ctx context.Context, opts storage.ListTasksOpts) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []model.Task{}
	for i := len(r.order) - 1; i >= 0; i-- {
		t := r.tasks[r.order[i]]
		if opts.RunID != "" && t.RunID != opts.RunID {
			continue
		}
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}

		tasks = append(tasks, t)
		if opts.Limit > 0 && len(tasks) >= opts.Limit {
			break
		}
	}

	return tasks, nil
}

// ListRuns returns a summary of every archived run ordered by run ID, newest first.
func (r *Repository) ListRuns(ctx context.Context) ([]storage.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := map[string]*storage.Run{}
	for _, t := range r.tasks {
		run, ok := runs[t.RunID]
		if !ok {
			run = &storage.Run{ID: t.RunID}
			runs[t.RunID] = run
		}
		run.Tasks++
		switch t.Status {
		case model.TaskStatusFinished:
			run.Finished++
		case model.TaskStatusFailed:
			run.Failed++
		}
	}

	res := make([]storage.Run, 0, len(runs))
	for _, run := range runs {
		res = append(res, *run)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })

	return res, nil
}
