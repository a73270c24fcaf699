package list

import (
	"context"
	"fmt"
	"sort"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/task"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	// Store is the live task store, when set the tasks of the current run are
	// listed from it.
	Store *task.Store
	// Repository is the task archive, used for past runs.
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil && c.Repository == nil {
		return fmt.Errorf("store or repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})

	return nil
}

// Service lists tasks with optional filtering.
type Service struct {
	store  *task.Store
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		store:  cfg.Store,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// StatusFilter is an optional filter to only show tasks with this status.
	StatusFilter *model.TaskStatus
	// RunID selects the run, the live one (if any) when empty.
	RunID string
	// Limit is the max number of tasks returned, unlimited if 0.
	Limit int
}

// Run lists the tasks. Live tasks are ordered by ID and come from a single store
// snapshot so the same task never shows up twice. Archived tasks keep the
// repository order, most recently finished first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Task, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	if s.store != nil && (req.RunID == "" || req.RunID == s.store.RunID()) {
		return s.listLive(req), nil
	}

	if s.repo == nil {
		return nil, fmt.Errorf("run %q: %w", req.RunID, model.ErrNotFound)
	}

	tasks, err := s.repo.ListTasks(ctx, storage.ListTasksOpts{
		RunID:  req.RunID,
		Status: req.StatusFilter,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	s.logger.Debugf("Found %d archived tasks", len(tasks))
	return tasks, nil
}

func (s *Service) listLive(req Request) []model.Task {
	snap := s.store.Snapshot()

	var tasks []model.Task
	for _, ts := range [][]model.Task{snap.Queued, snap.Running, snap.Finished, snap.Failed} {
		for _, t := range ts {
			if req.StatusFilter != nil && t.Status != *req.StatusFilter {
				continue
			}
			tasks = append(tasks, t)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	if req.Limit > 0 && len(tasks) > req.Limit {
		tasks = tasks[:req.Limit]
	}

	s.logger.Debugf("Found %d live tasks", len(tasks))
	return tasks
}
