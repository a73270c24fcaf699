package show

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/task"
)

// ServiceConfig is the configuration for the show service.
type ServiceConfig struct {
	Store      *task.Store
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Show"})

	return nil
}

// Service returns the details of a single task.
type Service struct {
	store  *task.Store
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new show service.
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

// Request represents the show request parameters.
type Request struct {
	// RunID is the run of the task, the live one when empty.
	RunID string
	ID    model.TaskID
}

// Run gets the task from the live store and falls back to the archive.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	return Find(ctx, s.store, s.repo, req.RunID, req.ID)
}

// Find looks for a task in the live store (when the run matches) and then in the
// archive. Either source can be nil.
func Find(ctx context.Context, store *task.Store, repo storage.TaskRepository, runID string, id model.TaskID) (*model.Task, error) {
	if store != nil && (runID == "" || runID == store.RunID()) {
		t, err := store.Get(id)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		runID = store.RunID()
	}

	if repo == nil || runID == "" {
		return nil, fmt.Errorf("task %d: %w", id, model.ErrNotFound)
	}

	t, err := repo.GetTask(ctx, runID, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return t, nil
}
