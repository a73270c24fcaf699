package output

import (
	"context"
	"fmt"

	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/task"
)

// ServiceConfig is the configuration for the output service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Output"})

	return nil
}

// Service fetches the captured output of finished tasks.
type Service struct {
	store  *task.Store
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new output service.
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

// Request represents the output request parameters.
type Request struct {
	RunID string
	ID    model.TaskID
}

// Run returns a copy of the task output. The task is not consumed so it can be
// fetched any number of times.
//
// Returns model.ErrNotFound when the task is unknown or still not finished and
// model.ErrTaskFailed when its process could not be spawned.
func (s *Service) Run(ctx context.Context, req Request) (*model.Output, error) {
	if s.store != nil && (req.RunID == "" || req.RunID == s.store.RunID()) {
		if t, ok := s.store.Finished().Get(req.ID); ok && t.Output != nil {
			out := t.Output.Copy()
			return &out, nil
		}
	}

	t, err := show.Find(ctx, s.store, s.repo, req.RunID, req.ID)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case model.TaskStatusFinished:
		if t.Output == nil {
			return &model.Output{}, nil
		}
		out := t.Output.Copy()
		return &out, nil
	case model.TaskStatusFailed:
		return nil, fmt.Errorf("task %d: %w: %s", t.ID, model.ErrTaskFailed, t.Error)
	default:
		s.logger.Debugf("Task %d has no output yet, status: %s", t.ID, t.Status)
		return nil, fmt.Errorf("output of task %d: %w", t.ID, model.ErrNotFound)
	}
}
