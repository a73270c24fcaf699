package runs

import (
	"context"
	"fmt"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/storage"
)

// ServiceConfig is the configuration for the runs service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Runs"})
	return nil
}

// Service lists the archived pool runs.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new runs service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{repo: cfg.Repository, logger: cfg.Logger}, nil
}

// Request represents the runs request parameters.
type Request struct {
	// Limit is the max number of runs returned, most recent first. Unlimited if 0.
	Limit int
}

// Run lists the archived runs.
func (s *Service) Run(ctx context.Context, req Request) ([]storage.Run, error) {
	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	s.logger.Debugf("Found %d runs", len(runs))
	return runs, nil
}
