package submit

import (
	"context"
	"fmt"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/task"
)

// History records submitted commands.
type History interface {
	Append(command string) error
	Load(limit int) ([]string, error)
}

// ServiceConfig is the configuration for the submit service.
type ServiceConfig struct {
	Store *task.Store
	// History is optional, when set it's loaded on creation and every submitted
	// command is appended to it.
	History History
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Submit"})
	return nil
}

// Service submits commands to the pool.
type Service struct {
	store   *task.Store
	history History
	logger  log.Logger
}

// NewService creates a new submit service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.History != nil {
		entries, err := cfg.History.Load(0)
		if err != nil {
			cfg.Logger.Warningf("Could not load command history: %s", err)
		} else {
			cfg.Logger.Infof("Command history loaded with %d entries", len(entries))
		}
	}

	return &Service{
		store:   cfg.Store,
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the submit request parameters.
type Request struct {
	// Command is the raw command line. It is not validated, a malformed command
	// will fail when executed.
	Command string
}

// Run allocates the next task ID and enqueues the command. It doesn't wait for the
// command to be executed.
func (s *Service) Run(ctx context.Context, req Request) (model.TaskID, error) {
	id := s.store.Submit(req.Command)
	s.logger.Debugf("Submitted task %d: %q", id, req.Command)

	if s.history != nil {
		if err := s.history.Append(req.Command); err != nil {
			s.logger.Warningf("Could not save command on history: %s", err)
		}
	}

	return id, nil
}
