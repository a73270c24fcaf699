package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/task"
)

const (
	// DefaultSize is the default number of workers.
	DefaultSize = 10
	// DefaultPollInterval is the default time an idle worker waits before checking the queue again.
	DefaultPollInterval = 10 * time.Millisecond
)

// Executor executes a task already claimed in the running-set.
type Executor interface {
	Execute(ctx context.Context, t model.Task)
}

// PoolConfig is the configuration for the worker pool.
type PoolConfig struct {
	Store    *task.Store
	Executor Executor
	// Size is the fixed number of workers.
	Size int
	// PollInterval is the time an idle worker waits for work before checking the queue again.
	PollInterval time.Duration
	Logger       log.Logger
}

func (c *PoolConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.Size < 0 {
		return fmt.Errorf("size must be positive, got: %d", c.Size)
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must be positive, got: %s", c.PollInterval)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "worker.Pool"})
	return nil
}

// Pool is a fixed size set of workers draining the store pending queue.
type Pool struct {
	store        *task.Store
	executor     Executor
	size         int
	pollInterval time.Duration
	logger       log.Logger
}

// NewPool creates a new worker pool.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pool{
		store:        cfg.Store,
		executor:     cfg.Executor,
		size:         cfg.Size,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Size returns the number of workers of the pool.
func (p *Pool) Size() int { return p.size }

// Run starts the workers and blocks until the context is cancelled and every
// worker has returned. Workers finish the task they are executing before returning.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Infof("Starting %d workers", p.size)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i + 1)
	}
	wg.Wait()

	p.logger.Infof("All workers stopped")
	return nil
}

func (p *Pool) work(ctx context.Context, id int) {
	logger := p.logger.WithValues(log.Kv{"worker": id})
	ctx = logger.SetValuesOnCtx(ctx, log.Kv{"worker": id})
	logger.Debugf("Worker started")

	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			logger.Debugf("Worker stopped")
			return
		}

		t, ok := p.store.Claim()
		if ok {
			logger.Debugf("Executing task %d: %q", t.ID, t.Command)
			p.executor.Execute(ctx, t)
			continue
		}

		// Nothing to do, wait for the next poll or a new task.
		timer.Reset(p.pollInterval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		case <-p.store.Wait():
		}
	}
}

// WaitIdle blocks until the store has no queued nor running tasks or the context
// is cancelled.
func (p *Pool) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if p.store.Idle() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExecutorFunc is a helper to create executors from functions.
type ExecutorFunc func(ctx context.Context, t model.Task)

func (e ExecutorFunc) Execute(ctx context.Context, t model.Task) { e(ctx, t) }
