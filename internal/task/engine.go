package task

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slok/cmdpool/internal/command"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/runner"
	"github.com/slok/cmdpool/internal/storage"
)

// EngineConfig is the configuration for the execution engine.
type EngineConfig struct {
	Store  *Store
	Runner runner.Runner
	// Archive receives every terminal task (optional).
	Archive storage.TaskRepository
	// DropFailed discards tasks that fail to spawn instead of recording them
	// in the failed-set. Dropped tasks never reach a terminal state.
	DropFailed bool
	// TracerProvider is used to trace every execution, the global one by default.
	TracerProvider trace.TracerProvider
	Logger         log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Engine"})
	return nil
}

// Engine executes claimed tasks and publishes their results in the store.
type Engine struct {
	store      *Store
	runner     runner.Runner
	archive    storage.TaskRepository
	dropFailed bool
	tracer     trace.Tracer
	logger     log.Logger
}

// NewEngine creates a new execution engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		store:      cfg.Store,
		runner:     cfg.Runner,
		archive:    cfg.Archive,
		dropFailed: cfg.DropFailed,
		tracer:     cfg.TracerProvider.Tracer("github.com/slok/cmdpool/internal/task"),
		logger:     cfg.Logger,
	}, nil
}

// Execute runs a task already claimed in the running-set to completion. A process
// that exits (with any exit code) moves the task to the finished-set. A process that
// can't be spawned moves it to the failed-set, or drops it if configured to.
// In every case the task leaves the running-set.
func (e *Engine) Execute(ctx context.Context, t model.Task) {
	ctx, span := e.tracer.Start(ctx, "task.Execute", trace.WithAttributes(
		attribute.String("cmdpool.run_id", t.RunID),
		attribute.Int64("cmdpool.task_id", int64(t.ID)),
		attribute.String("cmdpool.command", t.Command),
	))
	defer span.End()

	logger := e.logger.WithValues(log.Kv{"task-id": t.ID})
	spec := command.Parse(t.Command)

	out, err := e.runner.Run(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		if e.dropFailed {
			e.store.Drop(t.ID)
			logger.Warningf("Task dropped, could not execute %q: %s", t.Command, err)
			return
		}

		failed, ferr := e.store.Fail(t.ID, err)
		if ferr != nil {
			logger.Errorf("Could not mark task as failed: %s", ferr)
			return
		}
		logger.Warningf("Task failed, could not execute %q: %s", t.Command, err)
		e.save(ctx, failed)
		return
	}

	span.SetAttributes(
		attribute.Int("cmdpool.exit_code", out.ExitCode),
		attribute.Bool("cmdpool.output_truncated", out.Truncated),
	)

	finished, err := e.store.Finish(t.ID, *out)
	if err != nil {
		logger.Errorf("Could not mark task as finished: %s", err)
		return
	}
	logger.Debugf("Task finished with exit code %d in %s", out.ExitCode, finished.Duration())
	e.save(ctx, finished)
}

// save archives a terminal task. Archive errors are logged, they don't change
// the task state.
func (e *Engine) save(ctx context.Context, t model.Task) {
	if e.archive == nil {
		return
	}

	if err := e.archive.SaveTask(context.WithoutCancel(ctx), t); err != nil {
		e.logger.Errorf("Could not archive task %d: %s", t.ID, err)
	}
}
