package lib

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/slok/cmdpool/internal/app/output"
	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/app/submit"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/runner"
	"github.com/slok/cmdpool/internal/runner/docker"
	"github.com/slok/cmdpool/internal/runner/fake"
	"github.com/slok/cmdpool/internal/runner/local"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/storage/sqlite"
	"github.com/slok/cmdpool/internal/task"
	"github.com/slok/cmdpool/internal/worker"
)

// Config configures the pool.
//
// All fields are optional. An empty Config{} runs 10 local workers without
// archive.
type Config struct {
	// Workers is the fixed number of concurrent workers.
	// Default: 10.
	Workers int

	// PollInterval is how often idle workers check the queue. Submissions wake
	// idle workers immediately so this only bounds the worst case.
	// Default: 10ms.
	PollInterval time.Duration

	// MaxOutputBytes limits the captured bytes of each output stream.
	// Default: 0 (unlimited).
	MaxOutputBytes int64

	// DropFailed removes tasks whose process could not be spawned instead of
	// keeping them with [TaskStatusFailed].
	DropFailed bool

	// Runner selects where commands are executed.
	// Default: [RunnerLocal].
	Runner RunnerType

	// Env are environment variables set on every command, on top of the
	// current process environment for [RunnerLocal].
	Env map[string]string

	// WorkingDir is the directory commands run in.
	WorkingDir string

	// DockerContainer is the running container used by [RunnerDocker] (required
	// for that runner).
	DockerContainer string

	// ArchiveDBPath enables the SQLite archive of terminal tasks.
	ArchiveDBPath string

	// TracerProvider traces every task execution.
	// Default: the OpenTelemetry global provider.
	TracerProvider trace.TracerProvider

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers can't be negative")
	}
	if c.Runner == "" {
		c.Runner = RunnerLocal
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Pool runs submitted commands on a fixed set of workers.
//
// Create a Pool with [New] and stop it with [Pool.Close].
type Pool struct {
	store   *task.Store
	workers *worker.Pool
	archive storage.TaskRepository

	submitSvc *submit.Service
	showSvc   *show.Service
	outputSvc *output.Service

	logger    log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	closeFn   func() error
}

// New creates a pool and starts its workers. The workers stop when ctx is
// cancelled or [Pool.Close] is called, the commands being executed are never
// killed. Use [Pool.Close] to release the archive in both cases.
//
//	pool, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w: %w", err, ErrNotValid)
	}

	store, err := task.NewStore(task.StoreConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create store: %w", err)
	}

	r, err := newRunner(cfg)
	if err != nil {
		return nil, mapError(err)
	}

	closeFn := func() error { return nil }
	var archive storage.TaskRepository
	if cfg.ArchiveDBPath != "" {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.ArchiveDBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create archive: %w", err)
		}
		archive = repo
		closeFn = repo.Close
	}

	engine, err := task.NewEngine(task.EngineConfig{
		Store:          store,
		Runner:         r,
		Archive:        archive,
		DropFailed:     cfg.DropFailed,
		TracerProvider: cfg.TracerProvider,
		Logger:         cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	workers, err := worker.NewPool(worker.PoolConfig{
		Store:        store,
		Executor:     engine,
		Size:         cfg.Workers,
		PollInterval: cfg.PollInterval,
		Logger:       cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, mapError(fmt.Errorf("could not create workers: %w: %w", err, model.ErrNotValid))
	}

	p := &Pool{
		store:   store,
		workers: workers,
		archive: archive,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
		closeFn: closeFn,
	}

	if err := p.newServices(); err != nil {
		_ = closeFn()
		return nil, err
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		_ = workers.Run(ctx)
	}()

	return p, nil
}

func (p *Pool) newServices() (err error) {
	p.submitSvc, err = submit.NewService(submit.ServiceConfig{Store: p.store, Logger: p.logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}
	p.showSvc, err = show.NewService(show.ServiceConfig{Store: p.store, Repository: p.archive, Logger: p.logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}
	p.outputSvc, err = output.NewService(output.ServiceConfig{Store: p.store, Repository: p.archive, Logger: p.logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}
	return nil
}

func newRunner(cfg Config) (runner.Runner, error) {
	switch cfg.Runner {
	case RunnerLocal:
		return local.NewRunner(local.RunnerConfig{
			Env:            cfg.Env,
			WorkingDir:     cfg.WorkingDir,
			MaxOutputBytes: cfg.MaxOutputBytes,
			Logger:         cfg.Logger,
		})
	case RunnerDocker:
		if cfg.DockerContainer == "" {
			return nil, fmt.Errorf("docker container is required: %w", model.ErrNotValid)
		}
		return docker.NewRunner(docker.RunnerConfig{
			Container:      cfg.DockerContainer,
			Env:            cfg.Env,
			WorkingDir:     cfg.WorkingDir,
			MaxOutputBytes: cfg.MaxOutputBytes,
			Logger:         cfg.Logger,
		})
	case RunnerFake:
		return fake.NewRunner(fake.RunnerConfig{Logger: cfg.Logger})
	default:
		return nil, fmt.Errorf("unsupported runner type: %s: %w", cfg.Runner, model.ErrNotValid)
	}
}

// RunID returns the ID of this pool instance, used as the run ID in the archive.
func (p *Pool) RunID() string { return p.store.RunID() }

// Close stops the workers, waiting for the commands being executed (they are
// not killed), and releases the archive. Queued tasks are never executed.
// Calling Close more than once is safe.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		p.closeErr = p.closeFn()
	})
	return p.closeErr
}

// Wait blocks until there are no queued nor running tasks, or ctx ends. Returns
// [ErrClosed] if the workers stop before that happens.
func (p *Pool) Wait(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := p.workers.WaitIdle(ctx)
	if err == nil {
		return nil
	}

	select {
	case <-p.done:
		if p.store.Idle() {
			return nil
		}
		return ErrClosed
	default:
		return err
	}
}
