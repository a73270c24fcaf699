package commands

import (
	"context"
	"fmt"

	"github.com/slok/cmdpool/internal/app/list"
	"github.com/slok/cmdpool/internal/app/output"
	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/app/submit"
	"github.com/slok/cmdpool/internal/config"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/runner"
	"github.com/slok/cmdpool/internal/runner/docker"
	"github.com/slok/cmdpool/internal/runner/local"
	"github.com/slok/cmdpool/internal/storage"
	"github.com/slok/cmdpool/internal/task"
	utilsenv "github.com/slok/cmdpool/internal/utils/env"
	"github.com/slok/cmdpool/internal/worker"
)

// livePool is a running pool with the use cases that operate on it.
type livePool struct {
	store   *task.Store
	pool    *worker.Pool
	archive storage.TaskRepository

	submit *submit.Service
	list   *list.Service
	show   *show.Service
	output *output.Service

	close func() error
}

// newLivePool wires a pool from the configuration. Extra env is set on top of the
// configured runner env.
func (c *RootCommand) newLivePool(ctx context.Context, cfg config.Config, extraEnv map[string]string) (*livePool, error) {
	logger := c.Logger

	store, err := task.NewStore(task.StoreConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create store: %w", err)
	}
	logger = logger.WithValues(log.Kv{"run-id": store.RunID()})

	r, err := newRunner(cfg, extraEnv, c)
	if err != nil {
		return nil, err
	}

	tp, shutdownTracing, err := c.SetupTracing(ctx)
	if err != nil {
		return nil, err
	}

	archive, closeArchiveOnly, err := c.NewArchive(ctx, cfg.Archive)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	closeArchive := func() error {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warningf("Could not flush traces: %s", err)
		}
		return closeArchiveOnly()
	}

	engine, err := task.NewEngine(task.EngineConfig{
		Store:          store,
		Runner:         r,
		Archive:        archive,
		DropFailed:     !cfg.KeepFailed,
		TracerProvider: tp,
		Logger:         logger,
	})
	if err != nil {
		_ = closeArchive()
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		Store:        store,
		Executor:     engine,
		Size:         cfg.Workers,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		_ = closeArchive()
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	hist, err := c.NewHistory(cfg.History)
	if err != nil {
		_ = closeArchive()
		return nil, err
	}
	submitCfg := submit.ServiceConfig{Store: store, Logger: logger}
	if hist != nil {
		submitCfg.History = hist
	}

	lp := &livePool{store: store, pool: pool, archive: archive, close: closeArchive}
	if err := lp.newServices(submitCfg, logger); err != nil {
		_ = closeArchive()
		return nil, err
	}

	logger.Infof("Pool ready with %d workers", pool.Size())

	return lp, nil
}

func newRunner(cfg config.Config, extraEnv map[string]string, c *RootCommand) (runner.Runner, error) {
	if d := cfg.Runner.Docker; d != nil {
		r, err := docker.NewRunner(docker.RunnerConfig{
			Container:      d.Container,
			Env:            utilsenv.MergeMaps(d.Env, extraEnv),
			WorkingDir:     d.WorkDir,
			MaxOutputBytes: cfg.MaxOutputBytes,
			Logger:         c.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create docker runner: %w", err)
		}
		return r, nil
	}

	var env map[string]string
	var workDir string
	if l := cfg.Runner.Local; l != nil {
		env = l.Env
		workDir = l.WorkDir
	}

	r, err := local.NewRunner(local.RunnerConfig{
		Env:            utilsenv.MergeMaps(env, extraEnv),
		WorkingDir:     workDir,
		MaxOutputBytes: cfg.MaxOutputBytes,
		Logger:         c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create local runner: %w", err)
	}
	return r, nil
}

func (lp *livePool) newServices(submitCfg submit.ServiceConfig, logger log.Logger) (err error) {
	if lp.submit, err = submit.NewService(submitCfg); err != nil {
		return fmt.Errorf("could not create submit service: %w", err)
	}
	if lp.list, err = list.NewService(list.ServiceConfig{Store: lp.store, Repository: lp.archive, Logger: logger}); err != nil {
		return fmt.Errorf("could not create list service: %w", err)
	}
	if lp.show, err = show.NewService(show.ServiceConfig{Store: lp.store, Repository: lp.archive, Logger: logger}); err != nil {
		return fmt.Errorf("could not create show service: %w", err)
	}
	if lp.output, err = output.NewService(output.ServiceConfig{Store: lp.store, Repository: lp.archive, Logger: logger}); err != nil {
		return fmt.Errorf("could not create output service: %w", err)
	}
	return nil
}
