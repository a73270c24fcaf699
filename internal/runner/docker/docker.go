package docker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/slok/cmdpool/internal/command"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/runner"
	utilsenv "github.com/slok/cmdpool/internal/utils/env"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// RunnerConfig is the configuration for the Docker runner.
type RunnerConfig struct {
	// Container is the name or ID of the running container commands are executed in.
	Container string
	// DockerBinary is the docker CLI used to exec commands, "docker" by default.
	DockerBinary   string
	Env            map[string]string
	WorkingDir     string
	MaxOutputBytes int64
	Client         DockerClient
	Logger         log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Container == "" {
		return fmt.Errorf("container is required")
	}
	if c.DockerBinary == "" {
		c.DockerBinary = "docker"
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("max output bytes can't be negative: %w", model.ErrNotValid)
	}
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Docker", "container": c.Container})
	return nil
}

// Runner executes commands inside an already running Docker container.
type Runner struct {
	container string
	binary    string
	env       map[string]string
	workDir   string
	maxOutput int64
	client    DockerClient
	logger    log.Logger
}

// NewRunner creates a new Docker runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		container: cfg.Container,
		binary:    cfg.DockerBinary,
		env:       cfg.Env,
		workDir:   cfg.WorkingDir,
		maxOutput: cfg.MaxOutputBytes,
		client:    cfg.Client,
		logger:    cfg.Logger,
	}, nil
}

var _ runner.Runner = &Runner{}

// execFailedExitCodes are the exit codes docker exec uses when the command
// could not be started inside the container (not executable, not found).
var execFailedExitCodes = map[int]bool{126: true, 127: true}

// Run checks the container is running and executes the command in it with `docker exec`.
func (r *Runner) Run(ctx context.Context, spec command.Spec) (*model.Output, error) {
	if spec.Program == "" {
		return nil, fmt.Errorf("%w: empty program", model.ErrSpawn)
	}

	// A claimed task is always executed, even when the workers are stopping.
	info, err := r.client.ContainerInspect(context.WithoutCancel(ctx), r.container)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil, fmt.Errorf("%w: container %s: %w", model.ErrSpawn, r.container, model.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: could not inspect container %s: %w", model.ErrSpawn, r.container, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return nil, fmt.Errorf("%w: container %s is not running: %w", model.ErrSpawn, r.container, model.ErrNotValid)
	}

	args := r.execArgs(spec)
	r.logger.Debugf("Executing command in container: %s %v", r.binary, args)

	out, err := runner.Capture(exec.Command(r.binary, args...), r.maxOutput)
	if err != nil {
		return nil, err
	}

	if execFailedExitCodes[out.ExitCode] && bytes.Contains(out.Stderr, []byte("OCI runtime exec failed")) {
		return nil, fmt.Errorf("%w: %s", model.ErrSpawn, strings.TrimSpace(string(out.Stderr)))
	}

	return out, nil
}

func (r *Runner) execArgs(spec command.Spec) []string {
	args := []string{"exec"}
	if r.workDir != "" {
		args = append(args, "-w", r.workDir)
	}

	for _, kv := range utilsenv.List(r.env) {
		args = append(args, "-e", kv)
	}

	args = append(args, r.container)
	return append(args, spec.Argv()...)
}
