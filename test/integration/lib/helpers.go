package lib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	sdklib "github.com/slok/cmdpool/pkg/lib"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	// Docker enables the tests that need a Docker daemon.
	Docker      bool
	DockerImage string
}

// NewConfig loads integration test configuration from environment variables.
// If the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation  = "CMDPOOL_INTEGRATION"
		envDocker      = "CMDPOOL_INTEGRATION_DOCKER"
		envDockerImage = "CMDPOOL_INTEGRATION_DOCKER_IMAGE"

		defaultDockerImage = "busybox:1.36"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Docker:      os.Getenv(envDocker) == "true",
		DockerImage: os.Getenv(envDockerImage),
	}
	if c.DockerImage == "" {
		c.DockerImage = defaultDockerImage
	}

	return c
}

// RequireDocker skips the test when the Docker tests are not enabled.
func (c Config) RequireDocker(t *testing.T) {
	t.Helper()
	if !c.Docker {
		t.Skip("Skipping Docker test: CMDPOOL_INTEGRATION_DOCKER is not set to 'true'")
	}
}

// NewTestPool creates an SDK pool with a temp SQLite archive for test isolation.
func NewTestPool(t *testing.T, cfg sdklib.Config) *sdklib.Pool {
	t.Helper()

	if cfg.ArchiveDBPath == "" {
		cfg.ArchiveDBPath = filepath.Join(t.TempDir(), "test.db")
	}

	pool, err := sdklib.New(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pool.Close()
	})

	return pool
}
