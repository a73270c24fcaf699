package lib

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/require"
)

// dockerHelper provides utilities for interacting with Docker in tests.
type dockerHelper struct {
	client *client.Client
}

// newDockerHelper creates a new Docker helper for tests.
func newDockerHelper(t *testing.T) *dockerHelper {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, err, "Failed to create Docker client")

	return &dockerHelper{client: cli}
}

// StartDockerContainer starts a long running container with the configured
// image and returns its name. The container is removed when the test ends.
func (c Config) StartDockerContainer(t *testing.T) string {
	t.Helper()
	c.RequireDocker(t)

	return newDockerHelper(t).startContainer(t, c.DockerImage)
}

// startContainer pulls the image and starts a long running container with it,
// the container is removed when the test ends.
func (d *dockerHelper) startContainer(t *testing.T, imageRef string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rc, err := d.client.ImagePull(ctx, imageRef, image.PullOptions{})
	require.NoError(t, err, "Failed to pull image %s", imageRef)
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()

	name := fmt.Sprintf("cmdpool-it-%d", time.Now().UnixNano())
	resp, err := d.client.ContainerCreate(ctx,
		&container.Config{
			Image: imageRef,
			Cmd:   []string{"sleep", "3600"},
		},
		&container.HostConfig{AutoRemove: false},
		nil, nil, name)
	require.NoError(t, err, "Failed to create container")
	t.Cleanup(func() { d.cleanupContainer(t, resp.ID) })

	err = d.client.ContainerStart(ctx, resp.ID, container.StartOptions{})
	require.NoError(t, err, "Failed to start container")

	d.requireContainerRunning(t, resp.ID)

	return name
}

// getContainerStatus returns the status of a container (running, exited, etc).
func (d *dockerHelper) getContainerStatus(t *testing.T, containerID string) string {
	info, err := d.client.ContainerInspect(context.Background(), containerID)
	require.NoError(t, err, "Failed to inspect container")
	if info.State == nil {
		return ""
	}
	return info.State.Status
}

// requireContainerRunning asserts that a container is running.
func (d *dockerHelper) requireContainerRunning(t *testing.T, containerID string) {
	status := d.getContainerStatus(t, containerID)
	require.Equal(t, "running", status,
		"Expected container %s to be running, got status: %s", containerID, status)
}

// cleanupContainer removes a container (for test cleanup).
func (d *dockerHelper) cleanupContainer(t *testing.T, containerID string) {
	err := d.client.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
	if err != nil {
		t.Logf("Warning: Failed to remove container %s during cleanup: %v", containerID, err)
	}
}
