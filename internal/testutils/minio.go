package testutils

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MinIOContainer is a MinIO server running in a container for testing purposes.
type MinIOContainer struct {
	Container testcontainers.Container
	Endpoint  string

	AccessKey string
	SecretKey string
}

// StartMinIOContainer starts a MinIO server and waits until it is live.
func StartMinIOContainer(t *testing.T) *MinIOContainer {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	if runtime.GOOS != "linux" {
		t.Skip("Skipping MinIO container test on non-Linux OS")
	}

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}
	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Setup: failed to start MinIO container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "Setup: failed to get container host")

	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err, "Setup: failed to get mapped port")

	return &MinIOContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),

		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// Stop stops the MinIO container.
func (mc *MinIOContainer) Stop(ctx context.Context) error {
	return mc.Container.Terminate(ctx)
}
