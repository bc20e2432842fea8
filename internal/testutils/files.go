package testutils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// ReadFile returns the content of path, failing the test if it cannot be read.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Setup: could not read %s", path)
	return data
}
