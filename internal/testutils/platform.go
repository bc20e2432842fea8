package testutils

import (
	"os"
	"runtime"
)

// IsUnixNonRoot reports whether file permissions are enforced for the test process:
// a Unix-like system and a user other than root.
func IsUnixNonRoot() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
		return os.Getuid() != 0
	default:
		return false
	}
}
