//go:build !windows

package runner

import (
	"os"
	"os/exec"
)

func configureCommand(*exec.Cmd) {}

// IsElevated reports whether the process runs as root.
func IsElevated() (bool, error) {
	return os.Geteuid() == 0, nil
}
