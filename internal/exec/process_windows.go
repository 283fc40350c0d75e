// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Windows-specific process handling

//go:build windows

package exec

import (
	"os/exec"
)

// setPlatformProcessGroup configures platform-specific process attributes.
// Windows has no Unix-style process groups; Kill maps to TerminateProcess.
func setPlatformProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the renderer process.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
