//go:build windows

package render

import (
	"os/exec"
	"syscall"
)

// hideWindowOnWindows prevents console windows from flashing up when
// external tools are spawned.
func hideWindowOnWindows(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
