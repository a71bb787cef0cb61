//go:build !windows

package editor

import (
	"os/exec"
	"syscall"
)

// setDetached puts the editor in its own process group/session so
// terminating the orc process (or its own process group) doesn't take
// the editor down with it.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
