//go:build windows

package editor

import "os/exec"

// setDetached is a no-op on Windows: there is no POSIX session/process
// group concept to opt into at spawn time.
func setDetached(cmd *exec.Cmd) {}
