// Package editor resolves and launches the external editor command for
// open_in_editor (§4.6): it spawns detached, the worktree path as the
// final argument, and returns once the spawn succeeds without waiting
// for the editor to exit (grounded on the Process Supervisor's detached
// os/exec spawn pattern, internal/supervisor/supervisor.go's Spawn).
package editor

import (
	"fmt"
	"os/exec"
)

// knownCommands maps a recognized editor_type to its CLI launcher binary.
var knownCommands = map[string]string{
	"vscode":   "code",
	"cursor":   "cursor",
	"windsurf": "windsurf",
	"intellij": "idea",
	"zed":      "zed",
}

// Open launches editorType against worktreePath. When editorType is
// "custom" (or empty), command is used verbatim as the launcher binary;
// command is otherwise ignored in favor of the type's known binary. The
// child is detached (its own process group) so it outlives this call.
func Open(editorType, command, worktreePath string) error {
	bin := command
	if editorType != "" && editorType != "custom" {
		known, ok := knownCommands[editorType]
		if !ok {
			return fmt.Errorf("unrecognized editor_type %q", editorType)
		}
		bin = known
	}
	if bin == "" {
		return fmt.Errorf("no editor command configured")
	}

	cmd := exec.Command(bin, worktreePath)
	setDetached(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn editor %q: %w", bin, err)
	}
	// Reap the process asynchronously so it doesn't become a zombie;
	// the editor itself keeps running detached from this process group.
	go func() { _ = cmd.Wait() }()
	return nil
}
