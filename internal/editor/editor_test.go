package editor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMarkerScript(t *testing.T, markerPath string) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-editor.sh")
	body := "#!/bin/sh\ntouch \"" + markerPath + "\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestOpenCustomCommandSpawnsDetached(t *testing.T) {
	tmp := t.TempDir()
	marker := filepath.Join(tmp, "opened")
	script := writeMarkerScript(t, marker)

	if err := Open("custom", script, tmp); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected marker file to be created by spawned editor command")
}

func TestOpenUnrecognizedEditorType(t *testing.T) {
	if err := Open("not-a-real-editor", "", t.TempDir()); err == nil {
		t.Fatal("expected error for unrecognized editor_type")
	}
}

func TestOpenNoCommandConfigured(t *testing.T) {
	if err := Open("custom", "", t.TempDir()); err == nil {
		t.Fatal("expected error when no command is configured for custom editor_type")
	}
}

func TestOpenKnownEditorTypeIgnoresCommand(t *testing.T) {
	// "vscode" resolves to the "code" binary regardless of command; since
	// "code" is unlikely to be installed in the test environment, Open
	// should fail at spawn time rather than silently succeeding.
	err := Open("vscode", "ignored", t.TempDir())
	if err == nil {
		t.Skip("code binary unexpectedly present on PATH")
	}
}
