package api

import (
	"net/http"
	"testing"
)

func TestHandleOpenEditorUnrecognizedType(t *testing.T) {
	h := newTestServer(t)

	w := h.do("POST", attemptPath(h, "/open-editor"), map[string]string{"editor_type": "not-a-real-editor"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
}

func TestHandleOpenEditorNoCommandConfigured(t *testing.T) {
	h := newTestServer(t)

	// The request asks for editor_type "custom" but the project has no
	// EditorCommand configured.
	w := h.do("POST", attemptPath(h, "/open-editor"), map[string]string{"editor_type": "custom"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
}

func TestHandleOpenEditorAttemptNotFound(t *testing.T) {
	h := newTestServer(t)

	w := h.do("POST", "/api/projects/"+h.projectID+"/tasks/"+h.taskID+"/attempts/NONEXISTENT/open-editor", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
