package api

import (
	"net/http"
	"testing"
)

func TestHandleFollowUpQueuesOnIdleAttempt(t *testing.T) {
	h := newTestServer(t)

	w := h.do("POST", attemptPath(h, "/follow-up"), map[string]string{"prompt": "add a test"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]any)
	if data["actual_attempt_id"] != h.attemptID {
		t.Errorf("actual_attempt_id = %v, want %s", data["actual_attempt_id"], h.attemptID)
	}
	if data["created_new_attempt"] != false {
		t.Errorf("created_new_attempt = %v, want false", data["created_new_attempt"])
	}
}

func TestHandleFollowUpMissingPrompt(t *testing.T) {
	h := newTestServer(t)

	w := h.do("POST", attemptPath(h, "/follow-up"), map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleStartDevServerNoScriptConfigured(t *testing.T) {
	h := newTestServer(t)

	// The seeded project has no DevScript, so this is an InvalidState
	// domain error (400), not a supervisor failure.
	w := h.do("POST", attemptPath(h, "/start-dev-server"), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleApprovePlanNoPlanFound(t *testing.T) {
	h := newTestServer(t)

	// The fake-agent attempt never ran a claude-plan process, so no plan
	// presentation exists for this attempt.
	w := h.do("POST", attemptPath(h, "/approve-plan"), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestHandleFollowUpTaskNotFound(t *testing.T) {
	h := newTestServer(t)

	w := h.do("POST", "/api/projects/"+h.projectID+"/tasks/wrong-task/attempts/"+h.attemptID+"/follow-up",
		map[string]string{"prompt": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
