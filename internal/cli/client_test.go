package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEnvelopeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCreateAttemptDecodesData(t *testing.T) {
	srv := newEnvelopeServer(t, http.StatusOK, `{"success":true,"data":{"id":"attempt-1","status":"running"}}`)
	client := NewClient(srv.URL)

	data, err := client.CreateAttempt(context.Background(), "proj-1", "task-1", CreateAttemptRequest{Executor: "coding-agent"})
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if decoded["id"] != "attempt-1" {
		t.Errorf("id = %q, want attempt-1", decoded["id"])
	}
}

func TestClientCallReturnsServerMessageOnFailure(t *testing.T) {
	srv := newEnvelopeServer(t, http.StatusNotFound, `{"success":false,"message":"attempt not found"}`)
	client := NewClient(srv.URL)

	_, err := client.GetAttemptDetails(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "attempt not found" {
		t.Errorf("error = %q, want %q", err.Error(), "attempt not found")
	}
}

func TestClientStopAllSucceedsWithNoData(t *testing.T) {
	srv := newEnvelopeServer(t, http.StatusOK, `{"success":true}`)
	client := NewClient(srv.URL)

	if err := client.StopAll(context.Background(), "proj-1", "task-1", "attempt-1"); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}

func TestClientRebaseOmitsBodyWhenNewBaseEmpty(t *testing.T) {
	var sawBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		sawBody = string(buf)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	if err := client.Rebase(context.Background(), "proj-1", "task-1", "attempt-1", ""); err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if sawBody != "" {
		t.Errorf("body = %q, want empty", sawBody)
	}
}
