package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/orc/internal/coordinator"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/executor"
	"github.com/randalmurphal/orc/internal/gitrepo"
	"github.com/randalmurphal/orc/internal/store"
	"github.com/randalmurphal/orc/internal/store/driver"
	"github.com/randalmurphal/orc/internal/supervisor"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func writeFakeAgent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-agent.sh")
	script := "#!/bin/sh\necho '{\"type\":\"system\",\"content\":\"ready\"}'\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// testHarness bundles a fully wired Server plus the ids of a seeded
// project/task/idle attempt, so handler tests exercise the real
// Coordinator/Store/Worktree stack instead of mocks.
type testHarness struct {
	srv       *Server
	db        *store.DB
	coord     *coordinator.Coordinator
	repo      string
	projectID string
	taskID    string
	attemptID string
}

func newTestServer(t *testing.T) *testHarness {
	t.Helper()

	repo := initTestRepo(t)
	worktreeRoot := t.TempDir()
	dbDir := t.TempDir()

	db, err := store.Open(context.Background(), driver.DialectSQLite, filepath.Join(dbDir, "attempts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	project := &store.Project{ID: "project-1", RepoPath: repo, DefaultBaseBranch: "main"}
	if err := db.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	task := &store.Task{ID: "task-1", ProjectID: "project-1", Title: "Do the thing"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	wm := gitrepo.NewManager(repo, worktreeRoot)
	sup := supervisor.New(db, nil)

	registry := executor.NewRegistry()
	agentPath := writeFakeAgent(t)
	registry.Register("fake-agent", executor.NewCodingAgentAdapter(agentPath))

	pub := events.NewMemoryPublisher()
	t.Cleanup(pub.Close)
	helper := events.NewPublishHelper(pub)

	coord := coordinator.New(db, wm, sup, registry, helper, nil, quietLogger())

	attempt, err := coord.Create(ctx, coordinator.CreateRequest{
		TaskID: "task-1", ProjectID: "project-1", Executor: "fake-agent", BaseBranch: "main",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForIdle(t, coord, attempt.ID)

	srv := New(&Config{
		Logger:    quietLogger(),
		DB:        db,
		Coord:     coord,
		Worktrees: wm,
		Publisher: pub,
	})

	return &testHarness{
		srv: srv, db: db, coord: coord, repo: repo,
		projectID: "project-1", taskID: "task-1", attemptID: attempt.ID,
	}
}

func waitForIdle(t *testing.T, c *coordinator.Coordinator, attemptID string) {
	t.Helper()
	for i := 0; i < 2000; i++ {
		state, err := c.ExecutionStateFor(context.Background(), attemptID)
		if err != nil {
			t.Fatalf("ExecutionStateFor: %v", err)
		}
		if state.State == coordinator.StateIdle {
			return
		}
	}
	t.Fatalf("attempt %s never reached Idle", attemptID)
}

func (h *testHarness) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.srv.mux.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v: body=%s", err, w.Body.String())
	}
	return env
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := New(nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header to be set")
	}
}

func TestParseAddr(t *testing.T) {
	cases := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{":8080", "", 8080},
		{"127.0.0.1:9000", "127.0.0.1", 9000},
		{"localhost:3000", "localhost", 3000},
	}
	for _, tc := range cases {
		host, port, err := parseAddr(tc.addr)
		if err != nil {
			t.Fatalf("parseAddr(%q): %v", tc.addr, err)
		}
		if host != tc.wantHost || port != tc.wantPort {
			t.Errorf("parseAddr(%q) = (%q, %d), want (%q, %d)", tc.addr, host, port, tc.wantHost, tc.wantPort)
		}
	}
}

func TestFindAvailablePort(t *testing.T) {
	ln, port, err := findAvailablePort("", 19200, 5)
	if err != nil {
		t.Fatalf("findAvailablePort: %v", err)
	}
	defer ln.Close()
	if port < 19200 || port >= 19205 {
		t.Errorf("port %d out of expected range", port)
	}
}
