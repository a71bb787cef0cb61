// Package supervisor is the Process Supervisor (C4): it spawns executor
// child processes, streams their stdout/stderr into the Attempt Store,
// exposes kill handles keyed by process id, and reports terminal status.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/randalmurphal/orc/internal/executor"
	"github.com/randalmurphal/orc/internal/store"
)

const killGracePeriod = 5 * time.Second

// handle is the live process-group registration for a spawned process,
// keyed by ExecutionProcess.id (§4.4, §5 "process-wide map keyed by
// process id").
type handle struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	killed bool
}

// Supervisor owns every live executor process spawned on this host.
type Supervisor struct {
	db     *store.DB
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*handle
}

// New returns a Supervisor backed by db for persistence.
func New(db *store.DB, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{db: db, logger: logger, handles: make(map[string]*handle)}
}

// Spawn creates an ExecutionProcess row in Running state, forks the
// command in its own process group, registers a kill handle, and
// streams stdout/stderr into the store as the process runs. It returns
// once the process row exists and the goroutines are started; it does
// not wait for the process to exit. Callers that need an ExecutorSession
// sidecar row (coding-agent prompts/summaries) create it separately once
// p.ID is known.
func (s *Supervisor) Spawn(ctx context.Context, p *store.ExecutionProcess, spec executor.CommandSpec) error {
	p.Command = spec.Path + " " + joinArgs(spec.Args)
	p.WorkingDirectory = spec.Dir
	p.Status = store.ProcessStatusRunning

	if err := s.db.CreateProcess(ctx, p); err != nil {
		return fmt.Errorf("create process row: %w", err)
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	setProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start process: %w", err)
	}

	if cmd.Process != nil {
		if err := s.db.SetPGID(ctx, p.ID, cmd.Process.Pid); err != nil {
			s.logger.Warn("record pgid failed", "process_id", p.ID, "error", err)
		}
	}

	h := &handle{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.handles[p.ID] = h
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go s.stream(&wg, p.ID, stdout, s.db.AppendStdout)
	go s.stream(&wg, p.ID, stderr, s.db.AppendStderr)

	go s.awaitCompletion(p.ID, cmd, h, &wg)

	return nil
}

// stream copies chunks from r into the store via write, batching reads
// on the underlying pipe's natural chunk boundaries so bytes are never
// dropped (§4.4 "must never drop bytes").
func (s *Supervisor) stream(wg *sync.WaitGroup, processID string, r io.Reader, write func(ctx context.Context, id, chunk string) error) {
	defer wg.Done()
	buf := make([]byte, 32*1024)
	reader := bufio.NewReaderSize(r, len(buf))
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if writeErr := write(context.Background(), processID, string(buf[:n])); writeErr != nil {
				s.logger.Error("stream write failed", "process_id", processID, "error", writeErr)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Supervisor) awaitCompletion(processID string, cmd *exec.Cmd, h *handle, wg *sync.WaitGroup) {
	wg.Wait()
	err := cmd.Wait()

	s.mu.Lock()
	delete(s.handles, processID)
	s.mu.Unlock()

	h.mu.Lock()
	killed := h.killed
	h.mu.Unlock()

	status := store.ProcessStatusCompleted
	var exitCode *int
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		exitCode = &code
		if code != 0 {
			status = store.ProcessStatusFailed
		}
	} else if err != nil {
		code := -1
		exitCode = &code
		status = store.ProcessStatusFailed
	}
	if killed {
		status = store.ProcessStatusKilled
	}

	if _, err := s.db.UpdateCompletion(context.Background(), processID, status, exitCode); err != nil {
		s.logger.Error("update_completion failed", "process_id", processID, "error", err)
	}
	close(h.done)
}

// Kill implements stop_running_execution_by_id: it signals the process
// group of a live handle (SIGTERM, then SIGKILL after a grace period),
// and reports whether a live handle was actually found. The eventual
// UpdateCompletion happens in awaitCompletion once Wait returns; Kill
// does not mutate store state directly.
func (s *Supervisor) Kill(processID string) (bool, error) {
	s.mu.Lock()
	h, ok := s.handles[processID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()

	// Canceling the command's context makes exec send SIGKILL at once, so
	// it is released only after the process has exited.
	defer h.cancel()
	if h.cmd.Process != nil {
		if err := terminateProcessGroup(h.cmd.Process.Pid); err != nil {
			s.logger.Debug("terminate process group", "process_id", processID, "error", err)
		}
	}

	select {
	case <-h.done:
		return true, nil
	case <-time.After(killGracePeriod):
	}

	if h.cmd.Process != nil {
		if err := killProcessGroup(h.cmd.Process.Pid); err != nil {
			s.logger.Debug("kill process group", "process_id", processID, "error", err)
		}
	}
	<-h.done
	return true, nil
}

// ReconcileOrphans runs at startup: any ExecutionProcess row left in
// Running status has no live handle in this process (the supervisor
// that owned it is gone), so it is reconciled to Failed with a synthetic
// note appended to stderr (§4.4 "reconciled to Failed with a synthetic
// 'supervisor restart' note in stderr").
func (s *Supervisor) ReconcileOrphans(ctx context.Context) error {
	running, err := s.db.FindRunningProcesses(ctx)
	if err != nil {
		return fmt.Errorf("find running processes: %w", err)
	}
	for _, p := range running {
		s.mu.Lock()
		_, live := s.handles[p.ID]
		s.mu.Unlock()
		if live {
			continue
		}
		if err := s.db.AppendStderr(ctx, p.ID, "supervisor restart: process was orphaned and reconciled to Failed"); err != nil {
			s.logger.Error("append orphan note failed", "process_id", p.ID, "error", err)
		}
		code := -1
		if _, err := s.db.UpdateCompletion(ctx, p.ID, store.ProcessStatusFailed, &code); err != nil {
			s.logger.Error("reconcile orphan failed", "process_id", p.ID, "error", err)
		}
	}
	return nil
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
