package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/randalmurphal/orc/internal/attemperr"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/executor"
	"github.com/randalmurphal/orc/internal/gitrepo"
	"github.com/randalmurphal/orc/internal/store"
	"github.com/randalmurphal/orc/internal/supervisor"
)

// defaultMaxBackground bounds the number of attempts the Coordinator
// will provision/run concurrently, generalizing the teacher's fixed
// WorkerPool.maxWorkers into a semaphore-guarded dispatcher (§4.5 NEW).
const defaultMaxBackground = 8

// ProjectConfig carries the per-project settings a Coordinator needs to
// sequence an attempt: the setup and dev-server commands are opaque
// shell lines, run via the SetupScript/DevServer executor types.
type ProjectConfig struct {
	SetupScript string
	DevCommand  string
}

// ConfigResolver looks up a project's ProjectConfig by id.
type ConfigResolver func(ctx context.Context, projectID string) (ProjectConfig, error)

// Coordinator is the Attempt Coordinator (C5): it sequences an attempt
// through Setup -> Main -> {Followup, DevServer, Merge, Rebase}, backed
// by the Attempt Store (C1), Worktree Manager (C2), Executor Registry
// (C3), Process Supervisor (C4), and Event Bus (C8).
type Coordinator struct {
	db         *store.DB
	worktrees  *gitrepo.Manager
	supervisor *supervisor.Supervisor
	registry   *executor.Registry
	publisher  *events.PublishHelper
	configs    ConfigResolver
	logger     *slog.Logger

	sem *semaphore.Weighted
}

// New returns a Coordinator wired to its dependencies. configs may be
// nil, in which case every attempt runs with an empty ProjectConfig
// (no setup script, no dev command).
func New(db *store.DB, worktrees *gitrepo.Manager, sup *supervisor.Supervisor, registry *executor.Registry, publisher *events.PublishHelper, configs ConfigResolver, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if configs == nil {
		configs = func(context.Context, string) (ProjectConfig, error) { return ProjectConfig{}, nil }
	}
	return &Coordinator{
		db:         db,
		worktrees:  worktrees,
		supervisor: sup,
		registry:   registry,
		publisher:  publisher,
		configs:    configs,
		logger:     logger,
		sem:        semaphore.NewWeighted(defaultMaxBackground),
	}
}

// CreateRequest describes a new attempt (§4.5 Create(attempt_request)).
type CreateRequest struct {
	TaskID     string
	ProjectID  string
	Executor   string
	BaseBranch string
}

// Create inserts the attempt row and returns immediately; provisioning
// and the main coding-agent run happen on a background goroutine bounded
// by the Coordinator's semaphore, so the caller never blocks on git or
// process-spawn latency (§4.5 "C5 must not block the API").
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*store.Attempt, error) {
	id := uuid.NewString()
	a := &store.Attempt{
		ID:           id,
		TaskID:       req.TaskID,
		ProjectID:    req.ProjectID,
		Executor:     req.Executor,
		BaseBranch:   req.BaseBranch,
		WorktreePath: c.worktrees.WorktreePath(id),
		BranchName:   gitrepo.BranchName(id),
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.db.CreateAttempt(ctx, a); err != nil {
		return nil, attemperr.Internal("failed to create attempt", err)
	}
	c.publisher.AttemptState(a.ID, string(StateNew))

	c.dispatch(func(bgCtx context.Context) {
		c.runCreate(bgCtx, a)
	})
	return a, nil
}

// dispatch runs fn on a goroutine gated by the Coordinator's bounded
// semaphore (§4.5 NEW: a semaphore replacing a fixed worker pool). A background goroutine, not a caller-owned context, so it
// always runs to completion even if the originating request's context
// is canceled once the HTTP response is written.
func (c *Coordinator) dispatch(fn func(ctx context.Context)) {
	go func() {
		ctx := context.Background()
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.sem.Release(1)
		fn(ctx)
	}()
}

func (c *Coordinator) runCreate(ctx context.Context, a *store.Attempt) {
	c.publisher.AttemptState(a.ID, string(StateProvisioning))

	worktreePath, err := c.worktrees.Provision(ctx, a.ID, a.BaseBranch)
	if err != nil {
		c.logger.Error("provision failed", "attempt_id", a.ID, "error", err)
		c.publisher.AttemptState(a.ID, string(StateSetupFailed))
		return
	}

	cfg, err := c.configs(ctx, a.ProjectID)
	if err != nil {
		c.logger.Error("config resolution failed", "attempt_id", a.ID, "error", err)
	}

	if cfg.SetupScript != "" {
		c.publisher.AttemptState(a.ID, string(StateSetupRunning))
		ok := c.runProcess(ctx, a, store.ProcessTypeSetupScript, executor.TypeSetupScript, worktreePath, cfg.SetupScript)
		if !ok {
			c.publisher.AttemptState(a.ID, string(StateSetupFailed))
			return
		}
	}

	c.publisher.AttemptState(a.ID, string(StateMainRunning))
	ok := c.runProcess(ctx, a, store.ProcessTypeCodingAgent, a.Executor, worktreePath, "")
	if !ok {
		c.publisher.AttemptState(a.ID, string(StateMainFailed))
		return
	}
	c.publisher.AttemptState(a.ID, string(StateIdle))
}

// runProcess spawns one ExecutionProcess of processType via the
// registry-resolved adapter for executorType, blocking this goroutine
// until it reaches a terminal status. Returns true iff it completed
// with exit code 0.
func (c *Coordinator) runProcess(ctx context.Context, a *store.Attempt, processType, executorType, worktreePath, prompt string) bool {
	adapter := c.registry.Resolve(executorType)
	spec := adapter.Launch(worktreePath, prompt)

	p := &store.ExecutionProcess{
		ID:           uuid.NewString(),
		AttemptID:    a.ID,
		ProjectID:    a.ProjectID,
		ProcessType:  processType,
		ExecutorType: executorType,
		StartedAt:    time.Now().UTC(),
	}
	if err := c.supervisor.Spawn(ctx, p, spec); err != nil {
		c.logger.Error("spawn failed", "attempt_id", a.ID, "process_id", p.ID, "error", err)
		return false
	}
	c.publisher.ProcessStarted(a.ID, p.ID, processType)

	return c.awaitProcess(ctx, p.ID)
}

// awaitProcess polls the store until processID reaches a terminal
// status. The Supervisor owns the actual completion write; this just
// observes it, mirroring the teacher's orchestrator checkWorkers loop
// generalized to a single process instead of a fixed worker slice.
func (c *Coordinator) awaitProcess(ctx context.Context, processID string) bool {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			p, err := c.db.FindProcess(ctx, processID)
			if err != nil {
				return false
			}
			switch p.Status {
			case store.ProcessStatusCompleted:
				exitOK := p.ExitCode != nil && *p.ExitCode == 0
				c.publisher.ProcessComplete(p.AttemptID, p.ID, p.Status, p.ExitCode)
				return exitOK
			case store.ProcessStatusFailed, store.ProcessStatusKilled:
				c.publisher.ProcessComplete(p.AttemptID, p.ID, p.Status, p.ExitCode)
				return false
			}
		}
	}
}

// FollowupResult reports which attempt actually ran a follow-up (§4.5
// "the returned actual_attempt_id is the attempt that actually ran").
type FollowupResult struct {
	ActualAttemptID   string
	CreatedNewAttempt bool
}

// Followup launches a Followup-typed process against attempt's
// worktree. If the worktree is missing and cannot be restored, it forks
// a new attempt (parent_attempt_id = attempt.ID) and runs there instead.
func (c *Coordinator) Followup(ctx context.Context, attemptID, prompt string) (*FollowupResult, error) {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.NotFound("attempt " + attemptID)
	}

	state, err := c.ExecutionStateFor(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if state.State != StateIdle && state.State != StateMainFailed {
		return nil, attemperr.InvalidState("attempt " + attemptID + " is not ready for follow-up (state=" + string(state.State) + ")")
	}

	worktreePath := c.worktrees.WorktreePath(attemptID)
	if !c.worktrees.Exists(attemptID) {
		if _, restoreErr := c.worktrees.Restore(ctx, attemptID); restoreErr != nil {
			forkedID := uuid.NewString()
			forked := &store.Attempt{
				ID:              forkedID,
				TaskID:          a.TaskID,
				ProjectID:       a.ProjectID,
				Executor:        a.Executor,
				BaseBranch:      a.BaseBranch,
				WorktreePath:    c.worktrees.WorktreePath(forkedID),
				BranchName:      gitrepo.BranchName(forkedID),
				ParentAttemptID: a.ID,
				CreatedAt:       time.Now().UTC(),
			}
			if createErr := c.db.CreateAttempt(ctx, forked); createErr != nil {
				return nil, attemperr.Internal("failed to fork attempt after worktree loss", createErr)
			}
			c.publisher.AttemptState(forked.ID, string(StateNew))
			c.dispatch(func(bgCtx context.Context) {
				c.runCreate(bgCtx, forked)
				c.runFollowupProcess(bgCtx, forked, c.worktrees.WorktreePath(forked.ID), prompt)
			})
			return &FollowupResult{ActualAttemptID: forked.ID, CreatedNewAttempt: true}, nil
		}
		worktreePath = c.worktrees.WorktreePath(attemptID)
	}

	c.publisher.AttemptState(a.ID, string(StateFollowupRunning))
	c.dispatch(func(bgCtx context.Context) {
		c.runFollowupProcess(bgCtx, a, worktreePath, prompt)
	})
	return &FollowupResult{ActualAttemptID: a.ID, CreatedNewAttempt: false}, nil
}

func (c *Coordinator) runFollowupProcess(ctx context.Context, a *store.Attempt, worktreePath, prompt string) {
	ok := c.runProcess(ctx, a, store.ProcessTypeFollowup, a.Executor, worktreePath, prompt)
	if ok {
		c.publisher.AttemptState(a.ID, string(StateIdle))
	} else {
		c.publisher.AttemptState(a.ID, string(StateMainFailed))
	}
}

// StartDevServer enforces the project-scoped singleton invariant: any
// DevServer process already running for the same project is stopped
// before the new one is spawned (§4.5 "Dev-server start").
func (c *Coordinator) StartDevServer(ctx context.Context, attemptID, devCommand string) error {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return attemperr.NotFound("attempt " + attemptID)
	}

	running, err := c.db.FindRunningDevServersByProject(ctx, a.ProjectID)
	if err != nil {
		return attemperr.Internal("failed to list running dev servers", err)
	}
	for _, p := range running {
		if _, killErr := c.supervisor.Kill(p.ID); killErr != nil {
			c.logger.Error("failed to stop prior dev server", "process_id", p.ID, "error", killErr)
		}
	}

	worktreePath := c.worktrees.WorktreePath(attemptID)
	c.publisher.AttemptState(a.ID, string(StateDevServerRunning))
	// Reuses the SetupScript adapter's shell-line launch semantics; a dev
	// command has no structured wire format either.
	c.dispatch(func(bgCtx context.Context) {
		c.runProcess(bgCtx, a, store.ProcessTypeDevServer, executor.TypeSetupScript, worktreePath, devCommand)
	})
	return nil
}

// StopAllResult is the aggregate outcome of Stop-all (§4.5).
type StopAllResult struct {
	Stopped int
	Errors  []error
}

// StopAll enumerates attempt's processes and kills each; stopping a
// non-running process is a no-op success. The aggregate call succeeds
// iff no per-process kill produced an error.
func (c *Coordinator) StopAll(ctx context.Context, attemptID string) (*StopAllResult, error) {
	procs, err := c.db.FindProcessesByAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.Internal("failed to list processes", err)
	}

	res := &StopAllResult{}
	for _, p := range procs {
		if p.Status != store.ProcessStatusRunning {
			continue
		}
		killed, killErr := c.supervisor.Kill(p.ID)
		if killErr != nil {
			res.Errors = append(res.Errors, killErr)
			continue
		}
		if killed {
			res.Stopped++
		}
	}
	c.publisher.AttemptState(attemptID, string(StateStopped))
	if len(res.Errors) > 0 {
		return res, attemperr.Internal("failed to stop one or more processes", errors.Join(res.Errors...))
	}
	return res, nil
}

// Stop kills a single process belonging to attemptID (§4.6 "stop(attempt,
// process)"). Stopping an already-terminal process is a no-op success,
// matching StopAll's per-process semantics.
func (c *Coordinator) Stop(ctx context.Context, attemptID, processID string) error {
	p, err := c.db.FindProcess(ctx, processID)
	if err != nil || p == nil {
		return attemperr.NotFound("process " + processID)
	}
	if p.AttemptID != attemptID {
		return attemperr.NotFound("process " + processID)
	}
	if p.Status != store.ProcessStatusRunning {
		return nil
	}
	if _, killErr := c.supervisor.Kill(processID); killErr != nil {
		return attemperr.Internal("failed to kill process", killErr)
	}
	return nil
}

// Merge requires the attempt to be Idle, performs C2.Merge, and on
// success records the merge commit and marks the task Done (§4.5).
func (c *Coordinator) Merge(ctx context.Context, attemptID string) (string, error) {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return "", attemperr.NotFound("attempt " + attemptID)
	}
	state, err := c.ExecutionStateFor(ctx, attemptID)
	if err != nil {
		return "", err
	}
	if state.State != StateIdle {
		return "", attemperr.InvalidState("attempt " + attemptID + " must be idle to merge (state=" + string(state.State) + ")")
	}

	mergeCommit, err := c.worktrees.Merge(ctx, attemptID, a.BranchName, a.BaseBranch)
	if err != nil {
		return "", err
	}
	if dbErr := c.db.UpdateAttemptMerge(ctx, attemptID, mergeCommit); dbErr != nil {
		return "", attemperr.Internal("failed to record merge commit", dbErr)
	}
	if dbErr := c.db.UpdateTaskStatus(ctx, a.TaskID, store.TaskStatusDone); dbErr != nil {
		return "", attemperr.Internal("failed to mark task done", dbErr)
	}
	c.publisher.AttemptState(attemptID, string(StateMerged))
	return mergeCommit, nil
}

// Rebase surfaces a conflict as a typed error rather than panicking;
// callers (the Integration Surface) translate attemperr.CodeRebaseConflict
// into a {success:false} envelope instead of an HTTP 5xx (§4.5, §7).
func (c *Coordinator) Rebase(ctx context.Context, attemptID, newBase string) (string, error) {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return "", attemperr.NotFound("attempt " + attemptID)
	}
	c.publisher.AttemptState(attemptID, string(StateRebasePending))
	effectiveBase, err := c.worktrees.Rebase(ctx, attemptID, a.BaseBranch, newBase)
	if err != nil {
		var ae *attemperr.AttemptError
		if errors.As(err, &ae) && ae.Code == attemperr.CodeRebaseConflict {
			c.publisher.AttemptState(attemptID, string(StateRebaseConflict))
			return "", err
		}
		return "", err
	}
	if dbErr := c.db.UpdateAttemptBaseBranch(ctx, attemptID, effectiveBase); dbErr != nil {
		return "", attemperr.Internal("failed to record rebased base branch", dbErr)
	}
	c.publisher.AttemptState(attemptID, string(StateIdle))
	return effectiveBase, nil
}

// ApprovePlan scans attempt's processes in reverse creation order for
// the most recent claude-plan PlanPresentation and forks it into a new
// child task, marking the original task Done (§4.5 "Plan approval").
func (c *Coordinator) ApprovePlan(ctx context.Context, attemptID string) (*store.Task, error) {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.NotFound("attempt " + attemptID)
	}
	original, err := c.db.FindTask(ctx, a.TaskID)
	if err != nil {
		return nil, attemperr.NotFound("task " + a.TaskID)
	}

	procs, err := c.db.FindProcessesByAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.Internal("failed to list processes", err)
	}

	var plan string
	found := false
	for i := len(procs) - 1; i >= 0; i-- {
		p := procs[i]
		if p.ExecutorType != executor.TypeClaudePlan {
			continue
		}
		adapter := c.registry.Resolve(p.ExecutorType)
		conv := adapter.NormalizeLogs(p.Stdout, p.WorkingDirectory)
		if text, ok := executor.LatestPlanPresentation(conv); ok {
			plan = text
			found = true
			break
		}
	}
	if !found {
		return nil, attemperr.PlanNotFound(attemptID)
	}

	child := &store.Task{
		ID:                uuid.NewString(),
		ProjectID:         a.ProjectID,
		Title:             "Execute Plan: " + original.Title,
		Description:       plan,
		Status:            store.TaskStatusTodo,
		ParentTaskAttempt: attemptID,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	if err := c.db.CreateTask(ctx, child); err != nil {
		return nil, attemperr.Internal("failed to create plan child task", err)
	}
	if err := c.db.UpdateTaskStatus(ctx, original.ID, store.TaskStatusDone); err != nil {
		return nil, attemperr.Internal("failed to mark original task done", err)
	}
	return child, nil
}

// Logs normalizes every process of attempt via its registry-resolved
// adapter, merges in stderr-derived error entries, and returns the
// combined, ordered entry stream (§4.5 "Logs", §3 ordering invariant).
func (c *Coordinator) Logs(ctx context.Context, attemptID string) ([]executor.NormalizedEntry, error) {
	procs, err := c.db.FindProcessesByAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.Internal("failed to list processes", err)
	}

	var all []executor.NormalizedEntry
	for _, p := range procs {
		adapter := c.registry.Resolve(p.ExecutorType)
		conv := adapter.NormalizeLogs(p.Stdout, p.WorkingDirectory)
		errEntries := executor.ErrorEntriesFromStderr(p.Stderr, time.Now().UTC())
		all = executor.MergeAndSort(append(all, conv.Entries...), errEntries)
	}
	return all, nil
}

// ExecutionStateFor derives the opaque ExecutionState for attemptID by
// collapsing its newest process's type/status (§4.5 "State derivation
// for the execution-state query").
func (c *Coordinator) ExecutionStateFor(ctx context.Context, attemptID string) (*ExecutionState, error) {
	a, err := c.db.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, attemperr.NotFound("attempt " + attemptID)
	}
	summaries, err := c.db.FindProcessSummaries(ctx, attemptID)
	if err != nil {
		return nil, attemperr.Internal("failed to list process summaries", err)
	}

	var latest *store.ProcessSummary
	if len(summaries) > 0 {
		latest = &summaries[len(summaries)-1]
	}

	return &ExecutionState{
		AttemptID:     attemptID,
		State:         deriveState(latest),
		LatestProcess: latest,
		MergeCommit:   a.MergeCommit,
		PRUrl:         a.PRUrl,
		PRStatus:      a.PRStatus,
		DevServerURL:  a.DevServerURL,
	}, nil
}
