package api

import (
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
)

// handleGetProcesses implements get_processes(attempt) (§4.6).
func (s *Server) handleGetProcesses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	procs, err := s.db.FindProcessesByAttempt(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, attemperr.Internal("failed to list processes", err))
		return
	}
	JSONResponse(w, procs)
}

// handleGetProcess implements get_process(project, process) (§4.6).
func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, processID := r.PathValue("project"), r.PathValue("process")

	p, err := s.db.FindProcess(ctx, processID)
	if err != nil || p == nil || p.ProjectID != projectID {
		HandleError(w, attemperr.NotFound("process "+processID))
		return
	}
	JSONResponse(w, p)
}

// handleGetLogs implements get_logs(attempt) -> ProcessLogs[] (§4.6): the
// merged, ordered NormalizedEntry stream across every process of the
// attempt.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	entries, err := s.coord.Logs(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, entries)
}

// handleGetState implements get_state(attempt) -> TaskAttemptState (§4.6).
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	state, err := s.coord.ExecutionStateFor(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, state)
}

// handleStopAll implements stop_all(attempt) (§4.6).
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	result, err := s.coord.StopAll(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, result)
}

// handleStopProcess implements stop(attempt, process) (§4.6).
func (s *Server) handleStopProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)
	processID := r.PathValue("process")

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	if err := s.coord.Stop(ctx, res.Attempt.ID, processID); err != nil {
		HandleError(w, err)
		return
	}
	JSONMessage(w, "process stopped")
}
