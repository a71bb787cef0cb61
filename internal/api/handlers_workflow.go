package api

import (
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
)

type followUpRequest struct {
	Prompt string `json:"prompt"`
}

// handleFollowUp implements follow_up(prompt) -> {actual_attempt_id,
// created_new_attempt, message} (§4.6).
func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	var req followUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		JSONResponse400(w, "prompt is required")
		return
	}

	result, err := s.coord.Followup(ctx, res.Attempt.ID, req.Prompt)
	if err != nil {
		HandleError(w, err)
		return
	}

	message := "follow-up queued"
	if result.CreatedNewAttempt {
		message = "worktree was lost; forked a new attempt for the follow-up"
	}
	JSONResponse(w, map[string]any{
		"actual_attempt_id":   result.ActualAttemptID,
		"created_new_attempt": result.CreatedNewAttempt,
		"message":             message,
	})
}

// handleStartDevServer implements start_dev_server (§4.6). The dev
// server slot is a project-wide singleton; the Coordinator stops any
// prior instance before starting the new one.
func (s *Server) handleStartDevServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}
	if res.Project.DevScript == "" {
		HandleError(w, attemperr.InvalidState("project "+res.Project.ID+" has no dev_script configured"))
		return
	}

	if err := s.coord.StartDevServer(ctx, res.Attempt.ID, res.Project.DevScript); err != nil {
		HandleError(w, err)
		return
	}
	JSONMessage(w, "dev server starting")
}

// handleApprovePlan implements approve_plan -> {new_task_id,
// created_new_attempt:true} (§4.6).
func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	child, err := s.coord.ApprovePlan(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{
		"new_task_id":          child.ID,
		"created_new_attempt":  true,
	})
}
