package api

import (
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
	"github.com/randalmurphal/orc/internal/coordinator"
	"github.com/randalmurphal/orc/internal/store"
)

// handleListAttempts implements list(project, task) (§4.6).
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID := r.PathValue("project"), r.PathValue("task")

	task, err := s.db.FindTask(ctx, taskID)
	if err != nil || task == nil || task.ProjectID != projectID {
		HandleError(w, attemperr.NotFound("task "+taskID))
		return
	}

	attempts, err := s.db.FindAttemptsByTask(ctx, taskID)
	if err != nil {
		HandleError(w, attemperr.Internal("failed to list attempts", err))
		return
	}
	JSONResponse(w, attempts)
}

type createAttemptRequest struct {
	Executor   string `json:"executor"`
	BaseBranch string `json:"base_branch"`
}

// handleCreateAttempt implements create(project, task, executor?) ->
// attempt (§4.6). It returns as soon as the attempt row is created;
// provisioning and the main run continue in the background (§5
// "create_task_attempt request MUST return before provisioning
// completes").
func (s *Server) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID := r.PathValue("project"), r.PathValue("task")

	task, err := s.db.FindTask(ctx, taskID)
	if err != nil || task == nil || task.ProjectID != projectID {
		HandleError(w, attemperr.NotFound("task "+taskID))
		return
	}
	project, err := s.db.FindProject(ctx, projectID)
	if err != nil || project == nil {
		HandleError(w, attemperr.NotFound("project "+projectID))
		return
	}

	var req createAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Executor == "" {
		req.Executor = "coding-agent"
	}
	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = project.DefaultBaseBranch
	}

	attempt, err := s.coord.Create(ctx, coordinator.CreateRequest{
		TaskID:     taskID,
		ProjectID:  projectID,
		Executor:   req.Executor,
		BaseBranch: baseBranch,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, attempt)
}

// handleGetAttemptDetails implements get_details(attempt) (§4.6), served
// at the bare `GET /attempts/{id}/details` route per §6's HTTP surface
// shape (no project/task prefix available to validate against here).
func (s *Server) handleGetAttemptDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attemptID := r.PathValue("id")

	attempt, err := s.db.FindAttempt(ctx, attemptID)
	if err != nil || attempt == nil {
		HandleError(w, attemperr.NotFound("attempt "+attemptID))
		return
	}
	task, err := s.db.FindTask(ctx, attempt.TaskID)
	if err != nil || task == nil {
		HandleError(w, attemperr.NotFound("task "+attempt.TaskID))
		return
	}
	JSONResponse(w, map[string]any{"attempt": attempt, "task": task})
}

// handleGetChildren implements get_children(attempt) -> tasks (§4.6):
// child tasks created by a prior approve_plan call against this attempt.
func (s *Server) handleGetChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	children, err := s.db.FindTasksByParentAttempt(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, attemperr.Internal("failed to list child tasks", err))
		return
	}
	if children == nil {
		children = []store.Task{}
	}
	JSONResponse(w, children)
}
