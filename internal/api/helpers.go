package api

import (
	"context"
	"net/http"
	"time"

	"github.com/randalmurphal/orc/internal/attemperr"
	"github.com/randalmurphal/orc/internal/store"
)

// shutdownGrace bounds how long StartContext waits for in-flight
// requests to finish once its context is canceled.
const shutdownGrace = 5 * time.Second

// resolved carries the validated (project, task, attempt) triple a
// handler needs, after confirming ownership at every level (§4.6 "Every
// call validates the (project, task, attempt) triple consistency and
// returns a NotFound kind on mismatch").
type resolved struct {
	Project *store.Project
	Task    *store.Task
	Attempt *store.Attempt
}

// resolveTriple loads project, task, and attempt by id and confirms
// task.ProjectID == project and attempt.TaskID == task (attempt.ProjectID
// is checked too, defensively, since both fields are denormalized onto
// Attempt).
func (s *Server) resolveTriple(ctx context.Context, projectID, taskID, attemptID string) (*resolved, error) {
	project, err := s.db.FindProject(ctx, projectID)
	if err != nil || project == nil {
		return nil, attemperr.NotFound("project " + projectID)
	}
	task, err := s.db.FindTask(ctx, taskID)
	if err != nil || task == nil || task.ProjectID != projectID {
		return nil, attemperr.NotFound("task " + taskID)
	}
	attempt, err := s.db.FindAttempt(ctx, attemptID)
	if err != nil || attempt == nil || attempt.TaskID != taskID || attempt.ProjectID != projectID {
		return nil, attemperr.NotFound("attempt " + attemptID)
	}
	return &resolved{Project: project, Task: task, Attempt: attempt}, nil
}

// pathTriple pulls {project}, {task}, {id} path values off r, matching
// the route patterns registered in registerRoutes.
func pathTriple(r *http.Request) (project, task, attempt string) {
	return r.PathValue("project"), r.PathValue("task"), r.PathValue("id")
}
