package api

import (
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
	"github.com/randalmurphal/orc/internal/editor"
)

type openEditorRequest struct {
	EditorType string `json:"editor_type,omitempty"`
}

// handleOpenEditor implements open_in_editor(editor_type?) (§4.6): it
// resolves the editor command from the request or the project's
// configured default, spawns it detached against the worktree path, and
// returns success once the spawn succeeds without waiting for the editor
// to exit.
func (s *Server) handleOpenEditor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	var req openEditorRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	editorType := req.EditorType
	if editorType == "" {
		editorType = res.Project.EditorType
	}

	worktreePath := s.worktrees.WorktreePath(res.Attempt.ID)
	if err := editor.Open(editorType, res.Project.EditorCommand, worktreePath); err != nil {
		HandleError(w, attemperr.Internal("failed to open editor", err))
		return
	}
	JSONMessage(w, "editor opened")
}
