package api

import (
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
	"github.com/randalmurphal/orc/internal/hosting"
	"github.com/randalmurphal/orc/internal/store"
)

// handleDiff implements diff (§4.6).
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	diff, err := s.worktrees.Diff(ctx, res.Attempt.ID, res.Attempt.BaseBranch)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, diff)
}

type deleteFileRequest struct {
	Path string `json:"path"`
}

// handleDeleteFile implements delete_file(path) (§4.6).
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	var req deleteFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		JSONResponse400(w, "path is required")
		return
	}

	if err := s.worktrees.DeleteFile(ctx, res.Attempt.ID, req.Path); err != nil {
		HandleError(w, err)
		return
	}
	JSONMessage(w, "file deleted")
}

type rebaseRequest struct {
	NewBase string `json:"new_base,omitempty"`
}

// handleRebase implements rebase(new_base?) (§4.6). On conflict the
// response is a 200 envelope with success:false (§7), not an HTTP error.
func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	var req rebaseRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	effectiveBase, err := s.coord.Rebase(ctx, res.Attempt.ID, req.NewBase)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]string{"base_branch": effectiveBase})
}

// handleMerge implements merge (§4.6). On conflict the response is a 200
// envelope with success:false (§7), not an HTTP error.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	mergeCommit, err := s.coord.Merge(ctx, res.Attempt.ID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]string{"merge_commit": mergeCommit})
}

// handleBranchStatus implements branch_status (§4.6), supplementing the
// enum with the raw ahead/behind counts (SUPPLEMENTED FEATURES).
func (s *Server) handleBranchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	status, err := s.worktrees.BranchStatus(ctx, res.Attempt.ID, res.Attempt.BaseBranch)
	if err != nil {
		HandleError(w, attemperr.Internal("failed to compute branch status", err))
		return
	}
	JSONResponse(w, status)
}

type createPRRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Base   string   `json:"base,omitempty"`
	Draft  bool     `json:"draft,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// handleCreatePR implements create_pr(title, body?, base?) (§4.6),
// supplemented with draft mode and labels (SUPPLEMENTED FEATURES).
// PRFailure is a recoverable domain outcome (§7): the hosting provider
// error is mapped to a subkind and returned in the envelope, not as an
// HTTP error status.
func (s *Server) handleCreatePR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, taskID, attemptID := pathTriple(r)

	res, err := s.resolveTriple(ctx, projectID, taskID, attemptID)
	if err != nil {
		HandleError(w, err)
		return
	}

	var req createPRRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		JSONResponse400(w, "title is required")
		return
	}
	base := req.Base
	if base == "" {
		base = res.Project.PRBaseBranch
	}
	if base == "" {
		base = res.Attempt.BaseBranch
	}

	worktreePath := s.worktrees.WorktreePath(res.Attempt.ID)
	provider, err := hosting.NewProvider(worktreePath, hostingConfigFor(res.Project))
	if err != nil {
		HandleError(w, attemperr.PRFailure(attemperr.PRFailureGeneric, err))
		return
	}

	pr, err := provider.CreatePR(ctx, hosting.PRCreateOptions{
		Title:  req.Title,
		Body:   req.Body,
		Head:   res.Attempt.BranchName,
		Base:   base,
		Draft:  req.Draft,
		Labels: req.Labels,
	})
	if err != nil {
		// github.go/gitlab.go's mapAPIError already returns a
		// *attemperr.AttemptError with the right PRFailure subkind;
		// HandleError renders it as a success:false envelope per §7.
		HandleError(w, err)
		return
	}

	if dbErr := s.db.UpdateAttemptPR(ctx, res.Attempt.ID, pr.HTMLURL, pr.Number, pr.State); dbErr != nil {
		HandleError(w, attemperr.Internal("failed to record PR", dbErr))
		return
	}
	JSONResponse(w, pr)
}

// hostingConfigFor derives a hosting.Config from a project's stored
// tokens/base URL; NewProvider still auto-detects GitHub vs GitLab from
// the git remote, so only the token needs to flow through here.
func hostingConfigFor(p *store.Project) hosting.Config {
	cfg := hosting.Config{Provider: "auto"}
	if p.GitHubToken != "" {
		cfg.Token = p.GitHubToken
	} else if p.GitLabToken != "" {
		cfg.Token = p.GitLabToken
	}
	return cfg
}
