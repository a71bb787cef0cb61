// Package api is the Integration Surface (C6): a stable HTTP front for
// attempt CRUD, execution control, git operations, and the follow-up/
// dev-server/plan-approval workflow verbs, backed by the Attempt
// Coordinator (C5), Attempt Store (C1), Worktree Manager (C2), Hosting
// Providers (C7), and Event Bus (C8).
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/randalmurphal/orc/internal/attemperr"
)

// envelope is the wire shape every handler writes: {success, data?, message?}
// (§6). Non-existence and ownership mismatches both map to NotFound.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSONResponse writes a successful envelope.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// JSONMessage writes a successful envelope carrying only a message, for
// verbs whose return value is a human-readable acknowledgement.
func JSONMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Message: message})
}

// HandleError is the primary error handler: it inspects err for the
// *attemperr.AttemptError taxonomy and picks the transport per §7's
// policy — RebaseConflict/MergeConflict are domain outcomes, not
// infrastructure failures, so they come back as a 200 envelope with
// success:false rather than an HTTP error status.
func HandleError(w http.ResponseWriter, err error) {
	var ae *attemperr.AttemptError
	if errors.As(err, &ae) {
		w.Header().Set("Content-Type", "application/json")
		switch ae.Code {
		case attemperr.CodeRebaseConflict, attemperr.CodeMergeConflict:
			w.WriteHeader(http.StatusOK)
		case attemperr.CodePRFailure:
			// PRFailure is also a recoverable domain outcome: callers
			// receive the subkind as the message field, not an error
			// status (§7 "callers receive the subkind as the message field").
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: string(ae.Subkind)})
			return
		default:
			w.WriteHeader(ae.HTTPStatus())
		}
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: ae.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: err.Error()})
}

// decodeJSON reads and decodes a JSON request body, writing a 400
// envelope and returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		JSONResponse400(w, "request body required")
		return false
	}
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		JSONResponse400(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// JSONResponse400 writes a 400 envelope for malformed requests (never
// produced by the attemperr taxonomy itself, since that taxonomy only
// describes domain outcomes reached after a request was parsed).
func JSONResponse400(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}
