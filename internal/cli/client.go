package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// envelope mirrors the Integration Surface's {success, data, message}
// response shape (internal/api/response.go's envelope) so the CLI
// decodes exactly what the server sends.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client is a thin HTTP client for the Integration Surface, used by the
// CLI as its reference implementation of the §6 external interface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client targeting the server at baseURL (e.g.
// "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return fmt.Errorf("%s", env.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func attemptsPath(project, task string) string {
	return fmt.Sprintf("/api/projects/%s/tasks/%s/attempts", project, task)
}

func attemptPath(project, task, attempt, suffix string) string {
	return fmt.Sprintf("/api/projects/%s/tasks/%s/attempts/%s%s", project, task, attempt, suffix)
}

// CreateAttemptRequest mirrors api.createAttemptRequest.
type CreateAttemptRequest struct {
	Executor   string `json:"executor"`
	BaseBranch string `json:"base_branch,omitempty"`
}

func (c *Client) CreateAttempt(ctx context.Context, project, task string, req CreateAttemptRequest) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodPost, attemptsPath(project, task), req, &out)
}

func (c *Client) ListAttempts(ctx context.Context, project, task string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptsPath(project, task), nil, &out)
}

func (c *Client) GetAttemptDetails(ctx context.Context, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, "/api/attempts/"+attempt+"/details", nil, &out)
}

func (c *Client) GetChildren(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptPath(project, task, attempt, "/children"), nil, &out)
}

func (c *Client) GetLogs(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptPath(project, task, attempt, "/logs"), nil, &out)
}

func (c *Client) GetState(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptPath(project, task, attempt, "/state"), nil, &out)
}

func (c *Client) StopAll(ctx context.Context, project, task, attempt string) error {
	return c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/stop"), nil, nil)
}

func (c *Client) Diff(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptPath(project, task, attempt, "/diff"), nil, &out)
}

func (c *Client) Rebase(ctx context.Context, project, task, attempt, newBase string) error {
	var body any
	if newBase != "" {
		body = map[string]string{"new_base": newBase}
	}
	return c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/rebase"), body, nil)
}

func (c *Client) Merge(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/merge"), nil, &out)
}

func (c *Client) BranchStatus(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodGet, attemptPath(project, task, attempt, "/branch-status"), nil, &out)
}

func (c *Client) CreatePR(ctx context.Context, project, task, attempt, title, body string) (json.RawMessage, error) {
	var out json.RawMessage
	req := map[string]string{"title": title}
	if body != "" {
		req["body"] = body
	}
	return out, c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/create-pr"), req, &out)
}

func (c *Client) FollowUp(ctx context.Context, project, task, attempt, prompt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/follow-up"), map[string]string{"prompt": prompt}, &out)
}

func (c *Client) ApprovePlan(ctx context.Context, project, task, attempt string) (json.RawMessage, error) {
	var out json.RawMessage
	return out, c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/approve-plan"), nil, &out)
}

func (c *Client) StartDevServer(ctx context.Context, project, task, attempt string) error {
	return c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/start-dev-server"), nil, nil)
}

func (c *Client) OpenEditor(ctx context.Context, project, task, attempt, editorType string) error {
	var body any
	if editorType != "" {
		body = map[string]string{"editor_type": editorType}
	}
	return c.call(ctx, http.MethodPost, attemptPath(project, task, attempt, "/open-editor"), body, nil)
}
