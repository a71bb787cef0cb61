// Package hosting provides a unified interface for git hosting providers (GitHub, GitLab),
// backing the `create_pr` operation of the Integration Surface (§4.6, §4.7).
package hosting

import "context"

// ProviderType identifies which hosting provider is in use.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderUnknown ProviderType = "unknown"
)

// Provider is the interface for git hosting providers. Implementations
// exist for GitHub (go-github) and GitLab (go-gitlab). Trimmed to the
// operations create_pr/branch_status actually need (§4.7 NEW) — the
// comment/review/CI-status surface the teacher's version exposed has no
// caller in this module's scope.
type Provider interface {
	CreatePR(ctx context.Context, opts PRCreateOptions) (*PR, error)
	GetPR(ctx context.Context, number int) (*PR, error)
	FindPRByBranch(ctx context.Context, branch string) (*PR, error)
	DeleteBranch(ctx context.Context, branch string) error

	CheckAuth(ctx context.Context) error
	Name() ProviderType
	OwnerRepo() (string, string)
}

// PR represents a pull request / merge request.
type PR struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	State      string `json:"state"` // open, closed, merged
	HeadBranch string `json:"head_branch"`
	BaseBranch string `json:"base_branch"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Mergeable  bool   `json:"mergeable"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// PRCreateOptions for creating a PR / merge request (§4.6 "create_pr(title, body?, base?)").
type PRCreateOptions struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Head   string   `json:"head"` // source branch
	Base   string   `json:"base"` // target branch
	Draft  bool     `json:"draft"`
	Labels []string `json:"labels,omitempty"`
}
