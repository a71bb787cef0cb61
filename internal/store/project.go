package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const projectColumns = `id, repo_path, default_base_branch, setup_script, dev_script,
	github_token, gitlab_token, pr_base_branch, editor_type, editor_command,
	created_at, updated_at`

// CreateProject inserts a new project row.
func (d *DB) CreateProject(ctx context.Context, p *Project) error {
	if p.DefaultBaseBranch == "" {
		p.DefaultBaseBranch = "main"
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := d.drv.Exec(ctx, `
		INSERT INTO project (id, repo_path, default_base_branch, setup_script, dev_script,
			github_token, gitlab_token, pr_base_branch, editor_type, editor_command,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.RepoPath, p.DefaultBaseBranch, nullIfEmpty(p.SetupScript), nullIfEmpty(p.DevScript),
		nullIfEmpty(p.GitHubToken), nullIfEmpty(p.GitLabToken), nullIfEmpty(p.PRBaseBranch),
		nullIfEmpty(p.EditorType), nullIfEmpty(p.EditorCommand),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindProject retrieves a project by id, or nil if it does not exist.
func (d *DB) FindProject(ctx context.Context, id string) (*Project, error) {
	row := d.drv.QueryRow(ctx, `SELECT `+projectColumns+` FROM project WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}
	return p, nil
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var setupScript, devScript, githubToken, gitlabToken, prBaseBranch, editorType, editorCommand sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.RepoPath, &p.DefaultBaseBranch, &setupScript, &devScript,
		&githubToken, &gitlabToken, &prBaseBranch, &editorType, &editorCommand,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.SetupScript = setupScript.String
	p.DevScript = devScript.String
	p.GitHubToken = githubToken.String
	p.GitLabToken = gitlabToken.String
	p.PRBaseBranch = prBaseBranch.String
	p.EditorType = editorType.String
	p.EditorCommand = editorCommand.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}
