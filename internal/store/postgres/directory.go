package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type organizationRepo struct{ db *dbx.DB }

func (r *organizationRepo) Create(ctx context.Context, tx store.Tx, org *domain.Organization) error {
	_, err := unwrap(tx).Exec(ctx, `INSERT INTO organizations (id, name, slug) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.Slug)
	return err
}

func (r *organizationRepo) Get(ctx context.Context, id string) (*domain.Organization, error) {
	var o domain.Organization
	err := r.db.QueryRow(ctx, `SELECT id, name, slug FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Slug)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("organization", id)
	}
	return &o, err
}

func (r *organizationRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var o domain.Organization
	err := r.db.QueryRow(ctx, `SELECT id, name, slug FROM organizations WHERE slug = $1`, slug).
		Scan(&o.ID, &o.Name, &o.Slug)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("organization", slug)
	}
	return &o, err
}

type teamRepo struct{ db *dbx.DB }

func (r *teamRepo) Create(ctx context.Context, tx store.Tx, t *domain.Team) error {
	cfg, err := marshalTeamConfig(t.Config)
	if err != nil {
		return err
	}
	_, err = unwrap(tx).Exec(ctx, `INSERT INTO teams (id, org_id, name, slug, config) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.OrgID, t.Name, t.Slug, cfg)
	return err
}

func (r *teamRepo) Get(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	var cfg []byte
	err := r.db.QueryRow(ctx, `SELECT id, org_id, name, slug, config FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.OrgID, &t.Name, &t.Slug, &cfg)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("team", id)
	}
	if err != nil {
		return nil, err
	}
	t.Config, err = unmarshalTeamConfig(cfg)
	return &t, err
}

func (r *teamRepo) GetBySlug(ctx context.Context, orgID, slug string) (*domain.Team, error) {
	var t domain.Team
	var cfg []byte
	err := r.db.QueryRow(ctx, `SELECT id, org_id, name, slug, config FROM teams WHERE org_id = $1 AND slug = $2`, orgID, slug).
		Scan(&t.ID, &t.OrgID, &t.Name, &t.Slug, &cfg)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("team", slug)
	}
	if err != nil {
		return nil, err
	}
	t.Config, err = unmarshalTeamConfig(cfg)
	return &t, err
}

func (r *teamRepo) Update(ctx context.Context, tx store.Tx, t *domain.Team) error {
	cfg, err := marshalTeamConfig(t.Config)
	if err != nil {
		return err
	}
	_, err = unwrap(tx).Exec(ctx, `UPDATE teams SET name=$2, slug=$3, config=$4 WHERE id=$1`,
		t.ID, t.Name, t.Slug, cfg)
	return err
}

func (r *teamRepo) ListByOrg(ctx context.Context, orgID string) ([]*domain.Team, error) {
	rows, err := r.db.Query(ctx, `SELECT id, org_id, name, slug, config FROM teams WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Team
	for rows.Next() {
		var t domain.Team
		var cfg []byte
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.Slug, &cfg); err != nil {
			return nil, err
		}
		if t.Config, err = unmarshalTeamConfig(cfg); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

type agentRepo struct{ db *dbx.DB }

func scanAgent(row interface {
	Scan(dest ...any) error
}) (*domain.Agent, error) {
	var a domain.Agent
	var cfg []byte
	if err := row.Scan(&a.ID, &a.TeamID, &a.Name, &a.Role, &a.Model, &a.Status, &cfg, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	a.Config, err = unmarshalAgentConfig(cfg)
	return &a, err
}

func (r *agentRepo) Create(ctx context.Context, tx store.Tx, a *domain.Agent) error {
	cfg, err := marshalAgentConfig(a.Config)
	if err != nil {
		return err
	}
	_, err = unwrap(tx).Exec(ctx, `
		INSERT INTO agents (id, team_id, name, role, model, status, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, a.ID, a.TeamID, a.Name, a.Role, a.Model, a.Status, cfg)
	return err
}

func (r *agentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx, `SELECT id, team_id, name, role, model, status, config, created_at, updated_at FROM agents WHERE id=$1`, id)
	a, err := scanAgent(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("agent", id)
	}
	return a, err
}

func (r *agentRepo) GetForUpdate(ctx context.Context, tx store.Tx, id string) (*domain.Agent, error) {
	row := unwrap(tx).QueryRow(ctx, `
		SELECT id, team_id, name, role, model, status, config, created_at, updated_at
		FROM agents WHERE id=$1 FOR UPDATE
	`, id)
	a, err := scanAgent(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("agent", id)
	}
	return a, err
}

func (r *agentRepo) GetByName(ctx context.Context, teamID, name string) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, team_id, name, role, model, status, config, created_at, updated_at
		FROM agents WHERE team_id=$1 AND name=$2
	`, teamID, name)
	a, err := scanAgent(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("agent", name)
	}
	return a, err
}

func (r *agentRepo) Update(ctx context.Context, tx store.Tx, a *domain.Agent) error {
	cfg, err := marshalAgentConfig(a.Config)
	if err != nil {
		return err
	}
	_, err = unwrap(tx).Exec(ctx, `
		UPDATE agents SET name=$2, role=$3, model=$4, status=$5, config=$6, updated_at=now() WHERE id=$1
	`, a.ID, a.Name, a.Role, a.Model, a.Status, cfg)
	return err
}

func (r *agentRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.Agent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, team_id, name, role, model, status, config, created_at, updated_at FROM agents WHERE team_id=$1
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *agentRepo) FindIdleByRole(ctx context.Context, teamID string, role domain.AgentRole) (*domain.Agent, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, team_id, name, role, model, status, config, created_at, updated_at
		FROM agents WHERE team_id=$1 AND role=$2 AND status='idle' ORDER BY updated_at ASC LIMIT 1
	`, teamID, role)
	a, err := scanAgent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *agentRepo) ListStuckWorking(ctx context.Context, olderThanMinutes int) ([]*domain.Agent, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT a.id, a.team_id, a.name, a.role, a.model, a.status, a.config, a.created_at, a.updated_at
		FROM agents a
		WHERE a.status = 'working'
		AND a.updated_at < now() - interval '%d minutes'
		AND NOT EXISTS (
			SELECT 1 FROM sessions s
			WHERE s.agent_id = a.id AND s.started_at > now() - interval '%d minutes'
		)
	`, olderThanMinutes, olderThanMinutes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type repositoryRepo struct{ db *dbx.DB }

func (r *repositoryRepo) Create(ctx context.Context, tx store.Tx, repo *domain.Repository) error {
	cfg, err := marshalMap(repo.Config)
	if err != nil {
		return err
	}
	_, err = unwrap(tx).Exec(ctx, `
		INSERT INTO repositories (id, team_id, name, local_path, default_branch, config) VALUES ($1,$2,$3,$4,$5,$6)
	`, repo.ID, repo.TeamID, repo.Name, repo.LocalPath, repo.DefaultBranch, cfg)
	return err
}

func (r *repositoryRepo) Get(ctx context.Context, id string) (*domain.Repository, error) {
	var repo domain.Repository
	var cfg []byte
	err := r.db.QueryRow(ctx, `SELECT id, team_id, name, local_path, default_branch, config FROM repositories WHERE id=$1`, id).
		Scan(&repo.ID, &repo.TeamID, &repo.Name, &repo.LocalPath, &repo.DefaultBranch, &cfg)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("repository", id)
	}
	if err != nil {
		return nil, err
	}
	repo.Config, err = unmarshalMap(cfg)
	return &repo, err
}

func (r *repositoryRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.Repository, error) {
	rows, err := r.db.Query(ctx, `SELECT id, team_id, name, local_path, default_branch, config FROM repositories WHERE team_id=$1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Repository
	for rows.Next() {
		var repo domain.Repository
		var cfg []byte
		if err := rows.Scan(&repo.ID, &repo.TeamID, &repo.Name, &repo.LocalPath, &repo.DefaultBranch, &cfg); err != nil {
			return nil, err
		}
		if repo.Config, err = unmarshalMap(cfg); err != nil {
			return nil, err
		}
		out = append(out, &repo)
	}
	return out, rows.Err()
}
