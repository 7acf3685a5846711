package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type humanRequestRepo struct{ db *dbx.DB }

const humanRequestColumns = `id, team_id, agent_id, task_id, kind, question, options, status,
	response, responded_by, timeout_at, created_at, resolved_at`

func scanHumanRequest(row interface{ Scan(dest ...any) error }) (*domain.HumanRequest, error) {
	var h domain.HumanRequest
	if err := row.Scan(&h.ID, &h.TeamID, &h.AgentID, &h.TaskID, &h.Kind, &h.Question, &h.Options,
		&h.Status, &h.Response, &h.RespondedBy, &h.TimeoutAt, &h.CreatedAt, &h.ResolvedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *humanRequestRepo) Create(ctx context.Context, tx store.Tx, h *domain.HumanRequest) error {
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO human_requests (id, team_id, agent_id, task_id, kind, question, options, status, timeout_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		RETURNING created_at
	`, h.ID, h.TeamID, h.AgentID, h.TaskID, h.Kind, h.Question, h.Options, h.Status, h.TimeoutAt)
	return row.Scan(&h.CreatedAt)
}

func (r *humanRequestRepo) Get(ctx context.Context, id string) (*domain.HumanRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT `+humanRequestColumns+` FROM human_requests WHERE id=$1`, id)
	h, err := scanHumanRequest(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("human_request", id)
	}
	return h, err
}

func (r *humanRequestRepo) Update(ctx context.Context, tx store.Tx, h *domain.HumanRequest) error {
	pgtx := unwrap(tx)
	_, err := pgtx.Exec(ctx, `
		UPDATE human_requests SET response=$2, responded_by=$3, status=$4, resolved_at=$5 WHERE id=$1
	`, h.ID, h.Response, h.RespondedBy, h.Status, h.ResolvedAt)
	if err != nil {
		return err
	}
	if h.Status == domain.HumanRequestStatusResolved {
		return dbx.NotifyJSON(ctx, pgtx, "human_request_resolved", map[string]any{
			"request_id": h.ID, "agent_id": h.AgentID, "team_id": h.TeamID, "status": string(h.Status),
		})
	}
	return nil
}

func (r *humanRequestRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.HumanRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+humanRequestColumns+` FROM human_requests WHERE team_id=$1 ORDER BY created_at DESC
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.HumanRequest
	for rows.Next() {
		h, err := scanHumanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *humanRequestRepo) ListExpiredPending(ctx context.Context) ([]*domain.HumanRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+humanRequestColumns+` FROM human_requests WHERE status='pending' AND timeout_at < now()
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.HumanRequest
	for rows.Next() {
		h, err := scanHumanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
