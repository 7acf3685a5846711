package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type sessionRepo struct{ db *dbx.DB }

const sessionColumns = `id, agent_id, task_id, started_at, ended_at, tokens_in, tokens_out,
	cache_read, cache_write, cost_usd, model, error`

func scanSession(row interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.ID, &s.AgentID, &s.TaskID, &s.StartedAt, &s.EndedAt, &s.TokensIn, &s.TokensOut,
		&s.CacheRead, &s.CacheWrite, &s.CostUSD, &s.Model, &s.Error); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, tx store.Tx, s *domain.Session) error {
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO sessions (id, agent_id, task_id, started_at, model) VALUES ($1,$2,$3,now(),$4)
		RETURNING started_at
	`, s.ID, s.AgentID, s.TaskID, s.Model)
	return row.Scan(&s.StartedAt)
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("session", id)
	}
	return s, err
}

func (r *sessionRepo) Update(ctx context.Context, tx store.Tx, s *domain.Session) error {
	_, err := unwrap(tx).Exec(ctx, `
		UPDATE sessions SET ended_at=$2, tokens_in=$3, tokens_out=$4, cache_read=$5, cache_write=$6,
			cost_usd=$7, error=$8 WHERE id=$1
	`, s.ID, s.EndedAt, s.TokensIn, s.TokensOut, s.CacheRead, s.CacheWrite, s.CostUSD, s.Error)
	return err
}

func (r *sessionRepo) OpenForAgent(ctx context.Context, agentID string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE agent_id=$1 AND ended_at IS NULL`, agentID)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *sessionRepo) SumCostSince(ctx context.Context, agentID string, since time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(cost_usd), 0) FROM sessions WHERE agent_id=$1 AND started_at >= $2
	`, agentID, since).Scan(&total)
	return total, err
}

func (r *sessionRepo) SumCostForTask(ctx context.Context, taskID int64) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(cost_usd), 0) FROM sessions WHERE task_id=$1`, taskID).Scan(&total)
	return total, err
}

func (r *sessionRepo) ListForTeamSince(ctx context.Context, teamID string, days int) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.agent_id, s.task_id, s.started_at, s.ended_at, s.tokens_in, s.tokens_out,
			s.cache_read, s.cache_write, s.cost_usd, s.model, s.error
		FROM sessions s
		JOIN agents a ON a.id = s.agent_id
		WHERE a.team_id = $1 AND s.started_at >= now() - make_interval(days => $2)
		ORDER BY s.started_at DESC
	`, teamID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
