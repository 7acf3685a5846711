package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type messageRepo struct{ db *dbx.DB }

const messageColumns = `id, team_id, sender_id, sender_type, recipient_id, recipient_type,
	task_id, content, delivered_at, seen_at, processed_at, created_at`

func scanMessage(row interface{ Scan(dest ...any) error }) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(&m.ID, &m.TeamID, &m.SenderID, &m.SenderType, &m.RecipientID, &m.RecipientType,
		&m.TaskID, &m.Content, &m.DeliveredAt, &m.SeenAt, &m.ProcessedAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) Create(ctx context.Context, tx store.Tx, m *domain.Message) error {
	pgtx := unwrap(tx)
	row := pgtx.QueryRow(ctx, `
		INSERT INTO messages (id, team_id, sender_id, sender_type, recipient_id, recipient_type, task_id, content, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		RETURNING created_at
	`, m.ID, m.TeamID, m.SenderID, m.SenderType, m.RecipientID, m.RecipientType, m.TaskID, m.Content)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return err
	}
	if m.RecipientType == domain.ActorTypeAgent {
		return dbx.NotifyJSON(ctx, pgtx, "new_message", map[string]any{
			"message_id": m.ID, "recipient_id": m.RecipientID, "recipient_type": string(m.RecipientType),
			"team_id": m.TeamID, "task_id": m.TaskID,
		})
	}
	return nil
}

func (r *messageRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	m, err := scanMessage(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("message", id)
	}
	return m, err
}

func (r *messageRepo) Update(ctx context.Context, tx store.Tx, m *domain.Message) error {
	_, err := unwrap(tx).Exec(ctx, `
		UPDATE messages SET delivered_at=$2, seen_at=$3, processed_at=$4 WHERE id=$1
	`, m.ID, m.DeliveredAt, m.SeenAt, m.ProcessedAt)
	return err
}

func (r *messageRepo) Inbox(ctx context.Context, agentID string, unprocessedOnly bool) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE recipient_id=$1 AND recipient_type='agent'`
	if unprocessedOnly {
		query += ` AND processed_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *messageRepo) ListUnprocessedForIdleAgents(ctx context.Context, limit int) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.team_id, m.sender_id, m.sender_type, m.recipient_id, m.recipient_type,
			m.task_id, m.content, m.delivered_at, m.seen_at, m.processed_at, m.created_at
		FROM messages m
		JOIN agents a ON a.id = m.recipient_id
		WHERE m.processed_at IS NULL AND m.recipient_type = 'agent' AND a.status = 'idle'
		ORDER BY m.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
