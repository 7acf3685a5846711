package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type taskRepo struct{ db *dbx.DB }

func scanTask(row interface{ Scan(dest ...any) error }) (*domain.Task, error) {
	var t domain.Task
	var meta []byte
	if err := row.Scan(&t.ID, &t.TeamID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DRIID, &t.AssigneeID, &t.DependsOn, &t.RepoIDs, &t.Tags, &t.Branch, &meta,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	var err error
	t.Metadata, err = unmarshalTaskMetadata(meta)
	return &t, err
}

const taskColumns = `id, team_id, title, description, status, priority, dri_id, assignee_id,
	depends_on, repo_ids, tags, branch, metadata, created_at, updated_at, completed_at`

func (r *taskRepo) Create(ctx context.Context, tx store.Tx, t *domain.Task) error {
	meta, err := marshalTaskMetadata(t.Metadata)
	if err != nil {
		return err
	}
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO tasks (id, team_id, title, description, status, priority, dri_id, assignee_id,
			depends_on, repo_ids, tags, branch, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
		RETURNING created_at, updated_at
	`, t.ID, t.TeamID, t.Title, t.Description, t.Status, t.Priority, t.DRIID, t.AssigneeID,
		t.DependsOn, t.RepoIDs, t.Tags, t.Branch, meta)
	return row.Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *taskRepo) Get(ctx context.Context, id int64) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	t, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("task", strconv.FormatInt(id, 10))
	}
	return t, err
}

func (r *taskRepo) GetForUpdate(ctx context.Context, tx store.Tx, id int64) (*domain.Task, error) {
	row := unwrap(tx).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id)
	t, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("task", strconv.FormatInt(id, 10))
	}
	return t, err
}

func (r *taskRepo) Update(ctx context.Context, tx store.Tx, t *domain.Task) error {
	meta, err := marshalTaskMetadata(t.Metadata)
	if err != nil {
		return err
	}
	pgtx := unwrap(tx)
	var oldStatus domain.TaskStatus
	if err := pgtx.QueryRow(ctx, `SELECT status FROM tasks WHERE id=$1`, t.ID).Scan(&oldStatus); err != nil {
		return err
	}
	_, err = pgtx.Exec(ctx, `
		UPDATE tasks SET title=$2, description=$3, status=$4, priority=$5, dri_id=$6, assignee_id=$7,
			depends_on=$8, repo_ids=$9, tags=$10, branch=$11, metadata=$12, updated_at=now(), completed_at=$13
		WHERE id=$1
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DRIID, t.AssigneeID,
		t.DependsOn, t.RepoIDs, t.Tags, t.Branch, meta, t.CompletedAt)
	if err != nil {
		return err
	}
	return dbx.NotifyJSON(ctx, pgtx, "task_status_changed", map[string]any{
		"task_id": t.ID, "team_id": t.TeamID, "old_status": string(oldStatus), "new_status": string(t.Status),
	})
}

func (r *taskRepo) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE team_id = $1`
	args := []any{filter.TeamID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		query += " AND assignee_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *taskRepo) NextID(ctx context.Context, tx store.Tx) (int64, error) {
	var id int64
	err := unwrap(tx).QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('tasks', 'id'))`).Scan(&id)
	return id, err
}

func (r *taskRepo) MostRecentInProgress(ctx context.Context, assigneeID string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE assignee_id=$1 AND status='in_progress'
		ORDER BY updated_at DESC LIMIT 1
	`, assigneeID)
	t, err := scanTask(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

