package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type mergeJobRepo struct{ db *dbx.DB }

const mergeJobColumns = `id, task_id, repo_id, status, strategy, merge_commit, error, created_at, started_at, completed_at`

func scanMergeJob(row interface{ Scan(dest ...any) error }) (*domain.MergeJob, error) {
	var j domain.MergeJob
	if err := row.Scan(&j.ID, &j.TaskID, &j.RepoID, &j.Status, &j.Strategy, &j.MergeCommit, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *mergeJobRepo) Create(ctx context.Context, tx store.Tx, j *domain.MergeJob) error {
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO merge_jobs (id, task_id, repo_id, status, strategy, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING created_at
	`, j.ID, j.TaskID, j.RepoID, j.Status, j.Strategy)
	return row.Scan(&j.CreatedAt)
}

func (r *mergeJobRepo) Get(ctx context.Context, id string) (*domain.MergeJob, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mergeJobColumns+` FROM merge_jobs WHERE id=$1`, id)
	j, err := scanMergeJob(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("merge_job", id)
	}
	return j, err
}

func (r *mergeJobRepo) Update(ctx context.Context, tx store.Tx, j *domain.MergeJob) error {
	_, err := unwrap(tx).Exec(ctx, `
		UPDATE merge_jobs SET status=$2, merge_commit=$3, error=$4, started_at=$5, completed_at=$6 WHERE id=$1
	`, j.ID, j.Status, j.MergeCommit, j.Error, j.StartedAt, j.CompletedAt)
	return err
}

func (r *mergeJobRepo) ListByTask(ctx context.Context, taskID int64) ([]*domain.MergeJob, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+mergeJobColumns+` FROM merge_jobs WHERE task_id=$1 ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.MergeJob
	for rows.Next() {
		j, err := scanMergeJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimNextQueued uses FOR UPDATE SKIP LOCKED so multiple merge-worker
// processes can poll the same queue without blocking on each other (§4.7).
func (r *mergeJobRepo) ClaimNextQueued(ctx context.Context) (*domain.MergeJob, error) {
	var job *domain.MergeJob
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+mergeJobColumns+` FROM merge_jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`)
		j, err := scanMergeJob(row)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE merge_jobs SET status='running', started_at=now() WHERE id=$1`, j.ID); err != nil {
			return err
		}
		j.Status = domain.MergeJobStatusRunning
		job = j
		return nil
	})
	return job, err
}
