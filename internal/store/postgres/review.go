package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
)

type reviewRepo struct{ db *dbx.DB }

const reviewColumns = `id, task_id, attempt, reviewer_id, reviewer_type, verdict, summary, created_at, resolved_at`

func scanReview(row interface{ Scan(dest ...any) error }) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(&rv.ID, &rv.TaskID, &rv.Attempt, &rv.ReviewerID, &rv.ReviewerType,
		&rv.Verdict, &rv.Summary, &rv.CreatedAt, &rv.ResolvedAt); err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepo) Create(ctx context.Context, tx store.Tx, rv *domain.Review) error {
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO reviews (id, task_id, attempt, reviewer_id, reviewer_type, verdict, summary, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING created_at
	`, rv.ID, rv.TaskID, rv.Attempt, rv.ReviewerID, rv.ReviewerType, rv.Verdict, rv.Summary)
	return row.Scan(&rv.CreatedAt)
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*domain.Review, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1`, id)
	rv, err := scanReview(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("review", id)
	}
	if err != nil {
		return nil, err
	}
	rv.Comments, err = r.comments(ctx, id)
	return rv, err
}

func (r *reviewRepo) Update(ctx context.Context, tx store.Tx, rv *domain.Review) error {
	_, err := unwrap(tx).Exec(ctx, `
		UPDATE reviews SET verdict=$2, summary=$3, resolved_at=$4 WHERE id=$1
	`, rv.ID, rv.Verdict, rv.Summary, rv.ResolvedAt)
	return err
}

func (r *reviewRepo) MaxAttempt(ctx context.Context, taskID int64) (int, error) {
	var max *int
	err := r.db.QueryRow(ctx, `SELECT MAX(attempt) FROM reviews WHERE task_id=$1`, taskID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *reviewRepo) Latest(ctx context.Context, taskID int64) (*domain.Review, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+reviewColumns+` FROM reviews WHERE task_id=$1 ORDER BY attempt DESC LIMIT 1
	`, taskID)
	rv, err := scanReview(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rv.Comments, err = r.comments(ctx, rv.ID)
	return rv, err
}

func (r *reviewRepo) AddComment(ctx context.Context, tx store.Tx, c *domain.ReviewComment) error {
	row := unwrap(tx).QueryRow(ctx, `
		INSERT INTO review_comments (id, review_id, file_path, line_number, content, author_id, author_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING created_at
	`, c.ID, c.ReviewID, c.FilePath, c.LineNumber, c.Content, c.AuthorID, c.AuthorType)
	return row.Scan(&c.CreatedAt)
}

func (r *reviewRepo) comments(ctx context.Context, reviewID string) ([]domain.ReviewComment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, review_id, file_path, line_number, content, author_id, author_type, created_at
		FROM review_comments WHERE review_id=$1 ORDER BY created_at ASC
	`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ReviewComment
	for rows.Next() {
		var c domain.ReviewComment
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.FilePath, &c.LineNumber, &c.Content, &c.AuthorID, &c.AuthorType, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
