package job

import (
	"context"
	"database/sql"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	UpdateResult(ctx context.Context, id, status, errMsg, documentID string, durationMS int64) error
	List(ctx context.Context) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO jobs (filename, status) VALUES ($1, $2) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, job.Filename, job.Status).Scan(&job.ID, &job.CreatedAt)
}

func (r *PostgresRepo) UpdateResult(ctx context.Context, id, status, errMsg, documentID string, durationMS int64) error {
	query := `UPDATE jobs SET status = $1, error = $2, document_id = NULLIF($3, ''), duration_ms = $4, updated_at = NOW() WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, documentID, durationMS, id)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	query := `SELECT id, COALESCE(document_id::text, ''), filename, status, error, duration_ms, created_at FROM jobs ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.Filename, &j.Status, &j.Error, &j.DurationMS, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	query := `SELECT id, COALESCE(document_id::text, ''), filename, status, error, duration_ms, created_at FROM jobs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &j.DocumentID, &j.Filename, &j.Status, &j.Error, &j.DurationMS, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
