// Package jobpostgres stores thumbnail jobs in PostgreSQL
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

const jobColumns = `job_uid, source_key, result_key, width, height, mode, interest, background, format, quality, status, err_msg, etag, created_at, updated_at`

type PostgresRepo struct {
	DB *dbpg.DB
}

// Create inserts the job; an already registered UID is left untouched.
func (p PostgresRepo) Create(ctx context.Context, j *model.Job) error {
	query := `INSERT INTO jobs (job_uid, source_key, width, height, mode, interest, background, format, quality, status, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	ON CONFLICT (job_uid) DO NOTHING`

	_, err := p.DB.Master.ExecContext(ctx, query,
		j.UID, j.SourceKey, j.Width, j.Height, j.Mode, j.Interest, j.Background, j.Format, j.Quality,
		j.Status, j.ErrMsg, j.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + `
	FROM jobs
	WHERE job_uid = $1`

	job, err := scanJob(p.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	return job, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs WHERE job_uid = $1`
	return p.exec(ctx, query, id)
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE jobs SET status = $1, updated_at = now() WHERE job_uid = $2`
	return p.exec(ctx, query, newStat, id)
}

func (p PostgresRepo) SaveResult(ctx context.Context, j *model.Job) error {
	query := `UPDATE jobs SET status = $1, result_key = $2, etag = $3, updated_at = now() WHERE job_uid = $4`
	return p.exec(ctx, query, j.Status, j.ResultKey, j.ETag, j.UID)
}

// Fail marks the job failed and appends the messages to its error log.
func (p PostgresRepo) Fail(ctx context.Context, id string, msgs model.StringSlice) error {
	query := `UPDATE jobs SET status = $1, err_msg = err_msg || $2::jsonb, updated_at = now() WHERE job_uid = $3`
	return p.exec(ctx, query, model.StatusFailed, msgs, id)
}

// FetchOrphans returns unfinished jobs that have not been touched for ten minutes.
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + `
	FROM jobs
	WHERE status IN ($1, $2)
	AND updated_at < now() - interval '10 minutes'
	ORDER BY updated_at
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]model.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, *job)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func (p PostgresRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := p.DB.Master.ExecContext(ctx, query, args...)
	if err != nil {
		return err // 500
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrJobNotFound // 404
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	err := row.Scan(&job.UID,
		&job.SourceKey,
		&job.ResultKey,
		&job.Width,
		&job.Height,
		&job.Mode,
		&job.Interest,
		&job.Background,
		&job.Format,
		&job.Quality,
		&job.Status,
		&job.ErrMsg,
		&job.ETag,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
