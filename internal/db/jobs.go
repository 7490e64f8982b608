package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/models"
)

// ErrNotFound is returned when no job record matches.
var ErrNotFound = errors.New("job not found")

const jobColumns = `
	id, status, audio_count, vibe, subtitle,
	video_url, thumbnail_url, video_bytes, thumbnail_bytes,
	error_label, error_details, created_at, finished_at
`

func (db *DB) CreateJob(ctx context.Context, job *models.JobRecord) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query := db.rebind(`
		INSERT INTO render_jobs (
			id, status, audio_count, vibe, subtitle, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`)

	_, err := db.ExecContext(ctx, query,
		job.ID.String(), job.Status, job.AudioCount, job.Vibe, job.Subtitle, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (db *DB) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := db.rebind(`UPDATE render_jobs SET status = $1 WHERE id = $2`)
	return db.exec(ctx, query, models.JobStatusRunning, id.String())
}

func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, result models.DeliveryResult, videoBytes, thumbnailBytes int64) error {
	query := db.rebind(`
		UPDATE render_jobs
		SET status = $1, video_url = $2, thumbnail_url = $3,
			video_bytes = $4, thumbnail_bytes = $5, finished_at = $6
		WHERE id = $7
	`)
	return db.exec(ctx, query,
		models.JobStatusSucceeded, result.VideoURL, result.ThumbnailURL,
		videoBytes, thumbnailBytes, time.Now().UTC(), id.String(),
	)
}

func (db *DB) FailJob(ctx context.Context, id uuid.UUID, label, details string) error {
	query := db.rebind(`
		UPDATE render_jobs
		SET status = $1, error_label = $2, error_details = $3, finished_at = $4
		WHERE id = $5
	`)
	return db.exec(ctx, query, models.JobStatusFailed, label, details, time.Now().UTC(), id.String())
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.JobRecord, error) {
	query := db.rebind(`SELECT ` + jobColumns + ` FROM render_jobs WHERE id = $1`)

	job, err := scanJob(db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := db.rebind(`SELECT ` + jobColumns + ` FROM render_jobs ORDER BY created_at DESC LIMIT $1`)

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.JobRecord{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.JobRecord, error) {
	var (
		job models.JobRecord
		id  string
	)
	err := row.Scan(
		&id, &job.Status, &job.AudioCount, &job.Vibe, &job.Subtitle,
		&job.VideoURL, &job.ThumbnailURL, &job.VideoBytes, &job.ThumbnailBytes,
		&job.ErrorLabel, &job.ErrorDetails, &job.CreatedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", id, err)
	}
	return &job, nil
}
