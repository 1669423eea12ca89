package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/book-expert/audiobook-service/internal/core"
)

// AudioJobRepository is the persistence interface for audio generation jobs.
// All lifecycle transitions guard against terminal states in SQL, so a
// redelivered or racing worker can never reopen a completed or failed job.
type AudioJobRepository interface {
	Create(ctx context.Context, job *core.AudioJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.AudioJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.AudioJob, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, fileSize int64, duration float64) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	RecordDownload(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type audioJobRepo struct {
	db DBTX
}

// NewAudioJobRepository creates the PostgreSQL-backed audio job repository.
func NewAudioJobRepository(db DBTX) AudioJobRepository {
	return &audioJobRepo{db: db}
}

const audioJobColumns = `id, user_id, book_id, filename, file_path, file_size,
	duration, format, status, progress, error_message, language, voice,
	speed, is_downloaded, download_count, created_at, updated_at, completed_at`

func scanAudioJob(row pgx.Row) (*core.AudioJob, error) {
	job := &core.AudioJob{}

	err := row.Scan(
		&job.ID, &job.UserID, &job.BookID, &job.Filename, &job.FilePath,
		&job.FileSize, &job.Duration, &job.Format, &job.Status,
		&job.Progress, &job.ErrorMessage, &job.Language, &job.Voice,
		&job.Speed, &job.IsDownloaded, &job.DownloadCount,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)

	return job, err
}

func (r *audioJobRepo) Create(ctx context.Context, job *core.AudioJob) error {
	query := `
		INSERT INTO audio_jobs (id, user_id, book_id, filename, format,
			status, progress, language, voice, speed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		job.ID, job.UserID, job.BookID, job.Filename, job.Format,
		job.Status, job.Progress, job.Language, job.Voice, job.Speed,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job %s", ErrConflict, job.ID)
		}

		return fmt.Errorf("failed to create audio job: %w", err)
	}

	return nil
}

func (r *audioJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.AudioJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM audio_jobs WHERE id = $1`, audioJobColumns)

	job, err := scanAudioJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get audio job: %w", err)
	}

	return job, nil
}

func (r *audioJobRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.AudioJob, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM audio_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, audioJobColumns)

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*core.AudioJob

	for rows.Next() {
		job, scanErr := scanAudioJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan audio job row: %w", scanErr)
		}

		jobs = append(jobs, job)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate audio job rows: %w", rowsErr)
	}

	return jobs, nil
}

func (r *audioJobRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM audio_jobs WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audio jobs: %w", err)
	}

	return count, nil
}

// MarkProcessing transitions a job from pending to processing. Calling it
// again while processing is a no-op; calling it on a terminal job returns
// ErrTerminalState.
func (r *audioJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE audio_jobs
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`

	return r.guardedUpdate(ctx, id, query, id)
}

// UpdateProgress raises the progress of a running job. Progress is
// monotone: a lower value than the stored one is ignored, and terminal
// records are never touched.
func (r *audioJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := `
		UPDATE audio_jobs
		SET progress = GREATEST(progress, $2), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`

	return r.guardedUpdate(ctx, id, query, id, progress)
}

// MarkCompleted finalizes a successful job: progress 100, artifact
// location and measurements recorded, completion timestamp set.
func (r *audioJobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, fileSize int64, duration float64) error {
	query := `
		UPDATE audio_jobs
		SET status = 'completed', progress = 100, file_path = $2,
			file_size = $3, duration = $4, error_message = '',
			completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`

	return r.guardedUpdate(ctx, id, query, id, filePath, fileSize, duration)
}

// MarkFailed finalizes a failed job with a diagnostic message. Progress is
// left at its last reported value.
func (r *audioJobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE audio_jobs
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`

	return r.guardedUpdate(ctx, id, query, id, message)
}

// RecordDownload increments the download counter of a completed job.
func (r *audioJobRepo) RecordDownload(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE audio_jobs
		SET is_downloaded = TRUE, download_count = download_count + 1,
			updated_at = now()
		WHERE id = $1 AND status = 'completed'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *audioJobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM audio_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete audio job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// guardedUpdate runs a transition query restricted to non-terminal rows and
// distinguishes a missing record from a terminal one.
func (r *audioJobRepo) guardedUpdate(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update audio job: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	var status core.JobStatus

	scanErr := r.db.QueryRow(ctx,
		`SELECT status FROM audio_jobs WHERE id = $1`, id,
	).Scan(&status)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ErrNotFound
		}

		return fmt.Errorf("failed to check audio job status: %w", scanErr)
	}

	return fmt.Errorf("%w: %s", ErrTerminalState, status)
}
