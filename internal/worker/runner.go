// Package worker provides the NATS worker and job runner that turn queued
// audio generation jobs into finished narration artifacts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/tts/audio"
	"github.com/book-expert/audiobook-service/internal/tts/text"
)

// synthesisProgressCeiling is the progress value reached when the last
// chunk has been synthesized. Assembly and upload take the job to 100.
const synthesisProgressCeiling = 90

var (
	// ErrBookContentEmpty indicates that the source book has no
	// extracted text to narrate.
	ErrBookContentEmpty = errors.New("book has no extracted text")
	// ErrSoftLimitExceeded indicates that synthesis exceeded the
	// cooperative processing time limit.
	ErrSoftLimitExceeded = errors.New("processing time limit exceeded")
)

// RunnerOptions bundle the tuning knobs of the job runner.
type RunnerOptions struct {
	MaxChunkChars int
	ChunkGap      time.Duration
	SoftLimit     time.Duration
	HardLimit     time.Duration
}

// Runner executes one audio generation job end to end: load, chunk,
// synthesize, assemble, store, finalize. It owns every job record mutation
// after submission.
type Runner struct {
	jobs        repository.AudioJobRepository
	books       repository.BookRepository
	chunker     *text.Chunker
	synthesizer core.Synthesizer
	store       core.BlobStore
	notifier    core.NotificationSink
	opts        RunnerOptions
	log         *logger.Logger
	now         func() time.Time
}

// NewRunner creates a job runner.
func NewRunner(
	jobs repository.AudioJobRepository,
	books repository.BookRepository,
	synthesizer core.Synthesizer,
	store core.BlobStore,
	notifier core.NotificationSink,
	opts RunnerOptions,
	log *logger.Logger,
) *Runner {
	return &Runner{
		jobs:        jobs,
		books:       books,
		chunker:     text.NewChunker(opts.MaxChunkChars),
		synthesizer: synthesizer,
		store:       store,
		notifier:    notifier,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// Run processes one job to a terminal state. Re-running a job that already
// reached a terminal state is a no-op, so redelivered queue messages are
// harmless. The returned error is non-nil only for infrastructure failures
// where the job record could not be finalized; pipeline failures are
// recorded on the job and reported as nil.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("Dropping job %s: record not found", jobID)

			return nil
		}

		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if job.Status.Terminal() {
		r.log.Info("Skipping job %s: already %s", jobID, job.Status)

		return nil
	}

	markErr := r.jobs.MarkProcessing(ctx, jobID)
	if markErr != nil {
		if errors.Is(markErr, repository.ErrTerminalState) {
			return nil
		}

		return fmt.Errorf("failed to mark job %s processing: %w", jobID, markErr)
	}

	r.push(ctx, job.UserID, core.ProgressUpdate{
		JobID:    jobID,
		Status:   core.JobStatusProcessing,
		Progress: job.Progress,
	})

	runCtx := ctx
	if r.opts.HardLimit > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, r.opts.HardLimit)
		defer cancel()
	}

	narration, pipelineErr := r.synthesize(runCtx, job)
	if pipelineErr != nil {
		return r.fail(ctx, job, pipelineErr)
	}

	key := artifactKey(job)

	putErr := r.store.Put(runCtx, key, narration.Data)
	if putErr != nil {
		return r.fail(ctx, job, fmt.Errorf("failed to store narration: %w", putErr))
	}

	completeErr := r.jobs.MarkCompleted(ctx, jobID, key, narration.Size(), narration.Duration)
	if completeErr != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", jobID, completeErr)
	}

	r.push(ctx, job.UserID, core.ProgressUpdate{
		JobID:    jobID,
		Status:   core.JobStatusCompleted,
		Progress: 100,
	})

	r.log.Info("Completed job %s: %.1fs of audio, %d bytes", jobID, narration.Duration, narration.Size())

	return nil
}

// synthesize converts the source book's text into one assembled narration.
func (r *Runner) synthesize(ctx context.Context, job *core.AudioJob) (*audio.Narration, error) {
	book, err := r.books.GetByID(ctx, job.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load book %s: %w", job.BookID, err)
	}

	if strings.TrimSpace(book.Content) == "" {
		return nil, ErrBookContentEmpty
	}

	chunks := r.chunker.Split(book.Content)
	if len(chunks) == 0 {
		return nil, ErrBookContentEmpty
	}

	params := job.Params()
	started := r.now()
	segments := make([][]byte, 0, len(chunks))

	for i, chunk := range chunks {
		if r.opts.SoftLimit > 0 && r.now().Sub(started) > r.opts.SoftLimit {
			return nil, fmt.Errorf("%w after %d/%d chunks", ErrSoftLimitExceeded, i, len(chunks))
		}

		segment, synthErr := r.synthesizer.Synthesize(ctx, chunk, params)
		if synthErr != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), synthErr)
		}

		segments = append(segments, segment)

		progress := (i + 1) * synthesisProgressCeiling / len(chunks)

		progressErr := r.jobs.UpdateProgress(ctx, job.ID, progress)
		if progressErr != nil {
			return nil, fmt.Errorf("failed to record progress: %w", progressErr)
		}

		r.push(ctx, job.UserID, core.ProgressUpdate{
			JobID:    job.ID,
			Status:   core.JobStatusProcessing,
			Progress: progress,
		})
	}

	narration, assembleErr := audio.Assemble(segments, r.opts.ChunkGap)
	if assembleErr != nil {
		return nil, fmt.Errorf("failed to assemble narration: %w", assembleErr)
	}

	return narration, nil
}

// fail records a pipeline failure on the job. Progress stays at its last
// reported value.
func (r *Runner) fail(ctx context.Context, job *core.AudioJob, cause error) error {
	r.log.Error("Job %s failed: %v", job.ID, cause)

	markErr := r.jobs.MarkFailed(ctx, job.ID, cause.Error())
	if markErr != nil && !errors.Is(markErr, repository.ErrTerminalState) {
		return fmt.Errorf("failed to mark job %s failed: %w", job.ID, markErr)
	}

	current, getErr := r.jobs.GetByID(ctx, job.ID)
	progress := job.Progress

	if getErr == nil {
		progress = current.Progress
	}

	r.push(ctx, job.UserID, core.ProgressUpdate{
		JobID:        job.ID,
		Status:       core.JobStatusFailed,
		Progress:     progress,
		ErrorMessage: cause.Error(),
	})

	return nil
}

func (r *Runner) push(ctx context.Context, ownerID uuid.UUID, update core.ProgressUpdate) {
	err := r.notifier.Push(ctx, ownerID, update)
	if err != nil {
		r.log.Warn("Failed to push progress update for job %s: %v", update.JobID, err)
	}
}

// artifactKey is the blob store location of a finished narration.
func artifactKey(job *core.AudioJob) string {
	return fmt.Sprintf("users/%s/audio/%s.%s", job.UserID, job.ID, job.Format)
}
