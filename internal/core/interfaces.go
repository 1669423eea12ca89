// Package core defines the domain model and interfaces for the audiobook service.
package core

import (
	"context"

	"github.com/google/uuid"
)

// Synthesizer defines the interface for a text-to-speech backend.
// One call converts one text chunk into one WAV audio segment.
// Backends perform no retries of their own; retry and failure policy
// belongs to the job runner.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunk string, params SynthesisParams) ([]byte, error)
}

// BlobStore defines the interface for storing generated audio artifacts
// and uploaded documents.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NotificationSink delivers out-of-band progress updates to the owner of
// a job. The job runner depends only on this interface, never on the
// transport or its connection bookkeeping.
type NotificationSink interface {
	Push(ctx context.Context, ownerID uuid.UUID, update ProgressUpdate) error
}

// ProgressUpdate is the payload pushed to a NotificationSink whenever a
// job changes state or reports chunk progress.
type ProgressUpdate struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
