package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Speed multiplier bounds for synthesis parameters.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

var (
	// ErrLanguageEmpty indicates that the language code is empty.
	ErrLanguageEmpty = errors.New("language cannot be empty")
	// ErrSpeedRange indicates that the speed multiplier is out of the valid range.
	ErrSpeedRange = errors.New("speed must be between 0.5 and 2.0")
)

// JobStatus is the lifecycle state of an audio generation job.
type JobStatus string

// Job lifecycle states. Pending and Processing are non-terminal;
// Completed and Failed are terminal and final.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BookStatus is the processing state of an uploaded book.
type BookStatus string

// Book processing states.
const (
	BookStatusProcessing BookStatus = "processing"
	BookStatusReady      BookStatus = "ready"
	BookStatusError      BookStatus = "error"
)

// SynthesisParams are the per-job synthesis settings. They are immutable
// once the job record is created.
type SynthesisParams struct {
	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
}

// Validate ensures the synthesis parameters are within safe bounds.
func (p SynthesisParams) Validate() error {
	if p.Language == "" {
		return ErrLanguageEmpty
	}

	if p.Speed < MinSpeed || p.Speed > MaxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrSpeedRange, p.Speed)
	}

	return nil
}

// AudioJob is the persisted state of one audio generation request.
// It is created in Pending by the submission path and mutated exclusively
// by the job runner until it reaches a terminal state. Download counters
// are mutated only by successful artifact retrieval.
type AudioJob struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	BookID uuid.UUID `json:"book_id"`

	Filename string  `json:"filename"`
	FilePath string  `json:"-"`
	FileSize int64   `json:"file_size,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Format   string  `json:"format"`

	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`

	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`

	IsDownloaded  bool `json:"is_downloaded"`
	DownloadCount int  `json:"download_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Params returns the immutable synthesis parameters of the job.
func (j *AudioJob) Params() SynthesisParams {
	return SynthesisParams{
		Language: j.Language,
		Voice:    j.Voice,
		Speed:    j.Speed,
	}
}

// Book is an uploaded document with its extracted text content.
type Book struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Language string `json:"language"`

	Filename string `json:"filename"`
	FilePath string `json:"-"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`

	Content        string `json:"-"`
	WordCount      int    `json:"word_count"`
	CharacterCount int    `json:"character_count"`

	Status       BookStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// User is a registered principal. The password hash never leaves the
// repository layer through the API.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
