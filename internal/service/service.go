// Package service implements the business logic between the HTTP API and
// the repositories: submission preconditions, ownership checks, dispatch,
// download authorization and the book upload pipeline.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Service layer errors, mapped to HTTP statuses by the handlers.
var (
	// ErrForbidden indicates an access attempt by a non-owner.
	ErrForbidden = errors.New("resource belongs to another user")
	// ErrBookNotReady indicates a generation request against a book
	// without extracted text.
	ErrBookNotReady = errors.New("book has no extracted text to narrate")
	// ErrJobNotCompleted indicates a download attempt on a job that has
	// not produced an artifact.
	ErrJobNotCompleted = errors.New("job has not completed")
	// ErrFileTooLarge indicates an upload above the configured size cap.
	ErrFileTooLarge = errors.New("uploaded file is too large")
	// ErrExtensionNotAllowed indicates an upload with a file type
	// outside the configured whitelist.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	// ErrTokenMismatch indicates a valid download token presented for a
	// different resource.
	ErrTokenMismatch = errors.New("download token does not match the requested resource")
)

// JobDispatcher enqueues submitted jobs for asynchronous processing.
type JobDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}
