// Package storage provides the blob store implementations for uploaded
// documents and generated audio artifacts.
//
// Three backends are available, selected once by configuration: the local
// filesystem (the default), a NATS JetStream object store, and S3.
package storage

import (
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
)

// Backend names accepted in configuration.
const (
	BackendLocal = "local"
	BackendNATS  = "nats"
	BackendS3    = "s3"
)

// Static errors.
var (
	// ErrNotFound indicates that the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey indicates a key that would escape the store root.
	ErrInvalidKey = errors.New("invalid blob key")
	// ErrUnknownBackend indicates an unrecognized backend name in configuration.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// New creates the blob store selected by configuration. The NATS backend
// reuses the service's existing JetStream context.
func New(
	cfg *config.Config,
	jetstreamContext nats.JetStreamContext,
	log *logger.Logger,
) (core.BlobStore, error) {
	switch cfg.Storage.Backend {
	case BackendLocal:
		return NewLocalStore(cfg.Storage.LocalDir)
	case BackendNATS:
		return NewNATSStore(jetstreamContext, cfg.NATS.ObjectStoreBucket)
	case BackendS3:
		return NewS3Store(cfg.Storage, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend)
	}
}
