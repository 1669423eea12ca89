// Package notify delivers job progress updates to interested clients over
// NATS. Each user has a dedicated subject, so a frontend session can
// subscribe to its own updates only.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/audiobook-service/internal/core"
)

// NATSSink publishes progress updates to notify.user.<ownerID> subjects.
type NATSSink struct {
	conn          *nats.Conn
	subjectPrefix string
	log           *logger.Logger
}

// NewNATSSink creates a NATS-backed notification sink.
func NewNATSSink(conn *nats.Conn, subjectPrefix string, log *logger.Logger) *NATSSink {
	return &NATSSink{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		log:           log,
	}
}

// Push publishes a progress update for the owner. Delivery is best-effort:
// a lost notification is recoverable through the status endpoint.
func (s *NATSSink) Push(_ context.Context, ownerID uuid.UUID, update core.ProgressUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress update: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, ownerID)

	publishErr := s.conn.Publish(subject, payload)
	if publishErr != nil {
		return fmt.Errorf("failed to publish progress update to %s: %w", subject, publishErr)
	}

	s.log.Info("Published progress update: job %s status %s progress %d",
		update.JobID, update.Status, update.Progress)

	return nil
}

// NopSink discards progress updates. It keeps the worker wiring simple in
// deployments without a realtime frontend.
type NopSink struct{}

// NewNopSink creates a sink that drops every update.
func NewNopSink() *NopSink {
	return &NopSink{}
}

// Push discards the update.
func (s *NopSink) Push(_ context.Context, _ uuid.UUID, _ core.ProgressUpdate) error {
	return nil
}
