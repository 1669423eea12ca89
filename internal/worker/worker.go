package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/audiobook-service/internal/config"
)

// fetchTimeout bounds one pull request so the worker notices shutdown.
const fetchTimeout = 5 * time.Second

// ErrMalformedJobMessage indicates a queue message that cannot be decoded.
var ErrMalformedJobMessage = errors.New("malformed job message")

// JobMessage is the queue payload dispatched for every submitted job. The
// record itself lives in the database; the message only names it.
type JobMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

// EnsureJobStream creates the work-queue stream for job dispatch if it does
// not exist yet.
func EnsureJobStream(jetstreamContext nats.JetStreamContext, cfg config.NATSConfig) error {
	_, err := jetstreamContext.StreamInfo(cfg.JobStreamName)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", cfg.JobStreamName, err)
	}

	_, err = jetstreamContext.AddStream(&nats.StreamConfig{
		Name:      cfg.JobStreamName,
		Subjects:  []string{cfg.JobSubject},
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.JobStreamName, err)
	}

	return nil
}

// Dispatcher publishes job messages to the work queue.
type Dispatcher struct {
	jetstreamContext nats.JetStreamContext
	subject          string
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(jetstreamContext nats.JetStreamContext, subject string) *Dispatcher {
	return &Dispatcher{jetstreamContext: jetstreamContext, subject: subject}
}

// Dispatch enqueues a job for processing. JetStream persists the message,
// so a worker crash after this point leads to redelivery, not loss.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	payload, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	_, publishErr := d.jetstreamContext.Publish(d.subject, payload, nats.Context(ctx))
	if publishErr != nil {
		return fmt.Errorf("failed to publish job %s: %w", jobID, publishErr)
	}

	return nil
}

// Worker pulls job messages from a durable JetStream consumer and hands
// them to the runner. Messages are acknowledged only after the runner has
// driven the job to a terminal state, so every job is processed at least
// once; the runner's terminal-state check makes redelivery a no-op.
type Worker struct {
	jetstreamContext nats.JetStreamContext
	cfg              config.NATSConfig
	runner           *Runner
	log              *logger.Logger
}

// NewWorker creates a queue worker around the runner.
func NewWorker(
	jetstreamContext nats.JetStreamContext,
	cfg config.NATSConfig,
	runner *Runner,
	log *logger.Logger,
) *Worker {
	return &Worker{
		jetstreamContext: jetstreamContext,
		cfg:              cfg,
		runner:           runner,
		log:              log,
	}
}

// Run consumes job messages until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.jetstreamContext.PullSubscribe(
		w.cfg.JobSubject,
		w.cfg.JobConsumerName,
		nats.AckExplicit(),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.cfg.JobSubject, err)
	}

	w.log.Info("Worker listening on %s (durable %s)", w.cfg.JobSubject, w.cfg.JobConsumerName)

	for {
		select {
		case <-ctx.Done():
			drainErr := sub.Drain()
			if drainErr != nil {
				return fmt.Errorf("failed to drain subscription: %w", drainErr)
			}

			return nil
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		msgs, fetchErr := sub.Fetch(1, nats.Context(fetchCtx))
		cancel()

		if fetchErr != nil {
			if errors.Is(fetchErr, context.DeadlineExceeded) ||
				errors.Is(fetchErr, context.Canceled) ||
				errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}

			return fmt.Errorf("failed to fetch job message: %w", fetchErr)
		}

		for _, msg := range msgs {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg *nats.Msg) {
	jobMsg, err := parseJobMessage(msg)
	if err != nil {
		w.log.Error("Dropping undecodable job message: %v", err)

		termErr := msg.Term()
		if termErr != nil {
			w.log.Warn("Failed to terminate bad message: %v", termErr)
		}

		return
	}

	runErr := w.runner.Run(ctx, jobMsg.JobID)
	if runErr != nil {
		w.log.Error("Job %s hit an infrastructure failure, requesting redelivery: %v", jobMsg.JobID, runErr)

		nakErr := msg.Nak()
		if nakErr != nil {
			w.log.Warn("Failed to nak message for job %s: %v", jobMsg.JobID, nakErr)
		}

		return
	}

	ackErr := msg.Ack()
	if ackErr != nil {
		w.log.Warn("Failed to ack message for job %s: %v", jobMsg.JobID, ackErr)
	}
}

func parseJobMessage(msg *nats.Msg) (JobMessage, error) {
	var jobMsg JobMessage

	err := json.Unmarshal(msg.Data, &jobMsg)
	if err != nil {
		return JobMessage{}, fmt.Errorf("%w: %w", ErrMalformedJobMessage, err)
	}

	if jobMsg.JobID == uuid.Nil {
		return JobMessage{}, fmt.Errorf("%w: missing job id", ErrMalformedJobMessage)
	}

	return jobMsg, nil
}
