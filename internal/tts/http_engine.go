package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/audiobook-service/internal/core"
)

// HealthCheckTimeout defines the timeout for health check operations.
const HealthCheckTimeout = 10 * time.Second

// HTTPEngine implements core.Synthesizer by communicating with a
// standalone TTS HTTP service. Each call is independent and free of
// shared mutable state between chunks.
type HTTPEngine struct {
	client *HTTPClient
	log    *logger.Logger
}

// NewHTTPEngine creates an HTTP-based synthesis backend around the given
// client. The client is injectable for testing.
func NewHTTPEngine(client *HTTPClient, log *logger.Logger) *HTTPEngine {
	return &HTTPEngine{
		client: client,
		log:    log,
	}
}

// Synthesize converts one text chunk into one WAV audio segment.
func (e *HTTPEngine) Synthesize(
	ctx context.Context,
	chunk string,
	params core.SynthesisParams,
) ([]byte, error) {
	if chunk == "" {
		return nil, ErrEmptyChunk
	}

	req := SpeechRequest{
		Text:     chunk,
		Language: params.Language,
		Voice:    params.Voice,
		Speed:    params.Speed,
	}

	audioData, err := e.client.GenerateSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}

	e.log.Info("Generated audio segment: %d chars -> %d bytes", len(chunk), len(audioData))

	return audioData, nil
}

// HealthCheck verifies the backing TTS service is reachable. The job
// runner calls this before starting a pipeline run to fail fast.
func (e *HTTPEngine) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := e.client.HealthCheck(healthCtx)
	if err != nil {
		return fmt.Errorf("TTS service health check failed: %w", err)
	}

	return nil
}
