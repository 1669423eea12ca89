// Package tts provides the text-to-speech backends for the audiobook
// service.
//
// A backend converts one text chunk into one WAV audio segment. Two
// backends are available: an online engine that calls a standalone TTS
// HTTP service, and an offline engine that runs a local synthesizer
// binary. The backend is selected once from configuration, not per call.
package tts

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
)

// Engine names accepted in configuration.
const (
	EngineHTTP = "http"
	EngineExec = "exec"
)

// Static errors. Each synthesis failure mode is a distinct kind so the
// job runner can record a precise reason; none of them is retried here.
var (
	// ErrEmptyChunk indicates that synthesis was attempted on empty text.
	ErrEmptyChunk = errors.New("chunk text cannot be empty")
	// ErrBackendUnreachable indicates that the TTS backend could not be reached.
	ErrBackendUnreachable = errors.New("tts backend unreachable")
	// ErrUnsupportedVoice indicates an unsupported language/voice combination.
	ErrUnsupportedVoice = errors.New("unsupported language/voice combination")
	// ErrUnknownEngine indicates an unrecognized engine name in configuration.
	ErrUnknownEngine = errors.New("unknown tts engine")
)

// NewSynthesizer creates the synthesis backend selected by configuration.
func NewSynthesizer(cfg *config.Config, log *logger.Logger) (core.Synthesizer, error) {
	timeout := time.Duration(cfg.TTS.TimeoutSeconds) * time.Second

	switch cfg.TTS.Engine {
	case EngineHTTP:
		return NewHTTPEngine(NewHTTPClient(cfg.TTS.ServiceURL, timeout), log), nil
	case EngineExec:
		return NewExecEngine(cfg.TTS.BinaryPath, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.TTS.Engine)
	}
}
