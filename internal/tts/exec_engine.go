package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/audiobook-service/internal/core"
)

// outputFilePattern is the temp file pattern for per-chunk WAV output.
const outputFilePattern = "narration-chunk-*.wav"

// ExecEngine implements core.Synthesizer by running a local synthesizer
// binary. It is the offline alternative to the HTTP engine for
// deployments without network access to a TTS service.
type ExecEngine struct {
	binaryPath string
	log        *logger.Logger
}

// NewExecEngine creates an offline synthesis backend around the given
// binary. The binary must accept text on stdin and write a WAV file to
// the path given with -o.
func NewExecEngine(binaryPath string, log *logger.Logger) *ExecEngine {
	return &ExecEngine{
		binaryPath: binaryPath,
		log:        log,
	}
}

// Synthesize converts one text chunk into one WAV audio segment by
// invoking the configured binary.
func (e *ExecEngine) Synthesize(
	ctx context.Context,
	chunk string,
	params core.SynthesisParams,
) ([]byte, error) {
	if chunk == "" {
		return nil, ErrEmptyChunk
	}

	tempFile, err := os.CreateTemp("", outputFilePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	args := []string{
		"-v", params.Voice,
		"-l", params.Language,
		"-s", fmt.Sprintf("%.2f", params.Speed),
		"-o", tempFile.Name(),
	}

	// #nosec G204 -- binary path comes from configuration; parameters are
	// validated at job submission.
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stdin = strings.NewReader(chunk)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, classifyExecError(err, output)
	}

	audioData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	return audioData, nil
}

// classifyExecError maps binary execution failures onto the synthesis
// error kinds. A missing binary is reported as an unreachable backend; a
// complaint about the voice or language as an unsupported combination.
func classifyExecError(err error, output []byte) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}

	combined := strings.ToLower(string(output))
	if strings.Contains(combined, "unknown voice") ||
		strings.Contains(combined, "unsupported language") {
		return fmt.Errorf("%w: %s", ErrUnsupportedVoice, strings.TrimSpace(string(output)))
	}

	return fmt.Errorf("synthesizer binary execution failed: %w - output: %s", err, string(output))
}
