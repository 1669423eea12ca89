package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error codes returned by the TTS service for unsupported synthesis
// parameters.
const (
	errCodeUnsupportedVoice    = "unsupported_voice"
	errCodeUnsupportedLanguage = "unsupported_language"
)

// Error messages.
const (
	errUnexpectedContentType   = "unexpected content type: expected audio/wav, got %s"
	errReceivedEmptyAudio      = "received empty audio data"
	errFmtServiceErrorWithCode = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "TTS service returned non-OK status: %s, body: %s"
)

// HTTPClient represents a client for the standalone TTS HTTP service.
// It encapsulates the HTTP configuration and provides methods for
// speech generation and health monitoring.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SpeechRequest defines the JSON payload structure for TTS generation
// requests.
type SpeechRequest struct {
	// Text contains the input text to convert to speech.
	Text string `json:"text"`

	// Language specifies the target language code (e.g. "en", "es").
	Language string `json:"language"`

	// Voice selects the voice identifier; the service default is used
	// when empty.
	Voice string `json:"voice,omitempty"`

	// Speed is the playback speed multiplier.
	Speed float64 `json:"speed"`
}

// speechErrorResponse represents a structured error response from the TTS
// service.
type speechErrorResponse struct {
	// Detail contains a human-readable error description.
	Detail string `json:"detail"`

	// ErrorCode provides a machine-readable error classification.
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates and configures an HTTP client for the TTS service.
// The baseURL should include the protocol and port (e.g. "http://localhost:8000").
// The timeout applies to all HTTP requests made by this client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSpeech sends a TTS generation request and returns the raw audio
// data. The returned audio is in WAV format as specified by the service
// contract. Transport failures are reported as ErrBackendUnreachable;
// rejected language/voice combinations as ErrUnsupportedVoice.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyChunk
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + apiGenerateSpeech

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, errors.New(errReceivedEmptyAudio)
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running and operational.
// Health checks are performed before processing a job to fail fast and
// provide clear diagnostics when the service is unavailable.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed for %s: %w", ErrBackendUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service. If structured parsing fails, it falls back to returning the raw
// response body to ensure diagnostic information is preserved.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	var errorResp speechErrorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil {
		switch errorResp.ErrorCode {
		case errCodeUnsupportedVoice, errCodeUnsupportedLanguage:
			return fmt.Errorf("%w: %s", ErrUnsupportedVoice, errorResp.Detail)
		}

		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	// Fallback to raw response for non-JSON errors.
	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(
		errFmtServiceNonOKStatus,
		resp.Status,
		string(body),
	)
}
