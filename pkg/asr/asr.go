// Package asr provides speech-to-text clients for whisper-style HTTP APIs.
//
// Two providers are supported, Groq and Fireworks. Both accept a complete
// WAV file as a multipart upload and return the transcript as JSON. The
// package normalizes results and errors so callers can switch providers
// with a configuration flag.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Transcriber is the interface that wraps the Transcribe method.
type Transcriber interface {
	// Transcribe submits a complete WAV file and returns the transcript.
	// prompt is an optional provider hint and may be empty.
	Transcribe(ctx context.Context, wavData []byte, prompt string) (*Result, error)

	// Provider returns the provider name ("groq" or "fireworks").
	Provider() string
}

// Result is a normalized transcription result.
type Result struct {
	// Text is the transcript.
	Text string

	// Provider is the provider that produced the result.
	Provider string

	// APIFetch is the wall-clock duration of the HTTP round trip.
	APIFetch time.Duration
}

// APIError is returned when a provider responds with a non-2xx status.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asr: %s returned %d: %s", e.Provider, e.Status, e.Body)
}

// ErrNoText is returned when a provider's 2xx response carries no
// usable transcript field.
var ErrNoText = errors.New("asr: response missing text field")

// DefaultTimeout is the default request timeout for provider calls.
const DefaultTimeout = 60 * time.Second

// clientConfig holds common provider client configuration.
type clientConfig struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option is a function that configures a provider client.
type Option func(*clientConfig)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// field is one multipart form field of a provider request.
type field struct {
	name, value string
}

// postTranscription POSTs wavData as multipart form data and decodes the
// transcript from the response. All whisper-style endpoints share this
// shape; only the URL and extra form fields differ per provider.
func postTranscription(ctx context.Context, cfg *clientConfig, provider, url string, wavData []byte, fields []field) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("asr: build request: %w", err)
	}
	if _, err := fw.Write(wavData); err != nil {
		return nil, fmt.Errorf("asr: build request: %w", err)
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("asr: build request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("asr: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("asr: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asr: %s request: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("asr: %s response: %w", provider, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("asr: %s response: %w", provider, err)
	}
	if parsed.Text == nil {
		return nil, ErrNoText
	}
	return &Result{
		Text:     *parsed.Text,
		Provider: provider,
		APIFetch: elapsed,
	}, nil
}
