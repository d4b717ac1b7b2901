package asr

import (
	"context"
	"net/http"
)

const (
	// FireworksDefaultBaseURL is the default Fireworks audio API base URL.
	FireworksDefaultBaseURL = "https://audio-turbo.us-virginia-1.direct.fireworks.ai"

	// FireworksModel is the whisper model used for transcription.
	FireworksModel = "whisper-v3-turbo"
)

// Fireworks is a Transcriber backed by Fireworks' audio transcription API.
type Fireworks struct {
	cfg clientConfig
}

// NewFireworks creates a Fireworks transcription client.
func NewFireworks(apiKey string, opts ...Option) *Fireworks {
	cfg := clientConfig{
		apiKey:  apiKey,
		baseURL: FireworksDefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fireworks{cfg: cfg}
}

// Provider returns "fireworks".
func (f *Fireworks) Provider() string { return "fireworks" }

// Transcribe submits wavData to Fireworks and returns the transcript.
func (f *Fireworks) Transcribe(ctx context.Context, wavData []byte, prompt string) (*Result, error) {
	fields := []field{
		{"model", FireworksModel},
		{"temperature", "0"},
	}
	if prompt != "" {
		fields = append(fields, field{"prompt", prompt})
	}
	url := f.cfg.baseURL + "/v1/audio/transcriptions"
	return postTranscription(ctx, &f.cfg, f.Provider(), url, wavData, fields)
}

// Compile-time interface check.
var _ Transcriber = (*Fireworks)(nil)
