package asr

import (
	"context"
	"net/http"
)

const (
	// GroqDefaultBaseURL is the default Groq API base URL.
	GroqDefaultBaseURL = "https://api.groq.com"

	// GroqModel is the whisper model used for transcription.
	GroqModel = "whisper-large-v3-turbo"
)

// Groq is a Transcriber backed by Groq's audio transcription API.
type Groq struct {
	cfg clientConfig
}

// NewGroq creates a Groq transcription client.
func NewGroq(apiKey string, opts ...Option) *Groq {
	cfg := clientConfig{
		apiKey:  apiKey,
		baseURL: GroqDefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Groq{cfg: cfg}
}

// Provider returns "groq".
func (g *Groq) Provider() string { return "groq" }

// Transcribe submits wavData to Groq and returns the transcript.
func (g *Groq) Transcribe(ctx context.Context, wavData []byte, prompt string) (*Result, error) {
	fields := []field{
		{"model", GroqModel},
		{"response_format", "verbose_json"},
	}
	if prompt != "" {
		fields = append(fields, field{"prompt", prompt})
	}
	url := g.cfg.baseURL + "/openai/v1/audio/transcriptions"
	return postTranscription(ctx, &g.cfg, g.Provider(), url, wavData, fields)
}

// Compile-time interface check.
var _ Transcriber = (*Groq)(nil)
