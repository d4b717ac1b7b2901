package asr_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/earshot/earshot/pkg/asr"
)

// parseMultipart extracts the form fields and file payload of a
// transcription request for assertions.
func parseMultipart(t *testing.T, r *http.Request) (fields map[string]string, file []byte) {
	t.Helper()
	mr, err := r.MultipartReader()
	if err != nil {
		t.Fatalf("multipart reader: %v", err)
	}
	fields = make(map[string]string)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		data, _ := io.ReadAll(part)
		if part.FormName() == "file" {
			if part.FileName() != "audio.wav" {
				t.Errorf("file name = %q", part.FileName())
			}
			file = data
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields, file
}

func TestGroqTranscribe(t *testing.T) {
	wavData := []byte("RIFFfakewav")
	var gotAuth string
	var gotFields map[string]string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotFields, gotFile = parseMultipart(t, r)
		io.WriteString(w, `{"text":"hello world","duration":1.2}`)
	}))
	defer srv.Close()

	g := asr.NewGroq("key123", asr.WithBaseURL(srv.URL))
	res, err := g.Transcribe(context.Background(), wavData, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "hello world" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Provider != "groq" {
		t.Errorf("provider = %q", res.Provider)
	}
	if gotAuth != "Bearer key123" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotFields["model"] != "whisper-large-v3-turbo" {
		t.Errorf("model = %q", gotFields["model"])
	}
	if gotFields["response_format"] != "verbose_json" {
		t.Errorf("response_format = %q", gotFields["response_format"])
	}
	if _, ok := gotFields["prompt"]; ok {
		t.Error("prompt field sent without a prompt")
	}
	if string(gotFile) != string(wavData) {
		t.Errorf("file payload = %q", gotFile)
	}
}

func TestFireworksTranscribe(t *testing.T) {
	var gotFields map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotFields, _ = parseMultipart(t, r)
		io.WriteString(w, `{"text":"bonjour"}`)
	}))
	defer srv.Close()

	f := asr.NewFireworks("fwkey", asr.WithBaseURL(srv.URL))
	res, err := f.Transcribe(context.Background(), []byte("wav"), "names: Zoe")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "bonjour" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Provider != "fireworks" {
		t.Errorf("provider = %q", res.Provider)
	}
	if gotFields["model"] != "whisper-v3-turbo" {
		t.Errorf("model = %q", gotFields["model"])
	}
	if gotFields["temperature"] != "0" {
		t.Errorf("temperature = %q", gotFields["temperature"])
	}
	if gotFields["prompt"] != "names: Zoe" {
		t.Errorf("prompt = %q", gotFields["prompt"])
	}
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := asr.NewGroq("k", asr.WithBaseURL(srv.URL))
	_, err := g.Transcribe(context.Background(), []byte("wav"), "")

	var apiErr *asr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Provider != "groq" {
		t.Errorf("provider = %q", apiErr.Provider)
	}
	if !strings.Contains(apiErr.Body, "rate limited") {
		t.Errorf("body = %q", apiErr.Body)
	}
}

func TestTranscribeMissingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"duration":0.5}`)
	}))
	defer srv.Close()

	g := asr.NewGroq("k", asr.WithBaseURL(srv.URL))
	if _, err := g.Transcribe(context.Background(), []byte("wav"), ""); !errors.Is(err, asr.ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
}

func TestTranscribeContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := asr.NewGroq("k", asr.WithBaseURL(srv.URL))
	if _, err := g.Transcribe(ctx, []byte("wav"), ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
