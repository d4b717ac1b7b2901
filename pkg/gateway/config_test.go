package gateway_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/earshot/earshot/pkg/gateway"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "earshot.yaml")
	yaml := `
addr: ":9000"
groq_api_key: "gk_from_file"
clerk_authorized_parties:
  - "https://app.example.com"
object_store_bucket: "earshot-audio"
archive:
  window_size: 2m
  upload_interval: 1m
  max_memory_mb: 20
  store_vad_segments: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// The environment wins over the file.
	t.Setenv("GROQ_API_KEY", "gk_from_env")
	t.Setenv("USE_FIREWORKS", "true")
	t.Setenv("CLERK_AUTHORIZED_PARTIES", "https://a.example.com, https://b.example.com")

	cfg, err := gateway.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.GroqAPIKey != "gk_from_env" {
		t.Errorf("GroqAPIKey = %q, want env value", cfg.GroqAPIKey)
	}
	if !cfg.UseFireworks {
		t.Error("UseFireworks = false")
	}
	if len(cfg.ClerkAuthorizedParties) != 2 || cfg.ClerkAuthorizedParties[1] != "https://b.example.com" {
		t.Errorf("ClerkAuthorizedParties = %v", cfg.ClerkAuthorizedParties)
	}
	if cfg.ObjectStoreBucket != "earshot-audio" {
		t.Errorf("ObjectStoreBucket = %q", cfg.ObjectStoreBucket)
	}

	ac := cfg.Archive.ToArchive()
	if ac.WindowSize != 2*time.Minute {
		t.Errorf("WindowSize = %v", ac.WindowSize)
	}
	if ac.UploadInterval != time.Minute {
		t.Errorf("UploadInterval = %v", ac.UploadInterval)
	}
	if ac.MaxMemoryMB != 20 {
		t.Errorf("MaxMemoryMB = %v", ac.MaxMemoryMB)
	}
	if !ac.StoreVadSegments {
		t.Error("StoreVadSegments = false")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := gateway.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := gateway.LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
