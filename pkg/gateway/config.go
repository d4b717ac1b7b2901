package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/earshot/earshot/pkg/archive"
	"github.com/earshot/earshot/pkg/jsontime"
)

// Config is the serve configuration. Values come from an optional YAML
// file overlaid by environment variables; the environment wins.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// GroqAPIKey and FireworksAPIKey authenticate the transcription
	// providers; UseFireworks selects between them.
	GroqAPIKey      string `yaml:"groq_api_key"`
	FireworksAPIKey string `yaml:"fireworks_api_key"`
	UseFireworks    bool   `yaml:"use_fireworks"`

	// ClerkJWTKey is the PEM-encoded RS256 public key of the identity
	// provider. Unset disables ticket issuing.
	ClerkJWTKey string `yaml:"clerk_jwt_key"`

	// ClerkAuthorizedParties lists the frontend origins accepted for
	// both token azp claims and WebSocket Origin checks.
	ClerkAuthorizedParties []string `yaml:"clerk_authorized_parties"`

	// ObjectStoreBucket names the S3 bucket for audio archival. Unset
	// disables archival and the admin surface.
	ObjectStoreBucket string `yaml:"object_store_bucket"`

	// TicketStoreBinding is the badger data directory for the ticket
	// store. Unset falls back to the in-memory store.
	TicketStoreBinding string `yaml:"ticket_store_binding"`

	// AdminToken guards the admin endpoints; unset disables them.
	AdminToken string `yaml:"admin_token"`

	DebugMode bool `yaml:"debug_mode"`

	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig is the YAML shape of the archiver knobs.
type ArchiveConfig struct {
	WindowSize         jsontime.Duration `yaml:"window_size"`
	UploadInterval     jsontime.Duration `yaml:"upload_interval"`
	MaxMemoryMB        float64           `yaml:"max_memory_mb"`
	StoreOriginalAudio *bool             `yaml:"store_original_audio"`
	StoreVadSegments   bool              `yaml:"store_vad_segments"`
}

// ToArchive converts to the archiver's own config type.
func (c ArchiveConfig) ToArchive() archive.Config {
	return archive.Config{
		WindowSize:         time.Duration(c.WindowSize),
		UploadInterval:     time.Duration(c.UploadInterval),
		MaxMemoryMB:        c.MaxMemoryMB,
		StoreOriginalAudio: c.StoreOriginalAudio,
		StoreVadSegments:   c.StoreVadSegments,
	}
}

// LoadConfig reads the YAML file at path (skipped when path is empty)
// and overlays the process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Addr: ":8080"}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("gateway: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("gateway: parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "LISTEN_ADDR")
	setString(&c.GroqAPIKey, "GROQ_API_KEY")
	setString(&c.FireworksAPIKey, "FIREWORKS_API_KEY")
	setString(&c.ClerkJWTKey, "CLERK_JWT_KEY")
	setString(&c.ObjectStoreBucket, "OBJECT_STORE_BUCKET")
	setString(&c.TicketStoreBinding, "TICKET_STORE_BINDING")
	setString(&c.AdminToken, "ADMIN_TOKEN")
	setBool(&c.UseFireworks, "USE_FIREWORKS")
	setBool(&c.DebugMode, "DEBUG_MODE")
	if v := os.Getenv("CLERK_AUTHORIZED_PARTIES"); v != "" {
		var parties []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parties = append(parties, p)
			}
		}
		c.ClerkAuthorizedParties = parties
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
