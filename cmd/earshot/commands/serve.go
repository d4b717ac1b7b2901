package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/earshot/earshot/pkg/asr"
	"github.com/earshot/earshot/pkg/auth"
	"github.com/earshot/earshot/pkg/gateway"
	"github.com/earshot/earshot/pkg/kv"
	"github.com/earshot/earshot/pkg/storage"
	"github.com/earshot/earshot/pkg/ticket"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the audio transcription gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := gateway.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	level := slog.LevelInfo
	if verbose || cfg.DebugMode {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	store, err := openTicketKV(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	tickets := ticket.NewStore(store)

	opts := gateway.Options{
		Tickets:           tickets,
		AuthorizedParties: cfg.ClerkAuthorizedParties,
		AdminToken:        cfg.AdminToken,
		DebugMode:         cfg.DebugMode,
		Archive:           cfg.Archive.ToArchive(),
		Logger:            log,
	}

	if cfg.ClerkJWTKey != "" {
		verifier, err := auth.NewVerifier(cfg.ClerkJWTKey, cfg.ClerkAuthorizedParties)
		if err != nil {
			return fmt.Errorf("clerk jwt key: %w", err)
		}
		opts.Verifier = verifier
	} else {
		log.Warn("CLERK_JWT_KEY not set; ticket issuing disabled")
	}

	opts.Transcriber = pickTranscriber(cfg, log)

	if cfg.ObjectStoreBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		opts.Store = storage.NewS3(client, cfg.ObjectStoreBucket, "")
		log.Info("audio archival enabled", "bucket", cfg.ObjectStoreBucket)
	} else {
		log.Warn("OBJECT_STORE_BUCKET not set; audio archival disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gateway.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openTicketKV opens the badger-backed ticket store, falling back to
// the in-memory store when no data directory is configured.
func openTicketKV(cfg *gateway.Config, log *slog.Logger) (kv.Store, error) {
	if cfg.TicketStoreBinding == "" {
		log.Warn("TICKET_STORE_BINDING not set; using in-memory ticket store")
		return kv.NewMemory(nil), nil
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.TicketStoreBinding})
	if err != nil {
		return nil, fmt.Errorf("open ticket store: %w", err)
	}
	log.Info("ticket store opened", "dir", cfg.TicketStoreBinding)
	return store, nil
}

// pickTranscriber selects the transcription provider from the config.
func pickTranscriber(cfg *gateway.Config, log *slog.Logger) asr.Transcriber {
	if cfg.UseFireworks {
		if cfg.FireworksAPIKey == "" {
			log.Warn("USE_FIREWORKS set but FIREWORKS_API_KEY missing; transcription disabled")
			return nil
		}
		log.Info("transcription provider selected", "provider", "fireworks")
		return asr.NewFireworks(cfg.FireworksAPIKey)
	}
	if cfg.GroqAPIKey == "" {
		log.Warn("GROQ_API_KEY not set; transcription disabled")
		return nil
	}
	log.Info("transcription provider selected", "provider", "groq")
	return asr.NewGroq(cfg.GroqAPIKey)
}
