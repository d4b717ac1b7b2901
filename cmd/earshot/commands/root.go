package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "earshot",
	Short: "Realtime audio ingestion and transcription gateway",
	Long: `earshot - a realtime audio ingestion and transcription gateway.

Clients open a WebSocket, authenticate with a short-lived one-use
ticket, and stream VAD-annotated PCM audio. The gateway segments the
stream into utterances, dispatches them to a speech-to-text provider,
and archives the raw audio to object storage in rolling chunks.

Configuration comes from an optional YAML file (--config) overlaid by
environment variables: GROQ_API_KEY, FIREWORKS_API_KEY, USE_FIREWORKS,
CLERK_JWT_KEY, CLERK_AUTHORIZED_PARTIES, OBJECT_STORE_BUCKET,
TICKET_STORE_BINDING, ADMIN_TOKEN, DEBUG_MODE.

Examples:
  # Run the gateway on the default address
  earshot serve

  # Run with a config file and a custom listen address
  earshot serve --config earshot.yaml --addr :9000

  # Mint a ticket for local testing
  earshot ticket user_42`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
