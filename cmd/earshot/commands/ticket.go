package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earshot/earshot/pkg/gateway"
	"github.com/earshot/earshot/pkg/kv"
	"github.com/earshot/earshot/pkg/ticket"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket <subject>",
	Short: "Mint a session ticket directly against the store",
	Long: `Mint a one-use session ticket for the given subject, bypassing the
identity provider. Intended for local development: the ticket is written
to the configured ticket store and can be presented over the WebSocket
within its TTL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := gateway.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.TicketStoreBinding == "" {
			return errors.New("TICKET_STORE_BINDING is not set; a shared store is required")
		}
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.TicketStoreBinding})
		if err != nil {
			return fmt.Errorf("open ticket store: %w", err)
		}
		defer store.Close()

		id, err := ticket.NewStore(store).Issue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ticketCmd)
}
