// Package main is the entry point for the earshot CLI.
//
// Usage:
//
//	earshot [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the audio transcription gateway
//	ticket     - Mint a session ticket directly against the store
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/earshot/earshot/cmd/earshot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
