// Package cmd wires the tfg-agent CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/truckfixgo/offline-agent/internal/build"
	"github.com/truckfixgo/offline-agent/internal/config"
)

var rootCmd = &cobra.Command{
	Use:     "tfg-agent",
	Short:   "TruckFixGo offline agent",
	Long:    "Local agent that keeps the TruckFixGo web app usable offline: cached responses, queued mutations, and push notifications.",
	Version: build.String(),
}

// Execute loads the configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd.AddCommand(NewServeCmd(cfg))
	rootCmd.AddCommand(NewStatusCmd(cfg))
	rootCmd.AddCommand(NewUpdateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
