package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "order-tracker",
	Short:        "Order and shipment lookup API backed by a two-tier product cache",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newPurgeCmd(), newRecentCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}
