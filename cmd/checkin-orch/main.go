package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	rootCmd    = &cobra.Command{
		Use:   "checkin-orch",
		Short: "Check-in Orchestrator - Multi-account web check-in runner",
		Long: `Check-in Orchestrator performs daily check-ins on new-api relay sites
for every configured account. It resolves sessions from stored cookies or
browser-driven OAuth logins, calls the check-in endpoints, and reports the
collected balances through the configured notification channels.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
