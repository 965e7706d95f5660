// Command shareledger runs share ledger scenarios and conversions from the
// command line against an in-memory engine.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "shareledger",
	Short: "Rebasing share ledger tools",
	Long: `shareledger tracks proportional ownership of a pooled value.

Holders own shares; balances are derived as shares*pooledValue/totalShares,
so a rebase moves every balance without touching a single share.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = newLogger(cmd, c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd, convertCmd)
}

func newLogger(cmd *cobra.Command, c Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: c.LogLevel}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
