// Package cli wires configuration, logging and the pipeline into cobra
// commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	logx "github.com/inventory-assistant/server/pkg/logger"
)

var (
	version = "dev"

	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "inventory-assistant",
	Short: "Answer natural-language questions about inventory data",
	Long: `inventory-assistant normalizes a question with a hosted model, answers it
with a tabular agent over the inventory spreadsheet and formats the result.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
