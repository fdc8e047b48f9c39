package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envName string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Quantfold portfolio analytics toolkit",
	Long: `Quantfold Analytics CLI

Performance, risk and volatility analytics for return series.

Usage:
  go run ./cmd/analytics [command]

Examples:
  go run ./cmd/analytics report --days 504 --seed 42
  go run ./cmd/analytics risk --alpha 0.01 --horizon 10`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
