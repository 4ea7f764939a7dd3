package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	barsFile     string
	outDir       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "argos",
	Short: "Argos - deterministic trading decision pipeline",
	Long: `Argos Unified CLI

Rule-based daily decision pipeline: curated bars in, signals, risk
state, and rebalance proposals out. Same inputs, same outputs, every
time.

Usage:
  go run ./cmd/argos [command]

Examples:
  go run ./cmd/argos preprocess --strategy strategy.yaml --bars bars.csv --as-of 2025-01-10
  go run ./cmd/argos signals --strategy strategy.yaml --bars bars.csv --as-of 2025-01-10
  go run ./cmd/argos rebalance --strategy strategy.yaml --bars bars.csv --holdings holdings.json --as-of 2025-01-10
  go run ./cmd/argos backtest run --strategy strategy.yaml --bars bars.csv --from 2023-01-02 --to 2024-12-31`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "strategy.yaml", "strategy config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&barsFile, "bars", "", "raw bar CSV file")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "reports", "artifact output directory")
}
