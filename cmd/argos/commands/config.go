package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

// configCmd groups strategy-config utilities.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Strategy config utilities",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a strategy file and print its hash",
	Long: `Parses the strategy file with strict field checking, compiles the rule
expressions, and runs every validation constraint. Prints the SHA-256
config hash used in decision snapshots.

Example:
  go run ./cmd/argos config validate --strategy strategy.yaml`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := strategyconfig.Load(strategyFile)
	if err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("OK: %s (version %s, %s)\n", cfg.Meta.StrategyID, cfg.Meta.Version, cfg.Strategy.Type)
	fmt.Printf("Hash: %s\n", hash)

	for _, warning := range strategyconfig.Warn(cfg) {
		fmt.Printf("Warning [%s]: %s\n", warning.Code, warning.Message)
	}
	return nil
}
