package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/risk"
	"github.com/wonhyo-e/argos/internal/store"
)

// riskCmd evaluates the market filter and per-holding alerts.
var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Evaluate market state and holding alerts as of a date",
	Long: `Runs the risk engine: evaluates the market filter rule over the
benchmark and raises CRASH / DRAWDOWN alerts for held symbols. A
missing or unevaluable benchmark row fails closed to RISK_OFF.

Example:
  go run ./cmd/argos risk --strategy strategy.yaml --bars bars.csv --holdings holdings.json --as-of 2025-01-10`,
	RunE: runRisk,
}

var (
	riskAsOf     string
	riskHoldings string
)

func init() {
	rootCmd.AddCommand(riskCmd)
	riskCmd.Flags().StringVar(&riskAsOf, "as-of", "", "evaluation date (YYYY-MM-DD)")
	riskCmd.Flags().StringVar(&riskHoldings, "holdings", "", "holdings snapshot (JSON, default: empty)")
}

func runRisk(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag("as-of", riskAsOf)
	if err != nil {
		return err
	}

	rt, err := initRuntime()
	if err != nil {
		return err
	}

	curated, err := rt.curate(asOf)
	if err != nil {
		return fmt.Errorf("preprocess failed: %w", err)
	}
	holdings, err := rt.loadHoldings(riskHoldings, asOf)
	if err != nil {
		return err
	}

	engine, err := risk.NewEngine(rt.strategy.Risk)
	if err != nil {
		return err
	}
	result, err := engine.Evaluate(holdings, curated, asOf)
	if err != nil {
		return fmt.Errorf("risk evaluation failed: %w", err)
	}

	if err := ensureOutDir(); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, "risk.json")
	if err := store.SaveRiskResult(outPath, result); err != nil {
		return err
	}

	fmt.Printf("Market state: %s\n", result.MarketState)
	if len(result.Alerts) == 0 {
		fmt.Println("No alerts")
	}
	for _, pos := range holdings.Positions {
		for _, alert := range result.AlertsFor(pos.Symbol) {
			fmt.Printf("  %-8s %-9s %s\n", alert.Symbol, alert.Type, alert.Reason)
		}
	}
	fmt.Printf("Artifact: %s\n", outPath)
	return nil
}
