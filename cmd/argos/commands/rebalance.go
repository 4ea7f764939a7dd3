package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/audit"
	"github.com/wonhyo-e/argos/internal/backtest"
	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/rebalance"
	"github.com/wonhyo-e/argos/internal/risk"
	"github.com/wonhyo-e/argos/internal/signals"
	"github.com/wonhyo-e/argos/internal/store"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

// rebalanceCmd runs the full decision pipeline for one date.
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Produce a rebalance proposal for one date",
	Long: `Runs the full pipeline (preprocess, signals, risk) and derives a
turnover-capped rebalance proposal. All artifacts plus a run manifest
with checksums land in the output directory.

Off-cadence dates produce a NO_REBALANCE proposal unless --force.

Example:
  go run ./cmd/argos rebalance --strategy strategy.yaml --bars bars.csv --holdings holdings.json --as-of 2025-01-10
  go run ./cmd/argos rebalance --strategy strategy.yaml --bars bars.csv --as-of 2025-01-08 --force`,
	RunE: runRebalance,
}

var (
	rebalanceAsOf     string
	rebalanceHoldings string
	rebalanceForce    bool
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rebalanceCmd.Flags().StringVar(&rebalanceAsOf, "as-of", "", "evaluation date (YYYY-MM-DD)")
	rebalanceCmd.Flags().StringVar(&rebalanceHoldings, "holdings", "", "holdings snapshot (JSON, default: empty)")
	rebalanceCmd.Flags().BoolVar(&rebalanceForce, "force", false, "bypass the cadence gate")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag("as-of", rebalanceAsOf)
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
	holdings, err := rt.loadHoldings(rebalanceHoldings, asOf)
	if err != nil {
		return err
	}

	signalEngine, err := signals.NewEngine(rt.strategy.Strategy, rt.log)
	if err != nil {
		return err
	}
	signalSet, err := signalEngine.Generate(cmd.Context(), curated, rt.strategy.Universe.Symbols, asOf)
	if err != nil {
		return fmt.Errorf("signal generation failed: %w", err)
	}

	riskEngine, err := risk.NewEngine(rt.strategy.Risk)
	if err != nil {
		return err
	}
	riskResult, err := riskEngine.Evaluate(holdings, curated, asOf)
	if err != nil {
		return fmt.Errorf("risk evaluation failed: %w", err)
	}

	prices := backtest.ClosePrices(curated, asOf)
	rebalancer := rebalance.New(rt.strategy.Rebalance, rt.log)
	proposal := rebalancer.Propose(signalSet, holdings, riskResult, prices, asOf, rebalanceForce)

	if err := ensureOutDir(); err != nil {
		return err
	}
	artifacts := map[string]string{
		"signals":  filepath.Join(outDir, "signals.json"),
		"risk":     filepath.Join(outDir, "risk.json"),
		"proposal": filepath.Join(outDir, "proposal.json"),
		"snapshot": filepath.Join(outDir, "snapshot.json"),
	}
	if err := store.SaveSignals(artifacts["signals"], signalSet); err != nil {
		return err
	}
	if err := store.SaveRiskResult(artifacts["risk"], riskResult); err != nil {
		return err
	}
	if err := store.SaveProposal(artifacts["proposal"], proposal); err != nil {
		return err
	}

	snapshot, err := strategyconfig.NewDecisionSnapshot(rt.strategy, rt.yamlData)
	if err != nil {
		return err
	}
	if err := store.WriteJSON(artifacts["snapshot"], snapshot); err != nil {
		return err
	}

	manifest := audit.NewManifest(rt.strategy.Meta.StrategyID, snapshot.ConfigHash, rebalanceAsOf)
	for name, path := range artifacts {
		if err := manifest.Add(name, path); err != nil {
			return err
		}
	}
	manifestPath := filepath.Join(outDir, "manifest.json")
	if err := manifest.Save(manifestPath); err != nil {
		return err
	}

	printProposal(proposal)
	fmt.Printf("Run %s recorded in %s\n", manifest.RunID, manifestPath)
	return nil
}

func printProposal(proposal *contracts.RebalanceProposal) {
	fmt.Printf("Status: %s (universe %d, selected %d)\n",
		proposal.Status, proposal.UniverseSize, proposal.Selected)
	fmt.Printf("Rationale: %s\n", proposal.Rationale)

	if len(proposal.Targets) > 0 {
		fmt.Println("Targets:")
		for _, target := range proposal.Targets {
			fmt.Printf("  %-8s %8.4f  %s\n", target.Symbol, target.TargetWeight, target.Rationale)
		}
	}
	if len(proposal.Orders) > 0 {
		fmt.Println("Orders:")
		for _, order := range proposal.Orders {
			fmt.Printf("  %-4s %-8s qty %12.6f  notional %12.2f\n",
				order.Side, order.Symbol, order.Qty, order.Notional)
		}
		fmt.Printf("Turnover: %.4f\n", proposal.Turnover)
	}
}
