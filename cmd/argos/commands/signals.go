package commands

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/signals"
	"github.com/wonhyo-e/argos/internal/store"
)

// signalsCmd evaluates entry/exit rules and ranks the universe.
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Evaluate strategy rules and rank the universe as of a date",
	Long: `Runs the signal engine: evaluates the entry and exit rules for every
universe symbol on curated data up to the evaluation date and computes
rank scores. Exit wins when both rules fire.

Example:
  go run ./cmd/argos signals --strategy strategy.yaml --bars bars.csv --as-of 2025-01-10`,
	RunE: runSignals,
}

var signalsAsOf string

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVar(&signalsAsOf, "as-of", "", "evaluation date (YYYY-MM-DD)")
}

func runSignals(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag("as-of", signalsAsOf)
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

	engine, err := signals.NewEngine(rt.strategy.Strategy, rt.log)
	if err != nil {
		return err
	}
	signalSet, err := engine.Generate(cmd.Context(), curated, rt.strategy.Universe.Symbols, asOf)
	if err != nil {
		return fmt.Errorf("signal generation failed: %w", err)
	}

	if err := ensureOutDir(); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, "signals.json")
	if err := store.SaveSignals(outPath, signalSet); err != nil {
		return err
	}

	fmt.Printf("Signals for %d symbols as of %s\n", signalSet.Count(), signalsAsOf)
	for _, sig := range signalSet.Ranked() {
		score := "-"
		if !math.IsNaN(sig.RankScore) && !math.IsInf(sig.RankScore, 0) {
			score = fmt.Sprintf("%.6f", sig.RankScore)
		}
		fmt.Printf("  %-8s %-5s %s\n", sig.Symbol, sig.Kind, score)
	}
	fmt.Printf("Artifact: %s\n", outPath)
	return nil
}
