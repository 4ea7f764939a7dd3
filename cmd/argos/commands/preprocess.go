package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/store"
)

// preprocessCmd curates raw bars against the benchmark calendar.
var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Curate raw bars: align calendars, fill gaps, compute indicators",
	Long: `Aligns every symbol to the benchmark trading calendar, forward-fills
small gaps, applies the price adjustment policy, and computes the
indicator columns (sma_100, sma_200, ret_1d, ret_20d, rolling_peak).

Example:
  go run ./cmd/argos preprocess --strategy strategy.yaml --bars bars.csv --as-of 2025-01-10`,
	RunE: runPreprocess,
}

var preprocessAsOf string

func init() {
	rootCmd.AddCommand(preprocessCmd)
	preprocessCmd.Flags().StringVar(&preprocessAsOf, "as-of", "", "evaluation date (YYYY-MM-DD)")
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag("as-of", preprocessAsOf)
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

	if err := ensureOutDir(); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, "curated.csv")
	if err := store.SaveCurated(outPath, curated); err != nil {
		return err
	}

	fmt.Printf("Curated %d symbols over %d trading days (calendar: %s)\n",
		len(curated.Symbols), len(curated.Calendar), curated.Benchmark)
	fmt.Printf("Window: %s ~ %s\n",
		curated.Calendar[0].Format(contracts.DateLayout),
		curated.Calendar[len(curated.Calendar)-1].Format(contracts.DateLayout))
	fmt.Printf("Artifact: %s\n", outPath)
	return nil
}
