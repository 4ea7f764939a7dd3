package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonhyo-e/argos/internal/audit"
	"github.com/wonhyo-e/argos/internal/backtest"
	"github.com/wonhyo-e/argos/internal/store"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Historical replay of the decision pipeline",
	Long: `Replays the full pipeline over a date range with simulated fills.

Decisions at day t use data up to t and fill at the next trading day's
open with the configured slippage and commission. The run is fully
deterministic: same inputs, same equity curve.

Example:
  go run ./cmd/argos backtest run --strategy strategy.yaml --bars bars.csv --from 2023-01-02 --to 2024-12-31`,
}

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over a date range",
	RunE:  runBacktest,
}

var (
	backtestFrom string
	backtestTo   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD)")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", backtestFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", backtestTo)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("--to %s is before --from %s", backtestTo, backtestFrom)
	}

	rt, err := initRuntime()
	if err != nil {
		return err
	}

	// Curate once as of the end date; the engine clips per decision day.
	curated, err := rt.curate(to)
	if err != nil {
		return fmt.Errorf("preprocess failed: %w", err)
	}

	engine, err := backtest.NewEngine(rt.strategy, rt.log)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s ~ %s (%s)\n", backtestFrom, backtestTo, rt.strategy.Meta.StrategyID)
	result, err := engine.Run(cmd.Context(), curated, from, to)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if err := ensureOutDir(); err != nil {
		return err
	}
	resultPath := filepath.Join(outDir, "backtest.json")
	if err := store.WriteJSON(resultPath, result); err != nil {
		return err
	}

	snapshot, err := strategyconfig.NewDecisionSnapshot(rt.strategy, rt.yamlData)
	if err != nil {
		return err
	}
	snapshotPath := filepath.Join(outDir, "snapshot.json")
	if err := store.WriteJSON(snapshotPath, snapshot); err != nil {
		return err
	}

	manifest := audit.NewManifest(rt.strategy.Meta.StrategyID, snapshot.ConfigHash, backtestTo)
	if err := manifest.Add("backtest", resultPath); err != nil {
		return err
	}
	if err := manifest.Add("snapshot", snapshotPath); err != nil {
		return err
	}
	manifestPath := filepath.Join(outDir, "manifest.json")
	if err := manifest.Save(manifestPath); err != nil {
		return err
	}

	printBacktestResult(result)
	fmt.Printf("Run %s recorded in %s\n", manifest.RunID, manifestPath)
	return nil
}

func printBacktestResult(result *backtest.Result) {
	m := result.Metrics
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Period          : %s ~ %s (%d trading days)\n",
		result.Start.Format("2006-01-02"), result.End.Format("2006-01-02"), len(result.EquityCurve))
	fmt.Printf("Equity          : %.2f -> %.2f\n", m.InitialEquity, m.FinalEquity)
	fmt.Printf("Total Return    : %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("CAGR            : %.2f%%\n", m.CAGR*100)
	fmt.Printf("Annualized Vol  : %.2f%%\n", m.AnnualizedVol*100)
	fmt.Printf("Sharpe          : %.2f\n", m.Sharpe)
	fmt.Printf("Sortino         : %.2f\n", m.Sortino)
	fmt.Printf("Max Drawdown    : %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Hit Rate        : %.2f%%\n", m.HitRate*100)
	fmt.Printf("Trades          : %d (gross %.2f, costs %.2f)\n", m.TradeCount, m.GrossTraded, m.TotalCosts)
	fmt.Println(strings.Repeat("=", 60))
}
