package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/preprocess"
	"github.com/wonhyo-e/argos/internal/store"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
	"github.com/wonhyo-e/argos/pkg/config"
	"github.com/wonhyo-e/argos/pkg/logger"
)

// ═══════════════════════════════════════════════════════════
// Shared pipeline assembly
// 모든 커맨드가 동일한 초기화 경로를 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// runtime bundles the process config, logger, and validated strategy
// every command starts from.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config
	yamlData []byte
}

// initRuntime loads process config, the logger, and the strategy file.
// Strategy validation failures abort here, before any data is read.
func initRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	strategy, yamlData, err := strategyconfig.Load(strategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}

	for _, warning := range strategyconfig.Warn(strategy) {
		log.WithField("code", warning.Code).Warn(warning.Message)
	}

	return &runtime{cfg: cfg, log: log, strategy: strategy, yamlData: yamlData}, nil
}

// curate loads the raw bar file and runs the preprocessor as of a date.
func (r *runtime) curate(asOf time.Time) (*contracts.CuratedSet, error) {
	if barsFile == "" {
		return nil, fmt.Errorf("--bars is required")
	}
	raw, err := store.LoadBars(barsFile)
	if err != nil {
		return nil, err
	}

	settings := preprocess.Settings{
		Benchmark:         r.strategy.Universe.Benchmark,
		LookbackDays:      r.strategy.Preprocess.LookbackDays,
		ForwardFillLimit:  r.strategy.Preprocess.ForwardFillLimit,
		RollingPeakWindow: r.strategy.Preprocess.RollingPeakWindow,
		Adjust:            r.strategy.Preprocess.Adjust,
	}
	return preprocess.Curate(raw, settings, asOf)
}

// loadHoldings reads the holdings file, or starts empty when none is
// given: cash only, in the strategy's base currency.
func (r *runtime) loadHoldings(path string, asOf time.Time) (*contracts.HoldingsSnapshot, error) {
	if path == "" {
		return &contracts.HoldingsSnapshot{
			AsOfDate: asOf,
			BaseCCY:  r.strategy.Meta.BaseCCY,
		}, nil
	}
	return store.LoadHoldings(path)
}

func ensureOutDir() error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", outDir, err)
	}
	return nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required (YYYY-MM-DD)", name)
	}
	t, err := time.Parse(contracts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, value)
	}
	return t, nil
}
