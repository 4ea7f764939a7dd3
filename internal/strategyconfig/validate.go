package strategyconfig

import (
	"fmt"
	"math"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/rules"
)

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// barColumns are the indicator identifiers rule expressions may read.
var barColumns = map[string]bool{
	"open": true, "high": true, "low": true, "close": true,
	"volume": true, "adj_close": true,
	"sma_100": true, "sma_200": true,
	"ret_1d": true, "ret_20d": true, "rolling_peak": true,
}

// rankFeatures are the columns a rank_feature may name, plus derived
// features the signal engine computes.
var rankFeatures = map[string]bool{
	"momentum_63d": true, "reversal_20d": true,
}

// Validate checks all required constraints, including compiling every
// rule expression. Rule errors surface here, never per-row.
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return &contracts.ConfigValidationError{Field: "meta.strategy_id", Reason: "required"}
	}
	if cfg.Meta.BaseCCY == "" {
		return &contracts.ConfigValidationError{Field: "meta.base_ccy", Reason: "required"}
	}

	// === Universe ===
	if len(cfg.Universe.Symbols) == 0 {
		return &contracts.ConfigValidationError{Field: "universe.symbols", Reason: "must not be empty"}
	}
	seen := make(map[string]bool, len(cfg.Universe.Symbols))
	for _, symbol := range cfg.Universe.Symbols {
		if symbol == "" {
			return &contracts.ConfigValidationError{Field: "universe.symbols", Reason: "contains an empty symbol"}
		}
		if seen[symbol] {
			return &contracts.ConfigValidationError{Field: "universe.symbols", Reason: fmt.Sprintf("duplicate symbol %s", symbol)}
		}
		seen[symbol] = true
	}
	if cfg.Universe.Benchmark == "" {
		return &contracts.ConfigValidationError{Field: "universe.benchmark", Reason: "required"}
	}

	// === Strategy ===
	switch cfg.Strategy.Type {
	case StrategyTrendFollow, StrategyMomentum, StrategyMeanReversion:
	default:
		return &contracts.ConfigValidationError{
			Field:  "strategy.type",
			Reason: "must be trend_follow, momentum, or mean_reversion",
		}
	}
	if err := validateRule("strategy.entry_rule", cfg.Strategy.EntryRuleOrDefault()); err != nil {
		return err
	}
	if err := validateRule("strategy.exit_rule", cfg.Strategy.ExitRuleOrDefault()); err != nil {
		return err
	}
	rank := cfg.Strategy.RankFeatureOrDefault()
	if !barColumns[rank] && !rankFeatures[rank] {
		return &contracts.ConfigValidationError{
			Field:  "strategy.rank_feature",
			Reason: fmt.Sprintf("unknown feature %q", rank),
		}
	}

	// === Preprocess ===
	if cfg.Preprocess.LookbackDays <= 0 {
		return &contracts.ConfigValidationError{Field: "preprocess.lookback_days", Reason: "must be > 0"}
	}
	if cfg.Preprocess.ForwardFillLimit < 0 {
		return &contracts.ConfigValidationError{Field: "preprocess.forward_fill_limit", Reason: "must be >= 0"}
	}
	if cfg.Preprocess.RollingPeakWindow <= 0 {
		return &contracts.ConfigValidationError{Field: "preprocess.rolling_peak_window", Reason: "must be > 0"}
	}
	switch cfg.Preprocess.Adjust {
	case "none", "adj_close":
	default:
		return &contracts.ConfigValidationError{Field: "preprocess.adjust", Reason: "must be none or adj_close"}
	}

	// === Risk ===
	if cfg.Risk.CrashThresholdPct >= 0 {
		return &contracts.ConfigValidationError{Field: "risk.crash_threshold_pct", Reason: "must be < 0"}
	}
	if cfg.Risk.DrawdownThresholdPct >= 0 {
		return &contracts.ConfigValidationError{Field: "risk.drawdown_threshold_pct", Reason: "must be < 0"}
	}
	if cfg.Risk.MarketFilterRule == "" {
		return &contracts.ConfigValidationError{Field: "risk.market_filter_rule", Reason: "required"}
	}
	if err := validateRule("risk.market_filter_rule", cfg.Risk.MarketFilterRule); err != nil {
		return err
	}

	// === Rebalance ===
	r := cfg.Rebalance
	switch r.Cadence {
	case "weekly", "monthly":
	default:
		return &contracts.ConfigValidationError{Field: "rebalance.cadence", Reason: "must be weekly or monthly"}
	}
	if r.MaxPositions < 1 {
		return &contracts.ConfigValidationError{Field: "rebalance.max_positions", Reason: "must be >= 1"}
	}
	switch r.Weighting {
	case "equal", "score":
	default:
		return &contracts.ConfigValidationError{Field: "rebalance.weighting", Reason: "must be equal or score"}
	}
	if r.MinWeight <= 0 || r.MinWeight > 1 {
		return &contracts.ConfigValidationError{Field: "rebalance.min_weight", Reason: "must be in (0, 1]"}
	}
	if r.CashBufferPct < 0 || r.CashBufferPct >= 1 {
		return &contracts.ConfigValidationError{Field: "rebalance.cash_buffer_pct", Reason: "must be in [0, 1)"}
	}
	if r.TurnoverCapPct <= 0 || r.TurnoverCapPct > 1 {
		return &contracts.ConfigValidationError{Field: "rebalance.turnover_cap_pct", Reason: "must be in (0, 1]"}
	}
	if r.MinWeight > r.Available() {
		return &contracts.ConfigValidationError{
			Field:  "rebalance.min_weight",
			Reason: fmt.Sprintf("min_weight=%.4f exceeds investable fraction %.4f", r.MinWeight, r.Available()),
		}
	}
	switch r.RiskOffPolicy {
	case "skip", "reduce":
	default:
		return &contracts.ConfigValidationError{Field: "rebalance.risk_off_policy", Reason: "must be skip or reduce"}
	}
	switch r.TurnoverPolicy {
	case "proportional", "drop_lowest":
	default:
		return &contracts.ConfigValidationError{Field: "rebalance.turnover_policy", Reason: "must be proportional or drop_lowest"}
	}

	// === Backtest ===
	b := cfg.Backtest
	if b.InitialCash <= 0 {
		return &contracts.ConfigValidationError{Field: "backtest.initial_cash", Reason: "must be > 0"}
	}
	if b.SlippagePct < 0 || b.SlippagePct >= 1 {
		return &contracts.ConfigValidationError{Field: "backtest.slippage_pct", Reason: "must be in [0, 1)"}
	}
	if b.CommissionPerTrade < 0 {
		return &contracts.ConfigValidationError{Field: "backtest.commission_per_trade", Reason: "must be >= 0"}
	}
	if b.TradingDaysPerYear <= 0 {
		return &contracts.ConfigValidationError{Field: "backtest.trading_days_per_year", Reason: "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Rebalance.TurnoverCapPct > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_TURNOVER",
			Message: fmt.Sprintf("turnover cap %.0f%% allows heavy trading cost drag", cfg.Rebalance.TurnoverCapPct*100),
		})
	}

	if cfg.Preprocess.LookbackDays < 252 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_LOOKBACK",
			Message: "lookback under one trading year leaves sma_200 undefined for much of the range",
		})
	}

	implied := cfg.Rebalance.Available() / float64(cfg.Rebalance.MaxPositions)
	if implied < cfg.Rebalance.MinWeight {
		warnings = append(warnings, Warning{
			Code:    "CAPACITY_SHRINK",
			Message: fmt.Sprintf("equal weight at max_positions=%d is %.4f < min_weight=%.4f; selection will shrink", cfg.Rebalance.MaxPositions, implied, cfg.Rebalance.MinWeight),
		})
	}

	if math.Abs(cfg.Risk.CrashThresholdPct) < 0.03 {
		warnings = append(warnings, Warning{
			Code:    "TIGHT_CRASH",
			Message: "crash threshold inside normal daily noise will alert constantly",
		})
	}

	return warnings
}

// validateRule compiles a rule and checks that every identifier names a
// known indicator column.
func validateRule(field, expr string) error {
	rule, err := rules.Parse(expr)
	if err != nil {
		return &contracts.ConfigValidationError{Field: field, Reason: err.Error()}
	}
	for _, ident := range rule.Identifiers() {
		if !barColumns[ident] {
			return &contracts.ConfigValidationError{
				Field:  field,
				Reason: fmt.Sprintf("unknown identifier %q", ident),
			}
		}
	}
	return nil
}
