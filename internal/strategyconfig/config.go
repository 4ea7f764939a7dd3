package strategyconfig

import "time"

// Config는 트레이딩 전략의 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Universe   Universe   `yaml:"universe" json:"universe"`
	Strategy   Strategy   `yaml:"strategy" json:"strategy"`
	Preprocess Preprocess `yaml:"preprocess" json:"preprocess"`
	Risk       Risk       `yaml:"risk" json:"risk"`
	Rebalance  Rebalance  `yaml:"rebalance" json:"rebalance"`
	Backtest   Backtest   `yaml:"backtest" json:"backtest"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	BaseCCY    string `yaml:"base_ccy" json:"base_ccy"`
}

// Universe defines the tradable symbols and the benchmark whose trading
// dates form the calendar.
type Universe struct {
	Symbols   []string `yaml:"symbols" json:"symbols"`
	Benchmark string   `yaml:"benchmark" json:"benchmark"`
}

// Strategy selects a variant and its predicates. Empty rule fields fall
// back to the variant's defaults.
type Strategy struct {
	Type        string `yaml:"type" json:"type"` // trend_follow | momentum | mean_reversion
	EntryRule   string `yaml:"entry_rule" json:"entry_rule"`
	ExitRule    string `yaml:"exit_rule" json:"exit_rule"`
	RankFeature string `yaml:"rank_feature" json:"rank_feature"`
}

// Preprocess controls curation and indicator windows.
type Preprocess struct {
	LookbackDays      int    `yaml:"lookback_days" json:"lookback_days"`
	ForwardFillLimit  int    `yaml:"forward_fill_limit" json:"forward_fill_limit"`
	RollingPeakWindow int    `yaml:"rolling_peak_window" json:"rolling_peak_window"`
	Adjust            string `yaml:"adjust" json:"adjust"` // none | adj_close
}

// Risk holds alert thresholds and the market filter rule.
type Risk struct {
	CrashThresholdPct    float64 `yaml:"crash_threshold_pct" json:"crash_threshold_pct"`
	DrawdownThresholdPct float64 `yaml:"drawdown_threshold_pct" json:"drawdown_threshold_pct"`
	MarketFilterRule     string  `yaml:"market_filter_rule" json:"market_filter_rule"`
}

// Rebalance controls cadence, selection, and the turnover cap.
type Rebalance struct {
	Cadence        string  `yaml:"cadence" json:"cadence"`     // weekly | monthly
	MaxPositions   int     `yaml:"max_positions" json:"max_positions"`
	Weighting      string  `yaml:"weighting" json:"weighting"` // equal | score
	MinWeight      float64 `yaml:"min_weight" json:"min_weight"`
	CashBufferPct  float64 `yaml:"cash_buffer_pct" json:"cash_buffer_pct"`
	TurnoverCapPct float64 `yaml:"turnover_cap_pct" json:"turnover_cap_pct"`
	RiskOffPolicy  string  `yaml:"risk_off_policy" json:"risk_off_policy"` // skip | reduce
	TurnoverPolicy string  `yaml:"turnover_policy" json:"turnover_policy"` // proportional | drop_lowest
}

// Backtest holds the cost model and metric conventions.
type Backtest struct {
	InitialCash        float64 `yaml:"initial_cash" json:"initial_cash"`
	SlippagePct        float64 `yaml:"slippage_pct" json:"slippage_pct"`
	CommissionPerTrade float64 `yaml:"commission_per_trade" json:"commission_per_trade"`
	RiskFreeRate       float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	TradingDaysPerYear int     `yaml:"trading_days_per_year" json:"trading_days_per_year"`
}

// Available returns the investable fraction after the cash buffer.
func (r Rebalance) Available() float64 {
	return 1.0 - r.CashBufferPct
}

// Strategy variant names.
const (
	StrategyTrendFollow   = "trend_follow"
	StrategyMomentum      = "momentum"
	StrategyMeanReversion = "mean_reversion"
)

// EntryRuleOrDefault returns the configured entry rule or the variant's
// default predicate.
func (s Strategy) EntryRuleOrDefault() string {
	if s.EntryRule != "" {
		return s.EntryRule
	}
	switch s.Type {
	case StrategyMomentum:
		return "ret_20d > 0"
	case StrategyMeanReversion:
		return "close < sma_100"
	default: // trend_follow
		return "close > sma_100"
	}
}

// ExitRuleOrDefault returns the configured exit rule or the variant's
// default predicate.
func (s Strategy) ExitRuleOrDefault() string {
	if s.ExitRule != "" {
		return s.ExitRule
	}
	switch s.Type {
	case StrategyMomentum:
		return "ret_20d < 0"
	case StrategyMeanReversion:
		return "close > sma_100"
	default: // trend_follow
		return "close < sma_200"
	}
}

// RankFeatureOrDefault returns the configured rank feature or the
// variant default.
func (s Strategy) RankFeatureOrDefault() string {
	if s.RankFeature != "" {
		return s.RankFeature
	}
	if s.Type == StrategyMeanReversion {
		return "reversal_20d"
	}
	return "momentum_63d"
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
