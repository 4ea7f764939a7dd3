package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

// Metrics summarizes a backtest run. Drawdown and hit rate are
// fractions; ratios are annualized with the configured trading-day
// count.
type Metrics struct {
	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	TotalReturn   float64 `json:"total_return"`
	CAGR          float64 `json:"cagr"`
	AnnualizedVol float64 `json:"annualized_vol"`
	Sharpe        float64 `json:"sharpe"`
	Sortino       float64 `json:"sortino"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	HitRate       float64 `json:"hit_rate"`
	TradeCount    int     `json:"trade_count"`
	GrossTraded   float64 `json:"gross_traded"`
	TotalCosts    float64 `json:"total_costs"`
}

// computeMetrics derives run statistics from the equity curve and trade
// log. An empty or single-point curve yields zeroed ratios.
func computeMetrics(curve []EquityPoint, trades []Trade, cfg strategyconfig.Backtest) Metrics {
	m := Metrics{TradeCount: len(trades)}
	for _, trade := range trades {
		m.GrossTraded += trade.Notional
		m.TotalCosts += trade.Commission
	}
	if len(curve) == 0 {
		return m
	}

	m.InitialEquity = curve[0].Equity
	m.FinalEquity = curve[len(curve)-1].Equity
	if m.InitialEquity > 0 {
		m.TotalReturn = m.FinalEquity/m.InitialEquity - 1
	}

	tradingDays := float64(cfg.TradingDaysPerYear)
	years := float64(len(curve)) / tradingDays
	if years > 0 && m.InitialEquity > 0 && m.FinalEquity > 0 {
		m.CAGR = math.Pow(m.FinalEquity/m.InitialEquity, 1/years) - 1
	}

	for _, point := range curve {
		if point.Drawdown < -m.MaxDrawdown {
			m.MaxDrawdown = -point.Drawdown
		}
	}

	returns := dailyReturns(curve)
	if len(returns) < 2 {
		return m
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return m
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return m
	}

	dailyRf := cfg.RiskFreeRate / tradingDays
	excess := mean - dailyRf
	annualize := math.Sqrt(tradingDays)

	m.AnnualizedVol = stdev * annualize
	if stdev > 0 {
		m.Sharpe = excess / stdev * annualize
	}
	if downside := downsideDeviation(returns, dailyRf); downside > 0 {
		m.Sortino = excess / downside * annualize
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	m.HitRate = float64(wins) / float64(len(returns))

	return m
}

// dailyReturns skips the first curve point: its return is zero by
// construction, not a realized outcome.
func dailyReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for _, point := range curve[1:] {
		returns = append(returns, point.DailyReturn)
	}
	return returns
}

// downsideDeviation is the root mean square of returns below the daily
// risk-free rate, the Sortino denominator.
func downsideDeviation(returns []float64, dailyRf float64) float64 {
	sumSq := 0.0
	for _, r := range returns {
		if shortfall := r - dailyRf; shortfall < 0 {
			sumSq += shortfall * shortfall
		}
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}
