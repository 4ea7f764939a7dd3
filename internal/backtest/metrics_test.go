package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

func btConfig() strategyconfig.Backtest {
	return strategyconfig.Backtest{
		InitialCash:        100000,
		RiskFreeRate:       0,
		TradingDaysPerYear: 252,
	}
}

// curveFrom builds an equity curve from a starting equity and a list of
// daily returns, tracking the running peak like the engine does.
func curveFrom(start float64, returns []float64) []EquityPoint {
	curve := []EquityPoint{{Date: time.Now(), Equity: start}}
	equity := start
	peak := start
	for i, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		curve = append(curve, EquityPoint{
			Date:        curve[0].Date.AddDate(0, 0, i+1),
			Equity:      equity,
			DailyReturn: r,
			Drawdown:    equity/peak - 1,
		})
	}
	return curve
}

func TestComputeMetricsSteadyGain(t *testing.T) {
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	curve := curveFrom(100000, returns)

	m := computeMetrics(curve, nil, btConfig())

	assert.InDelta(t, math.Pow(1.01, 20)-1, m.TotalReturn, 1e-9)
	assert.Equal(t, 1.0, m.HitRate)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.InDelta(t, 0.0, m.AnnualizedVol, 1e-9, "constant returns have no variance")
	assert.Equal(t, 0.0, m.Sharpe, "undefined ratio reported as zero, not Inf")
	assert.Greater(t, m.CAGR, 0.0)
}

func TestComputeMetricsDrawdownAndHitRate(t *testing.T) {
	// Up 10%, down 20%, up 5%: trough is 0.88 of the 1.10 peak.
	curve := curveFrom(100000, []float64{0.10, -0.20, 0.05})

	m := computeMetrics(curve, nil, btConfig())

	assert.InDelta(t, 0.20, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.HitRate, 1e-9)
	assert.Less(t, m.TotalReturn, 0.0)
	assert.Less(t, m.Sharpe, 0.0)
}

func TestComputeMetricsSortinoUsesDownsideOnly(t *testing.T) {
	// Same mean, different downside: the all-positive series has no
	// downside deviation so Sortino stays zero-valued by convention.
	mixed := curveFrom(100000, []float64{0.02, -0.01, 0.02, -0.01, 0.02, -0.01})
	m := computeMetrics(mixed, nil, btConfig())

	require.Greater(t, m.Sortino, 0.0)
	assert.Greater(t, m.Sortino, m.Sharpe, "downside deviation is smaller than full stdev here")
}

func TestComputeMetricsTradeTotals(t *testing.T) {
	trades := []Trade{
		{Symbol: "AAA", Side: contracts.SideBuy, Qty: 10, FillPrice: 100, Commission: 1, Notional: 1000},
		{Symbol: "BBB", Side: contracts.SideBuy, Qty: 5, FillPrice: 200, Commission: 1, Notional: 1000},
		{Symbol: "AAA", Side: contracts.SideSell, Qty: 10, FillPrice: 110, Commission: 1, Notional: 1100},
	}

	m := computeMetrics(nil, trades, btConfig())

	assert.Equal(t, 3, m.TradeCount)
	assert.InDelta(t, 3100.0, m.GrossTraded, 1e-9)
	assert.InDelta(t, 3.0, m.TotalCosts, 1e-9)
	assert.Equal(t, 0.0, m.FinalEquity, "no curve, no equity stats")
}

func TestComputeMetricsShortCurve(t *testing.T) {
	curve := []EquityPoint{{Equity: 100000}}
	m := computeMetrics(curve, nil, btConfig())

	assert.Equal(t, 100000.0, m.InitialEquity)
	assert.Equal(t, 100000.0, m.FinalEquity)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.Sharpe)
	assert.Equal(t, 0.0, m.AnnualizedVol)
}

func TestComputeMetricsRiskFreeExcess(t *testing.T) {
	returns := make([]float64, 30)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = 0.002
		} else {
			returns[i] = -0.001
		}
	}
	curve := curveFrom(100000, returns)

	zeroRf := computeMetrics(curve, nil, btConfig())
	cfg := btConfig()
	cfg.RiskFreeRate = 0.05
	withRf := computeMetrics(curve, nil, cfg)

	assert.Less(t, withRf.Sharpe, zeroRf.Sharpe, "higher risk-free rate lowers the excess return")
	assert.Equal(t, zeroRf.AnnualizedVol, withRf.AnnualizedVol)
}
