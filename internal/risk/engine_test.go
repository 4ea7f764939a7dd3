package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

func d(s string) time.Time {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func defaultParams() strategyconfig.Risk {
	return strategyconfig.Risk{
		CrashThresholdPct:    -0.08,
		DrawdownThresholdPct: -0.20,
		MarketFilterRule:     "close > sma_200",
	}
}

type barSpec struct {
	close       float64
	sma200      float64
	ret1d       float64
	rollingPeak float64
}

// singleDaySet builds a one-date curated set from bar specs.
func singleDaySet(t *testing.T, date time.Time, specs map[string]barSpec) *contracts.CuratedSet {
	t.Helper()
	bars := make(map[string][]contracts.Bar, len(specs))
	for symbol, spec := range specs {
		bars[symbol] = []contracts.Bar{{
			Date:        date,
			Symbol:      symbol,
			Close:       spec.close,
			SMA100:      contracts.Undefined(),
			SMA200:      spec.sma200,
			Ret1D:       spec.ret1d,
			Ret20D:      contracts.Undefined(),
			RollingPeak: spec.rollingPeak,
		}}
	}
	set, err := contracts.NewCuratedSet("SPY", []time.Time{date}, bars)
	require.NoError(t, err)
	return set
}

func holdings(symbols ...string) *contracts.HoldingsSnapshot {
	snap := &contracts.HoldingsSnapshot{Cash: 1000, BaseCCY: "USD"}
	for _, symbol := range symbols {
		snap.Positions = append(snap.Positions, contracts.Position{Symbol: symbol, Qty: 10})
	}
	return snap
}

func newEngine(t *testing.T, params strategyconfig.Risk) *Engine {
	t.Helper()
	engine, err := NewEngine(params)
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsBadFilterRule(t *testing.T) {
	params := defaultParams()
	params.MarketFilterRule = "close >"

	_, err := NewEngine(params)
	require.Error(t, err)
	var cve *contracts.ConfigValidationError
	assert.ErrorAs(t, err, &cve)
}

func TestEvaluateCrashAlert(t *testing.T) {
	date := d("2025-01-10")
	// Holding down 8.5% in one day: prior close 100, current close 91.5.
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0.001, rollingPeak: 425},
		"AAPL": {close: 91.5, sma200: 95, ret1d: -0.085, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("AAPL"), set, date)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	alert := result.Alerts[0]
	assert.Equal(t, "AAPL", alert.Symbol)
	assert.Equal(t, contracts.AlertCrash, alert.Type)
	assert.InDelta(t, -0.085, alert.Value, 1e-12)
	assert.Equal(t, -0.08, alert.Threshold)
}

func TestEvaluateCrashAtExactThresholdFires(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"AAPL": {close: 92, sma200: 95, ret1d: -0.08, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("AAPL"), set, date)
	require.NoError(t, err)
	assert.True(t, result.HasAlert("AAPL", contracts.AlertCrash))
}

func TestEvaluateDrawdownAlert(t *testing.T) {
	date := d("2025-01-10")
	// close 75 against a rolling peak of 100: -25% drawdown.
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"MSFT": {close: 75, sma200: 90, ret1d: -0.01, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("MSFT"), set, date)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	alert := result.Alerts[0]
	assert.Equal(t, contracts.AlertDrawdown, alert.Type)
	assert.InDelta(t, -0.25, alert.Value, 1e-12)
}

func TestEvaluateBothAlertsForOneHolding(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"NVDA": {close: 70, sma200: 100, ret1d: -0.12, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("NVDA"), set, date)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 2)
	assert.Equal(t, contracts.AlertCrash, result.Alerts[0].Type)
	assert.Equal(t, contracts.AlertDrawdown, result.Alerts[1].Type)

	alerts := result.AlertsFor("NVDA")
	require.Len(t, alerts, 2)
	assert.Equal(t, contracts.AlertCrash, alerts[0].Type)
	assert.Empty(t, result.AlertsFor("SPY"))
}

func TestEvaluateAlertsSortedBySymbolThenType(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"AAPL": {close: 70, sma200: 100, ret1d: -0.12, rollingPeak: 100},
		"MSFT": {close: 75, sma200: 90, ret1d: -0.09, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("MSFT", "AAPL"), set, date)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 4)
	assert.Equal(t, "AAPL", result.Alerts[0].Symbol)
	assert.Equal(t, contracts.AlertCrash, result.Alerts[0].Type)
	assert.Equal(t, "AAPL", result.Alerts[1].Symbol)
	assert.Equal(t, contracts.AlertDrawdown, result.Alerts[1].Type)
	assert.Equal(t, "MSFT", result.Alerts[2].Symbol)
	assert.Equal(t, "MSFT", result.Alerts[3].Symbol)
}

func TestEvaluateUndefinedDataNeverTriggers(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"AAPL": {close: 91.5, sma200: 95, ret1d: math.NaN(), rollingPeak: math.NaN()},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings("AAPL"), set, date)
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateZeroQtyExcluded(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"AAPL": {close: 50, sma200: 95, ret1d: -0.5, rollingPeak: 100},
	})

	snap := &contracts.HoldingsSnapshot{
		Positions: []contracts.Position{{Symbol: "AAPL", Qty: 0}},
		Cash:      1000,
	}

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(snap, set, date)
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateMarketFilter(t *testing.T) {
	tests := []struct {
		name  string
		bench barSpec
		want  contracts.MarketState
	}{
		{
			name:  "favorable market",
			bench: barSpec{close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
			want:  contracts.RiskOn,
		},
		{
			name:  "benchmark below long average",
			bench: barSpec{close: 400, sma200: 410, ret1d: 0, rollingPeak: 425},
			want:  contracts.RiskOff,
		},
		{
			name:  "undefined long average fails closed",
			bench: barSpec{close: 400, sma200: math.NaN(), ret1d: 0, rollingPeak: 425},
			want:  contracts.RiskOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date := d("2025-01-10")
			set := singleDaySet(t, date, map[string]barSpec{"SPY": tt.bench})

			engine := newEngine(t, defaultParams())
			result, err := engine.Evaluate(holdings(), set, date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.MarketState)
		})
	}
}

func TestEvaluateNoDataFailsClosed(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY": {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
	})

	engine := newEngine(t, defaultParams())
	result, err := engine.Evaluate(holdings(), set, d("2025-01-03"))
	require.NoError(t, err)
	assert.Equal(t, contracts.RiskOff, result.MarketState)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	date := d("2025-01-10")
	set := singleDaySet(t, date, map[string]barSpec{
		"SPY":  {close: 420, sma200: 410, ret1d: 0, rollingPeak: 425},
		"AAPL": {close: 70, sma200: 100, ret1d: -0.12, rollingPeak: 100},
	})

	engine := newEngine(t, defaultParams())
	first, err := engine.Evaluate(holdings("AAPL"), set, date)
	require.NoError(t, err)
	second, err := engine.Evaluate(holdings("AAPL"), set, date)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
