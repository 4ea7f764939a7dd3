package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonhyo-e/argos/internal/contracts"
)

func d(s string) time.Time {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

const barCSV = `date,symbol,open,high,low,close,adj_close,volume
2025-01-02,SPY,100,102,99,101,101,1000
2025-01-03,SPY,101,103,100,102,102,1100
2025-01-03,AAPL,50,51,49,50.5,50.5,2000
2025-01-02,AAPL,49,50,48,49.5,49.5,1900
`

func TestLoadBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(barCSV), 0o644))

	bars, err := LoadBars(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Out-of-order input is sorted by date per symbol.
	aapl := bars["AAPL"]
	require.Len(t, aapl, 2)
	assert.Equal(t, d("2025-01-02"), aapl[0].Date)
	assert.Equal(t, 49.5, aapl[0].Close)
	assert.Equal(t, d("2025-01-03"), aapl[1].Date)

	// Indicators start undefined.
	assert.False(t, contracts.Defined(aapl[0].SMA100))
	assert.False(t, contracts.Defined(aapl[0].RollingPeak))
}

func TestLoadBarsRejectsBadDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	bad := "date,symbol,open,high,low,close,adj_close,volume\n01/02/2025,SPY,1,1,1,1,1,1\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadBars(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestLoadBarsMissingFile(t *testing.T) {
	_, err := LoadBars(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestCuratedRoundTrip(t *testing.T) {
	dates := []time.Time{d("2025-01-02"), d("2025-01-03")}
	mkBars := func(symbol string) []contracts.Bar {
		bars := make([]contracts.Bar, len(dates))
		for i, date := range dates {
			bars[i] = contracts.Bar{
				Date: date, Symbol: symbol,
				Open: 100, High: 101, Low: 99, Close: 100.5, AdjClose: 100.5, Volume: 500,
				SMA100: math.NaN(), SMA200: math.NaN(),
				Ret1D: math.NaN(), Ret20D: math.NaN(), RollingPeak: math.NaN(),
			}
		}
		// second bar has a defined ret_1d and peak
		bars[1].Ret1D = 0.005
		bars[1].RollingPeak = 100.5
		return bars
	}

	curated, err := contracts.NewCuratedSet("SPY", dates, map[string][]contracts.Bar{
		"SPY":  mkBars("SPY"),
		"AAPL": mkBars("AAPL"),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "curated.csv")
	require.NoError(t, SaveCurated(path, curated))

	// Undefined values serialize as empty cells, not "NaN".
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "NaN")

	loaded, err := LoadCurated(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	spy := loaded["SPY"]
	require.Len(t, spy, 2)
	assert.False(t, contracts.Defined(spy[0].Ret1D))
	assert.Equal(t, 0.005, spy[1].Ret1D)
	assert.Equal(t, 100.5, spy[1].RollingPeak)
	assert.Equal(t, 500.0, spy[0].Volume)
}

func TestHoldingsRoundTrip(t *testing.T) {
	snapshot := &contracts.HoldingsSnapshot{
		AsOfDate: d("2025-03-14"),
		BaseCCY:  "USD",
		Cash:     12500.75,
		Positions: []contracts.Position{
			{Symbol: "AAPL", Qty: 10, CostBasis: 180.25},
			{Symbol: "MSFT", Qty: 4.5, CostBasis: 410},
		},
	}

	path := filepath.Join(t.TempDir(), "holdings.json")
	require.NoError(t, SaveHoldings(path, snapshot))

	// Dates travel as plain YYYY-MM-DD strings.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"as_of_date": "2025-03-14"`)

	loaded, err := LoadHoldings(path)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}

func TestLoadHoldingsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad date", `{"as_of_date":"14-03-2025","base_ccy":"USD","cash":1,"positions":[]}`},
		{"negative cash", `{"as_of_date":"2025-03-14","base_ccy":"USD","cash":-1,"positions":[]}`},
		{"unsorted positions", `{"as_of_date":"2025-03-14","base_ccy":"USD","cash":1,"positions":[{"symbol":"MSFT","qty":1,"cost_basis":1},{"symbol":"AAPL","qty":1,"cost_basis":1}]}`},
		{"negative qty", `{"as_of_date":"2025-03-14","base_ccy":"USD","cash":1,"positions":[{"symbol":"AAPL","qty":-1,"cost_basis":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "holdings.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := LoadHoldings(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveSignalsOmitsUnrankable(t *testing.T) {
	date := d("2025-01-10")
	set := &contracts.SignalSet{Date: date, Signals: []contracts.Signal{
		{Date: date, Symbol: "AAPL", Kind: contracts.SignalBuy, RankScore: 0.12,
			Features: map[string]float64{"close": 180, "momentum_63d": 0.12}},
		{Date: date, Symbol: "NEWCO", Kind: contracts.SignalHold, RankScore: math.Inf(-1)},
	}}

	path := filepath.Join(t.TempDir(), "signals.json")
	require.NoError(t, SaveSignals(path, set))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed struct {
		Date    string `json:"date"`
		Signals []struct {
			Symbol    string             `json:"symbol"`
			Signal    string             `json:"signal"`
			RankScore *float64           `json:"rank_score"`
			Features  map[string]float64 `json:"features"`
		} `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.Equal(t, "2025-01-10", parsed.Date)
	require.Len(t, parsed.Signals, 2)
	require.NotNil(t, parsed.Signals[0].RankScore)
	assert.Equal(t, 0.12, *parsed.Signals[0].RankScore)
	assert.Equal(t, 180.0, parsed.Signals[0].Features["close"])
	assert.Nil(t, parsed.Signals[1].RankScore, "no score serialized for short history")
}

func TestSaveRiskResult(t *testing.T) {
	date := d("2025-01-10")
	result := &contracts.RiskResult{
		Date:        date,
		MarketState: contracts.RiskOff,
		Alerts: []contracts.RiskAlert{
			{Symbol: "AAPL", Type: contracts.AlertCrash, Value: -0.085, Threshold: -0.08, Reason: "1-day return -0.0850 breached -0.0800"},
		},
	}

	path := filepath.Join(t.TempDir(), "risk.json")
	require.NoError(t, SaveRiskResult(path, result))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"market_state": "RISK_OFF"`)
	assert.Contains(t, body, `"type": "CRASH"`)
	assert.False(t, strings.Contains(body, "0001-01-01"), "dates must be wire-formatted")
}

func TestSaveRiskResultEmptyAlerts(t *testing.T) {
	result := &contracts.RiskResult{Date: d("2025-01-10"), MarketState: contracts.RiskOn}

	path := filepath.Join(t.TempDir(), "risk.json")
	require.NoError(t, SaveRiskResult(path, result))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"alerts": []`, "nil alerts serialize as an empty list")
}

func TestSaveProposal(t *testing.T) {
	proposal := &contracts.RebalanceProposal{
		Date:         d("2025-01-10"),
		Status:       contracts.StatusRebalance,
		UniverseSize: 25,
		Selected:     8,
		Targets: []contracts.Target{
			{Symbol: "AAPL", TargetWeight: 0.11875, Rationale: "rank 1 score 0.120000"},
		},
		Orders: []contracts.Order{
			{Symbol: "AAPL", Side: contracts.SideBuy, Qty: 11.875, Notional: 1187.5},
		},
		Turnover:  0.11875,
		Rationale: "market=RISK_ON; candidates=20; selected=8",
	}

	path := filepath.Join(t.TempDir(), "deep", "nested", "proposal.json")
	require.NoError(t, SaveProposal(path, proposal), "parent dirs are created")

	var parsed proposalJSON
	require.NoError(t, ReadJSON(path, &parsed))
	assert.Equal(t, "2025-01-10", parsed.Date)
	assert.Equal(t, "REBALANCE", parsed.Status)
	assert.Equal(t, 8, parsed.Selected)
	require.Len(t, parsed.Orders, 1)
	assert.Equal(t, "BUY", string(parsed.Orders[0].Side))
}

func TestSaveProposalEmptySlices(t *testing.T) {
	proposal := &contracts.RebalanceProposal{
		Date:   d("2025-01-09"),
		Status: contracts.StatusNoRebalance,
	}

	path := filepath.Join(t.TempDir(), "proposal.json")
	require.NoError(t, SaveProposal(path, proposal))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"targets": []`)
	assert.Contains(t, string(raw), `"orders": []`)
}
