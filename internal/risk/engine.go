package risk

import (
	"fmt"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/rules"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
)

// =============================================================================
// Risk Engine - 순수 계산기
// =============================================================================

// Engine evaluates crash/drawdown alerts per holding and the global
// market filter. Pure: no I/O, no side effects, no memory between
// evaluations beyond what the curated bars carry.
// ⭐ SSOT: 리스크 판정은 여기서만, 대응(청산/축소)은 Rebalancer가 담당
type Engine struct {
	crashThreshold    float64
	drawdownThreshold float64
	marketFilter      *rules.Rule
}

// NewEngine compiles the market filter rule. A malformed rule is a
// configuration error, surfaced here and never per-date.
func NewEngine(cfg strategyconfig.Risk) (*Engine, error) {
	filter, err := rules.Parse(cfg.MarketFilterRule)
	if err != nil {
		return nil, &contracts.ConfigValidationError{
			Field:  "risk.market_filter_rule",
			Reason: err.Error(),
		}
	}
	return &Engine{
		crashThreshold:    cfg.CrashThresholdPct,
		drawdownThreshold: cfg.DrawdownThresholdPct,
		marketFilter:      filter,
	}, nil
}

// Evaluate computes the risk result at asOf. Missing or undefined data
// never triggers an alert; a missing benchmark row forces RISK_OFF
// (fail closed).
func (e *Engine) Evaluate(holdings *contracts.HoldingsSnapshot, curated *contracts.CuratedSet, asOf time.Time) (*contracts.RiskResult, error) {
	clipped, ok := curated.UpTo(asOf)
	if !ok {
		// No usable data on or before asOf: nothing to alert on, and
		// the market filter fails closed.
		return &contracts.RiskResult{Date: asOf, MarketState: contracts.RiskOff}, nil
	}
	evalDate := clipped.Calendar[len(clipped.Calendar)-1]

	result := &contracts.RiskResult{
		Date:        evalDate,
		MarketState: e.marketState(clipped, evalDate),
	}

	// Held() is sorted, and CRASH orders before DRAWDOWN, so the alert
	// list comes out ordered by (symbol, type).
	for _, symbol := range holdings.Held() {
		bar, ok := clipped.Row(symbol, evalDate)
		if !ok {
			continue
		}
		if alert, fired := e.crashAlert(&bar); fired {
			result.Alerts = append(result.Alerts, alert)
		}
		if alert, fired := e.drawdownAlert(&bar); fired {
			result.Alerts = append(result.Alerts, alert)
		}
	}

	return result, nil
}

// marketState evaluates the benchmark rule at evalDate. Any failure
// path (missing row, undefined indicators) is RISK_OFF.
func (e *Engine) marketState(clipped *contracts.CuratedSet, evalDate time.Time) contracts.MarketState {
	bar, ok := clipped.Row(clipped.Benchmark, evalDate)
	if !ok {
		return contracts.RiskOff
	}
	favorable, err := e.marketFilter.Evaluate(&bar)
	if err != nil || !favorable {
		return contracts.RiskOff
	}
	return contracts.RiskOn
}

func (e *Engine) crashAlert(bar *contracts.Bar) (contracts.RiskAlert, bool) {
	if !contracts.Defined(bar.Ret1D) || bar.Ret1D > e.crashThreshold {
		return contracts.RiskAlert{}, false
	}
	return contracts.RiskAlert{
		Symbol:    bar.Symbol,
		Type:      contracts.AlertCrash,
		Value:     bar.Ret1D,
		Threshold: e.crashThreshold,
		Reason:    fmt.Sprintf("1-day return %.4f breached %.4f", bar.Ret1D, e.crashThreshold),
	}, true
}

func (e *Engine) drawdownAlert(bar *contracts.Bar) (contracts.RiskAlert, bool) {
	if !contracts.Defined(bar.Close) || !contracts.Defined(bar.RollingPeak) || bar.RollingPeak <= 0 {
		return contracts.RiskAlert{}, false
	}
	drawdown := bar.Close/bar.RollingPeak - 1
	if drawdown > e.drawdownThreshold {
		return contracts.RiskAlert{}, false
	}
	return contracts.RiskAlert{
		Symbol:    bar.Symbol,
		Type:      contracts.AlertDrawdown,
		Value:     drawdown,
		Threshold: e.drawdownThreshold,
		Reason:    fmt.Sprintf("drawdown %.4f from rolling peak breached %.4f", drawdown, e.drawdownThreshold),
	}, true
}
