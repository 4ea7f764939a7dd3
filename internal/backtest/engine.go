// Package backtest replays the decision pipeline over a historical
// window with simulated executions. Decisions at day t use data up to t
// and fill at the next trading day's open, so the driver never sees a
// price the live pipeline would not have had.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/rebalance"
	"github.com/wonhyo-e/argos/internal/risk"
	"github.com/wonhyo-e/argos/internal/signals"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
	"github.com/wonhyo-e/argos/pkg/logger"
)

// Trade is one simulated execution.
type Trade struct {
	Date       time.Time      `json:"date"`
	Symbol     string         `json:"symbol"`
	Side       contracts.Side `json:"side"`
	Qty        float64        `json:"qty"`
	FillPrice  float64        `json:"fill_price"`
	Commission float64        `json:"commission"`
	Notional   float64        `json:"notional"`
}

// EquityPoint is one day of the equity curve, marked at the close.
type EquityPoint struct {
	Date        time.Time `json:"date"`
	Equity      float64   `json:"equity"`
	Cash        float64   `json:"cash"`
	DailyReturn float64   `json:"daily_return"`
	Drawdown    float64   `json:"drawdown"`
}

// Result carries everything a run produced.
type Result struct {
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []Trade       `json:"trades"`
	Metrics     Metrics       `json:"metrics"`
}

// Engine drives one backtest run. It owns fresh pipeline engines so
// runs never share state.
// ⭐ SSOT: 시뮬레이션 상태 전이는 여기서만
type Engine struct {
	cfg          *strategyconfig.Config
	signalEngine *signals.Engine
	riskEngine   *risk.Engine
	rebalancer   *rebalance.Rebalancer
	simulator    *Simulator
	logger       *logger.Logger
}

// NewEngine builds the pipeline engines from a validated config. Rule
// compilation errors surface here, before any data is touched.
func NewEngine(cfg *strategyconfig.Config, log *logger.Logger) (*Engine, error) {
	signalEngine, err := signals.NewEngine(cfg.Strategy, log)
	if err != nil {
		return nil, err
	}
	riskEngine, err := risk.NewEngine(cfg.Risk)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:          cfg,
		signalEngine: signalEngine,
		riskEngine:   riskEngine,
		rebalancer:   rebalance.New(cfg.Rebalance, log),
		simulator:    NewSimulator(cfg.Backtest.SlippagePct, cfg.Backtest.CommissionPerTrade),
		logger:       log,
	}, nil
}

// Run replays [start, end] over the curated calendar. The simulated
// holdings snapshot and cash are the only state carried between days.
// The first day's rebalance is forced so the portfolio ramps in.
func (e *Engine) Run(ctx context.Context, curated *contracts.CuratedSet, start, end time.Time) (*Result, error) {
	window := windowDates(curated.Calendar, start, end)
	if len(window) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s",
			start.Format(contracts.DateLayout), end.Format(contracts.DateLayout))
	}

	holdings := &contracts.HoldingsSnapshot{
		AsOfDate: window[0],
		Cash:     e.cfg.Backtest.InitialCash,
		BaseCCY:  e.cfg.Meta.BaseCCY,
	}

	result := &Result{Start: window[0], End: window[len(window)-1]}
	var pending []contracts.Order
	peak := 0.0
	prevEquity := 0.0

	for i, date := range window {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Yesterday's decision executes at today's open.
		if len(pending) > 0 {
			trades := e.simulator.Fill(holdings, pending, curated, date)
			result.Trades = append(result.Trades, trades...)
			pending = nil
		}
		holdings.AsOfDate = date

		signalSet, err := e.signalEngine.Generate(ctx, curated, e.cfg.Universe.Symbols, date)
		if err != nil {
			return nil, err
		}
		riskResult, err := e.riskEngine.Evaluate(holdings, curated, date)
		if err != nil {
			return nil, err
		}

		prices := ClosePrices(curated, date)
		proposal := e.rebalancer.Propose(signalSet, holdings, riskResult, prices, date, i == 0)
		if len(proposal.Orders) > 0 {
			// Orders on the last window day expire unfilled.
			if _, ok := curated.NextTradingDay(date); ok {
				pending = proposal.Orders
			}
		}

		equity := holdings.Value(prices)
		point := EquityPoint{Date: date, Equity: equity, Cash: holdings.Cash}
		if i > 0 && prevEquity > 0 {
			point.DailyReturn = equity/prevEquity - 1
		}
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			point.Drawdown = equity/peak - 1
		}
		result.EquityCurve = append(result.EquityCurve, point)
		prevEquity = equity
	}

	result.Metrics = computeMetrics(result.EquityCurve, result.Trades, e.cfg.Backtest)

	e.logger.WithFields(map[string]interface{}{
		"start":        result.Start.Format(contracts.DateLayout),
		"end":          result.End.Format(contracts.DateLayout),
		"trading_days": len(result.EquityCurve),
		"trades":       len(result.Trades),
		"final_equity": result.Metrics.FinalEquity,
	}).Info("Backtest run complete")

	return result, nil
}

func windowDates(calendar []time.Time, start, end time.Time) []time.Time {
	var window []time.Time
	for _, date := range calendar {
		if date.Before(start) || date.After(end) {
			continue
		}
		window = append(window, date)
	}
	return window
}

// ClosePrices maps every symbol to its close on date. Symbols without
// a positive close that day are left out.
func ClosePrices(curated *contracts.CuratedSet, date time.Time) map[string]float64 {
	prices := make(map[string]float64, len(curated.Symbols))
	for _, symbol := range curated.Symbols {
		if bar, ok := curated.Row(symbol, date); ok && bar.Close > 0 {
			prices[symbol] = bar.Close
		}
	}
	return prices
}
