// Package signals evaluates entry/exit predicates and a ranking score
// per symbol at an as-of date. Symbol evaluations are independent and
// fan out to a worker pool; results are reassembled sorted by symbol so
// scheduling never affects the output.
package signals

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/rules"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
	"github.com/wonhyo-e/argos/pkg/logger"
)

// momentum window for the momentum_63d rank feature, in sessions.
const momentumWindow = 63

// Engine holds the compiled strategy predicates.
// ⭐ SSOT: 룰 컴파일은 엔진 생성 시 한 번만, 평가 중 파싱 없음
type Engine struct {
	entry       *rules.Rule
	exit        *rules.Rule
	rankFeature string
	workers     int
	logger      *logger.Logger
}

// NewEngine compiles the strategy's predicates. Rule errors surface
// here, at configuration time, never during evaluation.
func NewEngine(strategy strategyconfig.Strategy, log *logger.Logger) (*Engine, error) {
	entry, err := rules.Parse(strategy.EntryRuleOrDefault())
	if err != nil {
		return nil, &contracts.ConfigValidationError{Field: "strategy.entry_rule", Reason: err.Error()}
	}
	exit, err := rules.Parse(strategy.ExitRuleOrDefault())
	if err != nil {
		return nil, &contracts.ConfigValidationError{Field: "strategy.exit_rule", Reason: err.Error()}
	}

	return &Engine{
		entry:       entry,
		exit:        exit,
		rankFeature: strategy.RankFeatureOrDefault(),
		workers:     runtime.GOMAXPROCS(0),
		logger:      log,
	}, nil
}

type symbolResult struct {
	signal contracts.Signal
	err    error
}

// Generate evaluates every requested symbol at asOf. Bars after asOf
// are clipped inside the engine, not trusted to the caller.
func (e *Engine) Generate(ctx context.Context, curated *contracts.CuratedSet, symbols []string, asOf time.Time) (*contracts.SignalSet, error) {
	clipped, ok := curated.UpTo(asOf)
	if !ok {
		return nil, &contracts.InsufficientHistoryError{
			Symbol: curated.Benchmark,
			AsOf:   asOf,
			Need:   1,
			Have:   0,
		}
	}
	evalDate := clipped.Calendar[len(clipped.Calendar)-1]

	e.logger.WithFields(map[string]interface{}{
		"date":    evalDate.Format(contracts.DateLayout),
		"symbols": len(symbols),
	}).Debug("Starting signal evaluation")

	jobs := make(chan string, len(symbols))
	results := make(chan symbolResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				select {
				case <-ctx.Done():
					results <- symbolResult{err: ctx.Err()}
					continue
				default:
				}
				signal, err := e.evaluateSymbol(clipped, symbol, evalDate)
				results <- symbolResult{signal: signal, err: err}
			}
		}()
	}

	for _, symbol := range symbols {
		jobs <- symbol
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]contracts.Signal, 0, len(symbols))
	var errs []error
	for result := range results {
		if result.err != nil {
			errs = append(errs, result.err)
			continue
		}
		collected = append(collected, result.signal)
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	// Deterministic reassembly regardless of worker scheduling.
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Symbol < collected[j].Symbol
	})

	set := &contracts.SignalSet{Date: evalDate, Signals: collected}
	e.logger.WithFields(map[string]interface{}{
		"date":  evalDate.Format(contracts.DateLayout),
		"count": set.Count(),
	}).Debug("Signal evaluation completed")
	return set, nil
}

// evaluateSymbol derives the signal kind and rank score for one symbol.
// EXIT wins over BUY; HOLD otherwise.
func (e *Engine) evaluateSymbol(clipped *contracts.CuratedSet, symbol string, evalDate time.Time) (contracts.Signal, error) {
	bars, ok := clipped.Bars(symbol)
	if !ok {
		return contracts.Signal{}, fmt.Errorf("symbol %s not present in curated set", symbol)
	}
	bar := bars[len(bars)-1]

	exitTrue, err := e.exit.Evaluate(&bar)
	if err != nil {
		return contracts.Signal{}, err
	}
	entryTrue, err := e.entry.Evaluate(&bar)
	if err != nil {
		return contracts.Signal{}, err
	}

	kind := contracts.SignalHold
	switch {
	case exitTrue:
		kind = contracts.SignalExit
	case entryTrue:
		kind = contracts.SignalBuy
	}

	score := rankScore(e.rankFeature, bars)

	// Only defined values enter the feature map; an undefined window is
	// absence, not a number.
	features := make(map[string]float64, 7)
	for _, name := range []string{"close", "sma_100", "sma_200", "ret_1d", "ret_20d", "rolling_peak"} {
		if v, ok := bar.Feature(name); ok && contracts.Defined(v) {
			features[name] = v
		}
	}
	if !math.IsInf(score, -1) {
		features[e.rankFeature] = score
	}

	return contracts.Signal{
		Date:      evalDate,
		Symbol:    symbol,
		Kind:      kind,
		RankScore: score,
		Features:  features,
	}, nil
}

// rankScore computes the configured rank feature over the clipped
// series. A missing or undefined value ranks last (-Inf), it never
// errors: an unrankable symbol is still a valid HOLD/EXIT.
func rankScore(feature string, bars []contracts.Bar) float64 {
	last := bars[len(bars)-1]
	switch feature {
	case "momentum_63d":
		if len(bars) <= momentumWindow {
			return math.Inf(-1)
		}
		base := bars[len(bars)-1-momentumWindow].Close
		if base == 0 || math.IsNaN(base) || math.IsNaN(last.Close) {
			return math.Inf(-1)
		}
		return last.Close/base - 1
	case "reversal_20d":
		if !contracts.Defined(last.Ret20D) {
			return math.Inf(-1)
		}
		return -last.Ret20D
	default:
		v, ok := last.Feature(feature)
		if !ok || math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}
}
