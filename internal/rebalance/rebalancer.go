// Package rebalance selects a target portfolio and derives order
// intents from signals, holdings, and the market filter state, under a
// minimum weight, cash buffer, and turnover cap.
package rebalance

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
	"github.com/wonhyo-e/argos/internal/strategyconfig"
	"github.com/wonhyo-e/argos/pkg/logger"
)

// qtyEpsilon drops orders too small to matter after rounding.
const qtyEpsilon = 1e-6

// Rebalancer is a pure proposer. It never mutates holdings and never
// places orders.
// ⭐ SSOT: 목표 비중/주문 의도 산출은 여기서만
type Rebalancer struct {
	params strategyconfig.Rebalance
	logger *logger.Logger
}

// New creates a rebalancer with validated params.
func New(params strategyconfig.Rebalance, log *logger.Logger) *Rebalancer {
	return &Rebalancer{params: params, logger: log}
}

// IsRebalanceDate reports whether date falls on the configured cadence:
// weekly = Friday, monthly = last weekday of the month.
func (r *Rebalancer) IsRebalanceDate(date time.Time) bool {
	return IsCadenceDate(r.params.Cadence, date)
}

// IsCadenceDate implements the cadence calendar without holiday data.
func IsCadenceDate(cadence string, date time.Time) bool {
	switch cadence {
	case "weekly":
		return date.Weekday() == time.Friday
	case "monthly":
		return isLastWeekdayOfMonth(date)
	}
	return false
}

func isLastWeekdayOfMonth(date time.Time) bool {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	for next := date.AddDate(0, 0, 1); next.Month() == date.Month(); next = next.AddDate(0, 0, 1) {
		if wd := next.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return false
		}
	}
	return true
}

// candidate carries one symbol through selection.
type candidate struct {
	symbol    string
	rankScore float64
	isHeld    bool
}

// Propose builds a rebalance proposal for asOf. prices supplies the
// valuation for holdings and order sizing. force bypasses the cadence
// gate (the backtest driver uses it for the initial allocation).
//
// An empty eligible set is a valid NO_CANDIDATES proposal with forced
// exit sells only, never an error.
func (r *Rebalancer) Propose(
	signalSet *contracts.SignalSet,
	holdings *contracts.HoldingsSnapshot,
	riskResult *contracts.RiskResult,
	prices map[string]float64,
	asOf time.Time,
	force bool,
) *contracts.RebalanceProposal {
	proposal := &contracts.RebalanceProposal{
		Date:         asOf,
		UniverseSize: signalSet.Count(),
	}

	if !force && !r.IsRebalanceDate(asOf) {
		proposal.Status = contracts.StatusNoRebalance
		proposal.Rationale = fmt.Sprintf("market=%s; off-cadence (%s)", riskResult.MarketState, r.params.Cadence)
		return proposal
	}

	portfolioValue := holdings.Value(prices)
	if portfolioValue <= 0 {
		proposal.Status = contracts.StatusNoCandidates
		proposal.Rationale = "portfolio value is zero"
		return proposal
	}

	exits := r.forcedExits(signalSet, holdings)
	candidates := r.eligibleCandidates(signalSet, holdings, riskResult)

	selected, status := r.selectTargets(candidates)
	weights := r.weights(selected)

	proposal.Selected = len(selected)
	proposal.Targets = buildTargets(selected, weights, exits)
	proposal.Orders = r.deriveOrders(proposal.Targets, holdings, prices, portfolioValue)

	throttled, capStatus := r.applyTurnoverCap(proposal.Orders, selected, portfolioValue)
	proposal.Orders = throttled
	proposal.Turnover = totalTurnover(proposal.Orders, portfolioValue)

	switch {
	case capStatus != "":
		proposal.Status = capStatus
	case status != "":
		proposal.Status = status
	case len(selected) == 0:
		proposal.Status = contracts.StatusNoCandidates
	default:
		proposal.Status = contracts.StatusRebalance
	}

	proposal.Rationale = r.rationale(riskResult, candidates, selected, exits, proposal.Turnover)

	r.logger.WithFields(map[string]interface{}{
		"date":     asOf.Format(contracts.DateLayout),
		"status":   string(proposal.Status),
		"selected": proposal.Selected,
		"orders":   len(proposal.Orders),
		"turnover": proposal.Turnover,
	}).Debug("Rebalance proposal built")

	return proposal
}

// forcedExits lists held symbols whose latest signal is EXIT. Their
// target weight is zero regardless of rank.
func (r *Rebalancer) forcedExits(signalSet *contracts.SignalSet, holdings *contracts.HoldingsSnapshot) []string {
	var exits []string
	for _, symbol := range holdings.Held() {
		if sig, ok := signalSet.Get(symbol); ok && sig.Kind == contracts.SignalExit {
			exits = append(exits, symbol)
		}
	}
	return exits
}

// eligibleCandidates filters and orders candidates by (-rank, symbol).
// A symbol qualifies as a fresh BUY, or by being held without an EXIT.
// Under RISK_OFF the configured policy restricts NEW admissions only:
// existing holdings are never force-reduced by the filter.
func (r *Rebalancer) eligibleCandidates(signalSet *contracts.SignalSet, holdings *contracts.HoldingsSnapshot, riskResult *contracts.RiskResult) []candidate {
	var candidates []candidate
	for _, sig := range signalSet.Ranked() {
		held := holdings.Qty(sig.Symbol) > 0
		switch {
		case sig.Kind == contracts.SignalExit:
			continue
		case sig.Kind == contracts.SignalBuy, held:
			candidates = append(candidates, candidate{
				symbol:    sig.Symbol,
				rankScore: sig.RankScore,
				isHeld:    held,
			})
		}
	}

	if !riskResult.IsRiskOff() {
		return candidates
	}

	switch r.params.RiskOffPolicy {
	case "reduce":
		// Admit only the top half of new candidates, rounding down.
		newCount := 0
		for _, c := range candidates {
			if !c.isHeld {
				newCount++
			}
		}
		allowed := newCount / 2
		filtered := candidates[:0]
		for _, c := range candidates {
			if !c.isHeld {
				if allowed == 0 {
					continue
				}
				allowed--
			}
			filtered = append(filtered, c)
		}
		return filtered
	default: // "skip": no new admissions at all
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.isHeld {
				filtered = append(filtered, c)
			}
		}
		return filtered
	}
}

// selectTargets takes the top candidates, shrinking the count until the
// equal-weight share clears min_weight.
func (r *Rebalancer) selectTargets(candidates []candidate) ([]candidate, contracts.ProposalStatus) {
	available := r.params.Available()
	capacity := r.params.MaxPositions
	if byWeight := int(math.Floor(available / r.params.MinWeight)); byWeight < capacity {
		capacity = byWeight
	}
	if capacity <= 0 {
		return nil, contracts.StatusNoCapacity
	}
	if len(candidates) == 0 {
		return nil, ""
	}
	if len(candidates) > capacity {
		candidates = candidates[:capacity]
	}

	// Drop the tail candidate until the per-symbol share is investable.
	for len(candidates) > 0 && available/float64(len(candidates)) < r.params.MinWeight {
		candidates = candidates[:len(candidates)-1]
	}
	return candidates, ""
}

// weights assigns the investable fraction across the selection: equal
// shares, or proportional to clamped rank scores with an equal-weight
// fallback when no score is positive. Symbols falling under min_weight
// are dropped from the tail and weights recomputed until stable.
func (r *Rebalancer) weights(selected []candidate) map[string]float64 {
	available := r.params.Available()
	weights := make(map[string]float64, len(selected))
	if len(selected) == 0 {
		return weights
	}

	if r.params.Weighting == "equal" {
		share := available / float64(len(selected))
		for _, c := range selected {
			weights[c.symbol] = share
		}
		return weights
	}

	remaining := append([]candidate(nil), selected...)
	for len(remaining) > 0 {
		scoreSum := 0.0
		for _, c := range remaining {
			scoreSum += positiveScore(c.rankScore)
		}
		if scoreSum == 0 {
			// All scores non-positive: fall back to equal weights.
			share := available / float64(len(remaining))
			for k := range weights {
				delete(weights, k)
			}
			for _, c := range remaining {
				weights[c.symbol] = share
			}
			return weights
		}

		for k := range weights {
			delete(weights, k)
		}
		smallest := -1
		for i, c := range remaining {
			w := available * positiveScore(c.rankScore) / scoreSum
			weights[c.symbol] = w
			if w < r.params.MinWeight && (smallest == -1 || w <= weights[remaining[smallest].symbol]) {
				smallest = i
			}
		}
		if smallest == -1 {
			return weights
		}
		remaining = append(remaining[:smallest], remaining[smallest+1:]...)
	}
	return map[string]float64{}
}

func positiveScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, -1) || score <= 0 {
		return 0
	}
	return score
}

// buildTargets merges selection weights with forced exits, sorted by
// symbol. Exit enforcement wins over selection.
func buildTargets(selected []candidate, weights map[string]float64, exits []string) []contracts.Target {
	targets := make([]contracts.Target, 0, len(selected)+len(exits))
	rankOf := make(map[string]int, len(selected))
	for i, c := range selected {
		rankOf[c.symbol] = i + 1
	}

	for _, c := range selected {
		w, ok := weights[c.symbol]
		if !ok {
			continue
		}
		targets = append(targets, contracts.Target{
			Symbol:       c.symbol,
			TargetWeight: w,
			Rationale:    fmt.Sprintf("rank %d score %.6f", rankOf[c.symbol], c.rankScore),
		})
	}
	for _, symbol := range exits {
		targets = append(targets, contracts.Target{
			Symbol:       symbol,
			TargetWeight: 0,
			Rationale:    "exit rule triggered",
		})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Symbol < targets[j].Symbol })
	return targets
}

// deriveOrders diffs target weights against current notional shares.
// Quantities round toward zero so an order never overshoots its target.
// Held symbols absent from the targets are fully sold.
func (r *Rebalancer) deriveOrders(targets []contracts.Target, holdings *contracts.HoldingsSnapshot, prices map[string]float64, portfolioValue float64) []contracts.Order {
	targetWeight := make(map[string]float64, len(targets))
	for _, t := range targets {
		targetWeight[t.Symbol] = t.TargetWeight
	}

	universe := make(map[string]bool, len(targets))
	for _, t := range targets {
		universe[t.Symbol] = true
	}
	for _, symbol := range holdings.Held() {
		universe[symbol] = true
	}

	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var orders []contracts.Order
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			continue
		}
		currentQty := holdings.Qty(symbol)
		currentWeight := currentQty * price / portfolioValue
		deltaWeight := targetWeight[symbol] - currentWeight

		qty := truncateQty(deltaWeight * portfolioValue / price)
		if math.Abs(qty) < qtyEpsilon {
			continue
		}

		side := contracts.SideBuy
		if qty < 0 {
			side = contracts.SideSell
		}
		orders = append(orders, contracts.Order{
			Symbol:   symbol,
			Side:     side,
			Qty:      math.Abs(qty),
			Notional: math.Abs(qty) * price,
		})
	}
	return orders
}

// truncateQty rounds toward zero at 6 decimals.
func truncateQty(qty float64) float64 {
	return math.Trunc(qty*1e6) / 1e6
}

// applyTurnoverCap throttles BUY orders, new admissions and top-ups of
// held symbols alike, when total traded notional exceeds the cap.
// Sells, exit-forced or otherwise, are never throttled. Policy is
// configuration-driven: proportional scaling (default) or dropping
// lowest-ranked buys.
func (r *Rebalancer) applyTurnoverCap(orders []contracts.Order, selected []candidate, portfolioValue float64) ([]contracts.Order, contracts.ProposalStatus) {
	capNotional := r.params.TurnoverCapPct * portfolioValue

	total := 0.0
	buyNotional := 0.0
	for _, o := range orders {
		total += o.Notional
		if o.Side == contracts.SideBuy {
			buyNotional += o.Notional
		}
	}
	if total <= capNotional {
		return orders, ""
	}

	budget := capNotional - (total - buyNotional)
	if budget <= 0 {
		// Sells alone breach the cap: every buy goes, the sells stay,
		// and the proposal is flagged.
		kept := orders[:0]
		for _, o := range orders {
			if o.Side == contracts.SideBuy {
				continue
			}
			kept = append(kept, o)
		}
		return kept, contracts.StatusTurnoverLimit
	}

	if r.params.TurnoverPolicy == "drop_lowest" {
		return r.dropLowestBuys(orders, selected, buyNotional, budget), ""
	}
	return scaleBuys(orders, budget/buyNotional), ""
}

// scaleBuys scales every buy pro-rata so total turnover lands exactly
// on the cap.
func scaleBuys(orders []contracts.Order, factor float64) []contracts.Order {
	scaled := make([]contracts.Order, 0, len(orders))
	for _, o := range orders {
		if o.Side == contracts.SideBuy {
			price := o.Notional / o.Qty
			qty := truncateQty(o.Qty * factor)
			if qty < qtyEpsilon {
				continue
			}
			o.Qty = qty
			o.Notional = qty * price
		}
		scaled = append(scaled, o)
	}
	return scaled
}

// dropLowestBuys removes buys starting from the lowest-ranked selection
// until the remaining buy notional fits the budget.
func (r *Rebalancer) dropLowestBuys(orders []contracts.Order, selected []candidate, buyNotional, budget float64) []contracts.Order {
	notional := make(map[string]float64, len(orders))
	for _, o := range orders {
		if o.Side == contracts.SideBuy {
			notional[o.Symbol] = o.Notional
		}
	}

	dropped := make(map[string]bool)
	remaining := buyNotional
	for i := len(selected) - 1; i >= 0 && remaining > budget; i-- {
		symbol := selected[i].symbol
		n, ok := notional[symbol]
		if !ok {
			continue
		}
		dropped[symbol] = true
		remaining -= n
	}

	kept := orders[:0]
	for _, o := range orders {
		if dropped[o.Symbol] && o.Side == contracts.SideBuy {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

func totalTurnover(orders []contracts.Order, portfolioValue float64) float64 {
	total := 0.0
	for _, o := range orders {
		total += o.Notional
	}
	return total / portfolioValue
}

// rationale summarizes what the proposal did and why.
func (r *Rebalancer) rationale(riskResult *contracts.RiskResult, candidates, selected []candidate, exits []string, turnover float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "market=%s; candidates=%d; selected=%d", riskResult.MarketState, len(candidates), len(selected))
	if len(selected) > 0 {
		fmt.Fprintf(&b, "; rank_cutoff=%.6f", selected[len(selected)-1].rankScore)
	}
	if len(exits) > 0 {
		fmt.Fprintf(&b, "; exits=%s", strings.Join(exits, ","))
	}
	fmt.Fprintf(&b, "; turnover=%.4f (cap %.4f, %s)", turnover, r.params.TurnoverCapPct, r.params.TurnoverPolicy)
	return b.String()
}
