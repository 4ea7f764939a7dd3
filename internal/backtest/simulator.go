package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
)

// qtyEpsilon matches the rebalancer's order dust threshold.
const qtyEpsilon = 1e-6

// Simulator executes order intents against open prices with a linear
// slippage and flat commission cost model. It mutates the holdings
// snapshot it is handed; the engine owns that state.
// ⭐ SSOT: 백테스팅 체결 시뮬레이션은 여기서만
type Simulator struct {
	slippage   float64
	commission float64
}

// NewSimulator creates a simulator with the configured cost model.
func NewSimulator(slippagePct, commissionPerTrade float64) *Simulator {
	return &Simulator{slippage: slippagePct, commission: commissionPerTrade}
}

// Fill executes orders at the date's open. Sells run before buys so
// proceeds fund the same day's purchases. A buy never spends cash it
// does not have: quantity shrinks to what the remaining cash affords.
// Orders without a positive open price that day are skipped.
func (s *Simulator) Fill(holdings *contracts.HoldingsSnapshot, orders []contracts.Order, curated *contracts.CuratedSet, date time.Time) []Trade {
	var trades []Trade
	for _, pass := range []contracts.Side{contracts.SideSell, contracts.SideBuy} {
		for _, order := range orders {
			if order.Side != pass {
				continue
			}
			bar, ok := curated.Row(order.Symbol, date)
			if !ok || bar.Open <= 0 {
				continue
			}

			var trade Trade
			var filled bool
			if order.Side == contracts.SideSell {
				trade, filled = s.sell(holdings, order, date, bar.Open)
			} else {
				trade, filled = s.buy(holdings, order, date, bar.Open)
			}
			if filled {
				trades = append(trades, trade)
			}
		}
	}
	return trades
}

// sell fills at open minus slippage, capped at the held quantity.
func (s *Simulator) sell(holdings *contracts.HoldingsSnapshot, order contracts.Order, date time.Time, open float64) (Trade, bool) {
	qty := order.Qty
	if held := holdings.Qty(order.Symbol); qty > held {
		qty = held
	}
	if qty < qtyEpsilon {
		return Trade{}, false
	}

	fillPrice := open * (1 - s.slippage)
	proceeds := qty * fillPrice
	holdings.Cash += proceeds - s.commission
	setQty(holdings, order.Symbol, holdings.Qty(order.Symbol)-qty, 0)

	return Trade{
		Date:       date,
		Symbol:     order.Symbol,
		Side:       contracts.SideSell,
		Qty:        qty,
		FillPrice:  fillPrice,
		Commission: s.commission,
		Notional:   proceeds,
	}, true
}

// buy fills at open plus slippage, shrinking to the affordable size.
func (s *Simulator) buy(holdings *contracts.HoldingsSnapshot, order contracts.Order, date time.Time, open float64) (Trade, bool) {
	fillPrice := open * (1 + s.slippage)
	qty := order.Qty
	if affordable := (holdings.Cash - s.commission) / fillPrice; qty > affordable {
		qty = math.Trunc(affordable*1e6) / 1e6
	}
	if qty < qtyEpsilon {
		return Trade{}, false
	}

	cost := qty * fillPrice
	holdings.Cash -= cost + s.commission
	setQty(holdings, order.Symbol, holdings.Qty(order.Symbol)+qty, fillPrice)

	return Trade{
		Date:       date,
		Symbol:     order.Symbol,
		Side:       contracts.SideBuy,
		Qty:        qty,
		FillPrice:  fillPrice,
		Commission: s.commission,
		Notional:   cost,
	}, true
}

// setQty updates one position in place, keeping the positions slice
// sorted and dropping emptied entries. Buys blend the cost basis.
func setQty(holdings *contracts.HoldingsSnapshot, symbol string, qty, fillPrice float64) {
	i := sort.Search(len(holdings.Positions), func(i int) bool {
		return holdings.Positions[i].Symbol >= symbol
	})
	exists := i < len(holdings.Positions) && holdings.Positions[i].Symbol == symbol

	if qty < qtyEpsilon {
		if exists {
			holdings.Positions = append(holdings.Positions[:i], holdings.Positions[i+1:]...)
		}
		return
	}

	if !exists {
		holdings.Positions = append(holdings.Positions, contracts.Position{})
		copy(holdings.Positions[i+1:], holdings.Positions[i:])
		holdings.Positions[i] = contracts.Position{Symbol: symbol, Qty: qty, CostBasis: fillPrice}
		return
	}

	pos := &holdings.Positions[i]
	if qty > pos.Qty && fillPrice > 0 {
		added := qty - pos.Qty
		pos.CostBasis = (pos.CostBasis*pos.Qty + fillPrice*added) / qty
	}
	pos.Qty = qty
}
