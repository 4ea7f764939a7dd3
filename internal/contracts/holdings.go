package contracts

import (
	"fmt"
	"sort"
	"time"
)

// Position represents one held instrument.
type Position struct {
	Symbol    string  `json:"symbol"`
	Qty       float64 `json:"qty"`
	CostBasis float64 `json:"cost_basis"`
}

// HoldingsSnapshot is the account state at a point in time.
// ⭐ 계약: Backtest Driver(시뮬레이션) 또는 외부 호출자만 새 스냅샷을 생성함
type HoldingsSnapshot struct {
	AsOfDate  time.Time  `json:"as_of_date"`
	Positions []Position `json:"positions"` // sorted by symbol, unique
	Cash      float64    `json:"cash"`
	BaseCCY   string     `json:"base_ccy"`
}

// Validate checks the snapshot invariants: non-negative quantities and cash,
// unique symbols sorted ascending.
func (h *HoldingsSnapshot) Validate() error {
	if h.Cash < 0 {
		return fmt.Errorf("holdings cash must be >= 0, got %f", h.Cash)
	}
	seen := make(map[string]bool, len(h.Positions))
	for i, pos := range h.Positions {
		if pos.Symbol == "" {
			return fmt.Errorf("position %d has an empty symbol", i)
		}
		if pos.Qty < 0 {
			return fmt.Errorf("position %s has negative qty %f", pos.Symbol, pos.Qty)
		}
		if seen[pos.Symbol] {
			return fmt.Errorf("duplicate position for %s", pos.Symbol)
		}
		seen[pos.Symbol] = true
		if i > 0 && h.Positions[i-1].Symbol >= pos.Symbol {
			return fmt.Errorf("positions must be sorted by symbol, %s out of order", pos.Symbol)
		}
	}
	return nil
}

// Qty returns the held quantity for a symbol, zero when absent.
func (h *HoldingsSnapshot) Qty(symbol string) float64 {
	for _, pos := range h.Positions {
		if pos.Symbol == symbol {
			return pos.Qty
		}
	}
	return 0
}

// Held returns the symbols with non-zero quantity, sorted ascending.
func (h *HoldingsSnapshot) Held() []string {
	symbols := make([]string, 0, len(h.Positions))
	for _, pos := range h.Positions {
		if pos.Qty > 0 {
			symbols = append(symbols, pos.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// Value returns cash plus position notional at the supplied prices.
// Positions without a price contribute nothing.
func (h *HoldingsSnapshot) Value(prices map[string]float64) float64 {
	total := h.Cash
	for _, pos := range h.Positions {
		if price, ok := prices[pos.Symbol]; ok {
			total += pos.Qty * price
		}
	}
	return total
}
