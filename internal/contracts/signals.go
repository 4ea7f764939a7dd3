package contracts

import (
	"math"
	"sort"
	"time"
)

// SignalKind classifies the action a signal recommends.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalHold SignalKind = "HOLD"
	SignalExit SignalKind = "EXIT"
)

// Signal is one symbol's evaluation at a date. Immutable once produced.
type Signal struct {
	Date      time.Time          `json:"date"`
	Symbol    string             `json:"symbol"`
	Kind      SignalKind         `json:"signal"`
	RankScore float64            `json:"rank_score"`
	Features  map[string]float64 `json:"features"`
}

// SignalSet represents all symbol signals for one evaluation date.
// ⭐ SSOT: Signal Engine → Rebalancer 시그널 데이터 전달
type SignalSet struct {
	Date    time.Time `json:"date"`
	Signals []Signal  `json:"signals"` // sorted by symbol ascending
}

// Get returns the signal for a symbol.
func (s *SignalSet) Get(symbol string) (Signal, bool) {
	i := sort.Search(len(s.Signals), func(i int) bool {
		return s.Signals[i].Symbol >= symbol
	})
	if i < len(s.Signals) && s.Signals[i].Symbol == symbol {
		return s.Signals[i], true
	}
	return Signal{}, false
}

// Count returns the number of evaluated symbols.
func (s *SignalSet) Count() int {
	return len(s.Signals)
}

// Ranked returns signals ordered by rank_score descending, symbol ascending
// on ties. NaN scores sort last.
func (s *SignalSet) Ranked() []Signal {
	ranked := make([]Signal, len(s.Signals))
	copy(ranked, s.Signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := rankKey(ranked[i].RankScore), rankKey(ranked[j].RankScore)
		if a != b {
			return a > b
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked
}

func rankKey(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}
