package contracts

import "time"

// Side is the direction of an order intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ProposalStatus explains the outcome of a rebalance evaluation.
type ProposalStatus string

const (
	StatusRebalance     ProposalStatus = "REBALANCE"      // targets and orders produced
	StatusNoRebalance   ProposalStatus = "NO_REBALANCE"   // off-cadence date
	StatusNoCandidates  ProposalStatus = "NO_CANDIDATES"  // empty eligible set
	StatusNoCapacity    ProposalStatus = "NO_CAPACITY"    // min_weight leaves no room
	StatusTurnoverLimit ProposalStatus = "TURNOVER_LIMIT" // cap exhausted by exits
)

// Target is one symbol's target weight in the proposal.
type Target struct {
	Symbol       string  `json:"symbol"`
	TargetWeight float64 `json:"target_weight"`
	Rationale    string  `json:"rationale"`
}

// Order is an order intent. Never executed by this system.
// ⭐ 계약: Rebalancer는 주문 의도만 산출, 실제 체결은 외부(또는 백테스트 시뮬레이터)
type Order struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Qty      float64 `json:"qty"`
	Notional float64 `json:"notional"`
}

// RebalanceProposal is the full output of one rebalance evaluation.
type RebalanceProposal struct {
	Date         time.Time      `json:"date"`
	Status       ProposalStatus `json:"status"`
	UniverseSize int            `json:"universe_size"`
	Selected     int            `json:"selected"`
	Targets      []Target       `json:"targets"` // sorted by symbol
	Orders       []Order        `json:"orders"`  // sorted by symbol
	Turnover     float64        `json:"turnover"`
	Rationale    string         `json:"rationale"`
}

// TotalTargetWeight returns the sum of all target weights.
func (p *RebalanceProposal) TotalTargetWeight() float64 {
	total := 0.0
	for _, t := range p.Targets {
		total += t.TargetWeight
	}
	return total
}

// TargetFor finds a target by symbol.
func (p *RebalanceProposal) TargetFor(symbol string) (Target, bool) {
	for _, t := range p.Targets {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Target{}, false
}

// OrderFor finds an order by symbol.
func (p *RebalanceProposal) OrderFor(symbol string) (Order, bool) {
	for _, o := range p.Orders {
		if o.Symbol == symbol {
			return o, true
		}
	}
	return Order{}, false
}
