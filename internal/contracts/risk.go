package contracts

import "time"

// MarketState is the global market-filter outcome for a date.
type MarketState string

const (
	RiskOn  MarketState = "RISK_ON"
	RiskOff MarketState = "RISK_OFF"
)

// AlertType classifies a per-holding risk alert.
type AlertType string

const (
	AlertCrash    AlertType = "CRASH"
	AlertDrawdown AlertType = "DRAWDOWN"
)

// RiskAlert is one triggered alert for one holding.
type RiskAlert struct {
	Symbol    string    `json:"symbol"`
	Type      AlertType `json:"type"`
	Value     float64   `json:"value"`     // observed magnitude (e.g. -0.085)
	Threshold float64   `json:"threshold"` // configured trigger level
	Reason    string    `json:"reason"`
}

// RiskResult represents the risk evaluation for one date.
// ⭐ SSOT: Risk Engine → Rebalancer 리스크 상태 전달
type RiskResult struct {
	Date        time.Time   `json:"date"`
	MarketState MarketState `json:"market_state"`
	Alerts      []RiskAlert `json:"alerts"` // sorted by (symbol, type)
}

// IsRiskOff reports whether new admissions are restricted.
func (r *RiskResult) IsRiskOff() bool {
	return r.MarketState == RiskOff
}

// HasAlert reports whether a symbol carries an alert of the given type.
func (r *RiskResult) HasAlert(symbol string, alertType AlertType) bool {
	for _, alert := range r.Alerts {
		if alert.Symbol == symbol && alert.Type == alertType {
			return true
		}
	}
	return false
}

// AlertsFor returns all alerts for one symbol.
func (r *RiskResult) AlertsFor(symbol string) []RiskAlert {
	var out []RiskAlert
	for _, alert := range r.Alerts {
		if alert.Symbol == symbol {
			out = append(out, alert)
		}
	}
	return out
}
