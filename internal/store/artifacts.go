package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/wonhyo-e/argos/internal/contracts"
)

// =============================================================================
// Signal Artifact
// =============================================================================

type signalJSON struct {
	Date      string             `json:"date"`
	Symbol    string             `json:"symbol"`
	Signal    string             `json:"signal"`
	RankScore *float64           `json:"rank_score,omitempty"`
	Features  map[string]float64 `json:"features,omitempty"`
}

type signalSetJSON struct {
	Date    string       `json:"date"`
	Signals []signalJSON `json:"signals"`
}

// SaveSignals writes a signal artifact. Unrankable symbols (no score)
// omit the rank_score field rather than emitting a non-finite number.
func SaveSignals(path string, set *contracts.SignalSet) error {
	out := signalSetJSON{
		Date:    set.Date.Format(contracts.DateLayout),
		Signals: make([]signalJSON, 0, len(set.Signals)),
	}
	for _, sig := range set.Signals {
		row := signalJSON{
			Date:     sig.Date.Format(contracts.DateLayout),
			Symbol:   sig.Symbol,
			Signal:   string(sig.Kind),
			Features: sig.Features,
		}
		if score := sig.RankScore; !math.IsNaN(score) && !math.IsInf(score, 0) {
			row.RankScore = &score
		}
		out.Signals = append(out.Signals, row)
	}
	return writeJSON(path, out)
}

// =============================================================================
// Risk Artifact
// =============================================================================

type riskResultJSON struct {
	Date        string                `json:"date"`
	MarketState string                `json:"market_state"`
	Alerts      []contracts.RiskAlert `json:"alerts"`
}

// SaveRiskResult writes a risk evaluation artifact.
func SaveRiskResult(path string, result *contracts.RiskResult) error {
	alerts := result.Alerts
	if alerts == nil {
		alerts = []contracts.RiskAlert{}
	}
	return writeJSON(path, riskResultJSON{
		Date:        result.Date.Format(contracts.DateLayout),
		MarketState: string(result.MarketState),
		Alerts:      alerts,
	})
}

// =============================================================================
// Rebalance Artifact
// =============================================================================

type proposalJSON struct {
	Date         string             `json:"date"`
	Status       string             `json:"status"`
	UniverseSize int                `json:"universe_size"`
	Selected     int                `json:"selected"`
	Targets      []contracts.Target `json:"targets"`
	Orders       []contracts.Order  `json:"orders"`
	Turnover     float64            `json:"turnover"`
	Rationale    string             `json:"rationale"`
}

// SaveProposal writes a rebalance proposal artifact.
func SaveProposal(path string, proposal *contracts.RebalanceProposal) error {
	out := proposalJSON{
		Date:         proposal.Date.Format(contracts.DateLayout),
		Status:       string(proposal.Status),
		UniverseSize: proposal.UniverseSize,
		Selected:     proposal.Selected,
		Targets:      proposal.Targets,
		Orders:       proposal.Orders,
		Turnover:     proposal.Turnover,
		Rationale:    proposal.Rationale,
	}
	if out.Targets == nil {
		out.Targets = []contracts.Target{}
	}
	if out.Orders == nil {
		out.Orders = []contracts.Order{}
	}
	return writeJSON(path, out)
}

// =============================================================================
// Generic JSON
// =============================================================================

// WriteJSON serializes any artifact with indentation, creating parent
// directories as needed. Callers are responsible for keeping non-finite
// floats out of v.
func WriteJSON(path string, v interface{}) error {
	return writeJSON(path, v)
}

// ReadJSON loads a JSON artifact into target.
func ReadJSON(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifact dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}
