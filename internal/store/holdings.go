package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
)

// holdingsFile is the on-disk holdings schema with string dates.
type holdingsFile struct {
	AsOfDate  string               `json:"as_of_date"`
	BaseCCY   string               `json:"base_ccy"`
	Cash      float64              `json:"cash"`
	Positions []contracts.Position `json:"positions"`
}

// LoadHoldings reads and validates a holdings snapshot.
func LoadHoldings(path string) (*contracts.HoldingsSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings file: %w", err)
	}

	var file holdingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse holdings file %s: %w", path, err)
	}

	asOf, err := parseDate(file.AsOfDate)
	if err != nil {
		return nil, fmt.Errorf("holdings file %s: %w", path, err)
	}

	snapshot := &contracts.HoldingsSnapshot{
		AsOfDate:  asOf,
		BaseCCY:   file.BaseCCY,
		Cash:      file.Cash,
		Positions: file.Positions,
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("holdings file %s: %w", path, err)
	}
	return snapshot, nil
}

// SaveHoldings writes a holdings snapshot with the wire date format.
func SaveHoldings(path string, snapshot *contracts.HoldingsSnapshot) error {
	file := holdingsFile{
		AsOfDate:  snapshot.AsOfDate.Format(contracts.DateLayout),
		BaseCCY:   snapshot.BaseCCY,
		Cash:      snapshot.Cash,
		Positions: snapshot.Positions,
	}
	return writeJSON(path, file)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, contracts.DateLayout)
	}
	return t, nil
}
