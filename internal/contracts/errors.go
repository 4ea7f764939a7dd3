package contracts

import (
	"fmt"
	"time"
)

// Typed errors for the pipeline. All fail fast: no retries, no silent
// defaults. Each carries enough context (date, symbol, stage) for the
// caller to render a clear message.

// DataGapError reports missing bars beyond the forward-fill tolerance.
type DataGapError struct {
	Symbol string
	Date   time.Time
	Gap    int // consecutive missing sessions
	Limit  int // configured forward_fill_limit
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s at %s: %d consecutive missing sessions exceeds limit %d",
		e.Symbol, e.Date.Format(DateLayout), e.Gap, e.Limit)
}

// ConfigValidationError reports a malformed rule expression or an
// out-of-range parameter, surfaced at configuration load time.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// CalendarMismatchError reports a symbol series that disagrees with the
// benchmark trading calendar.
type CalendarMismatchError struct {
	Symbol string
	Date   time.Time
	Reason string
}

func (e *CalendarMismatchError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("calendar mismatch for %s: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("calendar mismatch for %s at %s: %s",
		e.Symbol, e.Date.Format(DateLayout), e.Reason)
}

// InsufficientHistoryError reports a lookback window not fully available
// for the requested as-of date.
type InsufficientHistoryError struct {
	Symbol string
	AsOf   time.Time
	Need   int // required sessions
	Have   int // available sessions
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s as of %s: need %d sessions, have %d",
		e.Symbol, e.AsOf.Format(DateLayout), e.Need, e.Have)
}
