package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical date format for all artifacts.
const DateLayout = "2006-01-02"

// Undefined marks an indicator value whose window is not fully available.
// Indicators are never silently zero.
func Undefined() float64 {
	return math.NaN()
}

// Defined reports whether an indicator value carries a real number.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Bar represents one curated price record with derived indicators.
// ⭐ SSOT: Preprocessor → Signal/Risk 엔진 데이터 전달
type Bar struct {
	Date     time.Time `json:"date"`
	Symbol   string    `json:"symbol"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	AdjClose float64   `json:"adj_close"`

	// Derived indicators. Undefined (NaN) until the window is complete.
	SMA100      float64 `json:"sma_100"`
	SMA200      float64 `json:"sma_200"`
	Ret1D       float64 `json:"ret_1d"`
	Ret20D      float64 `json:"ret_20d"`
	RollingPeak float64 `json:"rolling_peak"`
}

// Feature returns a named indicator column from the bar.
// Unknown names return (NaN, false) so rule evaluation can fail closed.
func (b *Bar) Feature(name string) (float64, bool) {
	switch name {
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "close":
		return b.Close, true
	case "volume":
		return b.Volume, true
	case "adj_close":
		return b.AdjClose, true
	case "sma_100":
		return b.SMA100, true
	case "sma_200":
		return b.SMA200, true
	case "ret_1d":
		return b.Ret1D, true
	case "ret_20d":
		return b.Ret20D, true
	case "rolling_peak":
		return b.RollingPeak, true
	}
	return math.NaN(), false
}

// CuratedSet is a calendar-aligned collection of curated bars.
// Every included symbol has exactly one bar per calendar date.
type CuratedSet struct {
	Benchmark string
	Calendar  []time.Time // ascending trading dates
	Symbols   []string    // sorted ascending

	bars map[string][]Bar // aligned 1:1 with Calendar
}

// NewCuratedSet builds a curated set after verifying calendar alignment.
func NewCuratedSet(benchmark string, calendar []time.Time, bars map[string][]Bar) (*CuratedSet, error) {
	if len(calendar) == 0 {
		return nil, fmt.Errorf("curated set requires a non-empty calendar")
	}
	for i := 1; i < len(calendar); i++ {
		if !calendar[i].After(calendar[i-1]) {
			return nil, fmt.Errorf("calendar dates must be strictly increasing at index %d", i)
		}
	}
	if _, ok := bars[benchmark]; !ok {
		return nil, fmt.Errorf("benchmark %s missing from curated bars", benchmark)
	}

	symbols := make([]string, 0, len(bars))
	for symbol, series := range bars {
		if len(series) != len(calendar) {
			return nil, &CalendarMismatchError{
				Symbol: symbol,
				Reason: fmt.Sprintf("series has %d bars, calendar has %d dates", len(series), len(calendar)),
			}
		}
		for i := range series {
			if !series[i].Date.Equal(calendar[i]) {
				return nil, &CalendarMismatchError{
					Symbol: symbol,
					Date:   calendar[i],
					Reason: fmt.Sprintf("bar date %s does not match calendar", series[i].Date.Format(DateLayout)),
				}
			}
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return &CuratedSet{
		Benchmark: benchmark,
		Calendar:  calendar,
		Symbols:   symbols,
		bars:      bars,
	}, nil
}

// Bars returns the full aligned series for a symbol.
func (c *CuratedSet) Bars(symbol string) ([]Bar, bool) {
	series, ok := c.bars[symbol]
	return series, ok
}

// Row returns the bar for (symbol, date); false when either is absent.
func (c *CuratedSet) Row(symbol string, date time.Time) (Bar, bool) {
	idx, ok := c.CalendarIndex(date)
	if !ok {
		return Bar{}, false
	}
	series, ok := c.bars[symbol]
	if !ok {
		return Bar{}, false
	}
	return series[idx], true
}

// CalendarIndex returns the position of an exact calendar date.
func (c *CuratedSet) CalendarIndex(date time.Time) (int, bool) {
	i := sort.Search(len(c.Calendar), func(i int) bool {
		return !c.Calendar[i].Before(date)
	})
	if i < len(c.Calendar) && c.Calendar[i].Equal(date) {
		return i, true
	}
	return 0, false
}

// LastIndexOnOrBefore returns the index of the latest calendar date <= date.
func (c *CuratedSet) LastIndexOnOrBefore(date time.Time) (int, bool) {
	i := sort.Search(len(c.Calendar), func(i int) bool {
		return c.Calendar[i].After(date)
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// NextTradingDay returns the first calendar date strictly after date.
func (c *CuratedSet) NextTradingDay(date time.Time) (time.Time, bool) {
	i := sort.Search(len(c.Calendar), func(i int) bool {
		return c.Calendar[i].After(date)
	})
	if i >= len(c.Calendar) {
		return time.Time{}, false
	}
	return c.Calendar[i], true
}

// UpTo returns a view clipped to calendar dates <= asOf.
// 포인트인타임 규율: 엔진은 항상 이걸 먼저 호출해서 미래 데이터를 차단함
func (c *CuratedSet) UpTo(asOf time.Time) (*CuratedSet, bool) {
	idx, ok := c.LastIndexOnOrBefore(asOf)
	if !ok {
		return nil, false
	}
	n := idx + 1
	clipped := make(map[string][]Bar, len(c.bars))
	for symbol, series := range c.bars {
		clipped[symbol] = series[:n]
	}
	return &CuratedSet{
		Benchmark: c.Benchmark,
		Calendar:  c.Calendar[:n],
		Symbols:   c.Symbols,
		bars:      clipped,
	}, true
}

// Count returns the number of symbols in the set.
func (c *CuratedSet) Count() int {
	return len(c.Symbols)
}
