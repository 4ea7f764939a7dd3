// Package preprocess converts raw per-symbol price bars into a
// calendar-aligned curated series with derived indicators. Curation is a
// pure function: same inputs, same output.
package preprocess

import (
	"sort"
	"time"

	"github.com/wonhyo-e/argos/internal/contracts"
)

// Settings controls calendar alignment and indicator windows.
type Settings struct {
	Benchmark         string
	LookbackDays      int
	ForwardFillLimit  int // max consecutive missing sessions to fill
	RollingPeakWindow int
	Adjust            string // "none" | "adj_close"
}

// Indicator window lengths. Values at date t read bars with date <= t
// only, and stay undefined until the full window is available.
const (
	smaShortWindow = 100
	smaLongWindow  = 200
	retLongWindow  = 20
)

// Curate aligns every symbol to the benchmark's trading calendar, fills
// tolerable gaps, and computes indicators. Data after asOf is never read.
func Curate(raw map[string][]contracts.Bar, settings Settings, asOf time.Time) (*contracts.CuratedSet, error) {
	benchRaw, ok := raw[settings.Benchmark]
	if !ok || len(benchRaw) == 0 {
		return nil, &contracts.CalendarMismatchError{
			Symbol: settings.Benchmark,
			Reason: "benchmark series missing from raw bars",
		}
	}

	calendar, err := buildCalendar(benchRaw, settings, asOf)
	if err != nil {
		return nil, err
	}
	if len(calendar) < settings.LookbackDays {
		return nil, &contracts.InsufficientHistoryError{
			Symbol: settings.Benchmark,
			AsOf:   asOf,
			Need:   settings.LookbackDays,
			Have:   len(calendar),
		}
	}

	symbols := make([]string, 0, len(raw))
	for symbol := range raw {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	curated := make(map[string][]contracts.Bar, len(raw))
	for _, symbol := range symbols {
		aligned, err := align(symbol, raw[symbol], calendar, settings)
		if err != nil {
			return nil, err
		}
		computeIndicators(aligned, settings.RollingPeakWindow)
		curated[symbol] = aligned
	}

	return contracts.NewCuratedSet(settings.Benchmark, calendar, curated)
}

// buildCalendar extracts the benchmark's trading dates up to asOf. A
// benchmark gap wider than the fill limit (measured in skipped weekdays)
// means the calendar itself is unreliable.
func buildCalendar(benchRaw []contracts.Bar, settings Settings, asOf time.Time) ([]time.Time, error) {
	var calendar []time.Time
	for _, bar := range benchRaw {
		if bar.Date.After(asOf) {
			continue
		}
		calendar = append(calendar, bar.Date)
	}
	if len(calendar) == 0 {
		return nil, &contracts.InsufficientHistoryError{
			Symbol: settings.Benchmark,
			AsOf:   asOf,
			Need:   settings.LookbackDays,
			Have:   0,
		}
	}
	sort.Slice(calendar, func(i, j int) bool { return calendar[i].Before(calendar[j]) })

	for i := 1; i < len(calendar); i++ {
		if !calendar[i].After(calendar[i-1]) {
			return nil, &contracts.CalendarMismatchError{
				Symbol: settings.Benchmark,
				Date:   calendar[i],
				Reason: "duplicate benchmark date",
			}
		}
		if skipped := weekdaysBetween(calendar[i-1], calendar[i]); skipped > settings.ForwardFillLimit {
			return nil, &contracts.CalendarMismatchError{
				Symbol: settings.Benchmark,
				Date:   calendar[i],
				Reason: "benchmark gap exceeds forward-fill tolerance",
			}
		}
	}
	return calendar, nil
}

// weekdaysBetween counts weekdays strictly between two dates.
func weekdaysBetween(from, to time.Time) int {
	count := 0
	for d := from.AddDate(0, 0, 1); d.Before(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// align produces exactly one bar per calendar date for a symbol,
// forward-filling gaps within tolerance.
func align(symbol string, bars []contracts.Bar, calendar []time.Time, settings Settings) ([]contracts.Bar, error) {
	byDate := make(map[string]contracts.Bar, len(bars))
	for _, bar := range bars {
		byDate[bar.Date.Format(contracts.DateLayout)] = bar
	}

	aligned := make([]contracts.Bar, 0, len(calendar))
	var last *contracts.Bar
	gap := 0
	for _, date := range calendar {
		bar, ok := byDate[date.Format(contracts.DateLayout)]
		switch {
		case ok:
			gap = 0
			bar.Symbol = symbol
			bar.Date = date
		case last == nil:
			// No bar yet to fill from; the input must span the calendar.
			return nil, &contracts.DataGapError{
				Symbol: symbol,
				Date:   date,
				Gap:    gap + 1,
				Limit:  settings.ForwardFillLimit,
			}
		default:
			gap++
			if gap > settings.ForwardFillLimit {
				return nil, &contracts.DataGapError{
					Symbol: symbol,
					Date:   date,
					Gap:    gap,
					Limit:  settings.ForwardFillLimit,
				}
			}
			bar = *last
			bar.Date = date
			bar.Volume = 0 // filled session traded nothing
		}

		if settings.Adjust == "adj_close" && bar.AdjClose > 0 {
			bar.Close = bar.AdjClose
		}

		aligned = append(aligned, bar)
		last = &aligned[len(aligned)-1]
	}
	return aligned, nil
}

// computeIndicators fills the derived columns in place. Every window is
// strictly backward-looking.
func computeIndicators(bars []contracts.Bar, peakWindow int) {
	for i := range bars {
		bars[i].SMA100 = trailingMean(bars, i, smaShortWindow)
		bars[i].SMA200 = trailingMean(bars, i, smaLongWindow)

		if i >= 1 && bars[i-1].Close != 0 {
			bars[i].Ret1D = bars[i].Close/bars[i-1].Close - 1
		} else {
			bars[i].Ret1D = contracts.Undefined()
		}

		if i >= retLongWindow && bars[i-retLongWindow].Close != 0 {
			bars[i].Ret20D = bars[i].Close/bars[i-retLongWindow].Close - 1
		} else {
			bars[i].Ret20D = contracts.Undefined()
		}

		bars[i].RollingPeak = trailingMax(bars, i, peakWindow)
	}
}

func trailingMean(bars []contracts.Bar, i, window int) float64 {
	if i+1 < window {
		return contracts.Undefined()
	}
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		sum += bars[j].Close
	}
	return sum / float64(window)
}

func trailingMax(bars []contracts.Bar, i, window int) float64 {
	if i+1 < window {
		return contracts.Undefined()
	}
	max := bars[i-window+1].Close
	for j := i - window + 2; j <= i; j++ {
		if bars[j].Close > max {
			max = bars[j].Close
		}
	}
	return max
}
