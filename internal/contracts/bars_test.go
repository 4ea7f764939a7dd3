package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func makeSeries(symbol string, calendar []time.Time, closes []float64) []Bar {
	bars := make([]Bar, len(calendar))
	for i := range calendar {
		bars[i] = Bar{
			Date:   calendar[i],
			Symbol: symbol,
			Open:   closes[i],
			Close:  closes[i],
		}
	}
	return bars
}

func TestNewCuratedSet(t *testing.T) {
	calendar := []time.Time{d("2025-01-06"), d("2025-01-07"), d("2025-01-08")}
	bars := map[string][]Bar{
		"SPY":  makeSeries("SPY", calendar, []float64{400, 401, 402}),
		"AAPL": makeSeries("AAPL", calendar, []float64{150, 151, 152}),
	}

	set, err := NewCuratedSet("SPY", calendar, bars)
	if err != nil {
		t.Fatalf("NewCuratedSet() error = %v", err)
	}

	if set.Count() != 2 {
		t.Errorf("Count() = %d, want 2", set.Count())
	}

	// Symbols are sorted ascending
	if set.Symbols[0] != "AAPL" || set.Symbols[1] != "SPY" {
		t.Errorf("Symbols = %v, want [AAPL SPY]", set.Symbols)
	}

	bar, ok := set.Row("AAPL", d("2025-01-07"))
	if !ok {
		t.Fatal("Row() should find AAPL on 2025-01-07")
	}
	if bar.Close != 151 {
		t.Errorf("Row().Close = %v, want 151", bar.Close)
	}
}

func TestNewCuratedSetRejectsMisalignedSeries(t *testing.T) {
	calendar := []time.Time{d("2025-01-06"), d("2025-01-07")}
	bars := map[string][]Bar{
		"SPY":  makeSeries("SPY", calendar, []float64{400, 401}),
		"AAPL": makeSeries("AAPL", calendar[:1], []float64{150}),
	}

	_, err := NewCuratedSet("SPY", calendar, bars)
	if err == nil {
		t.Fatal("Expected error for misaligned series")
	}

	var mismatch *CalendarMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected CalendarMismatchError, got %T", err)
	}
	if mismatch.Symbol != "AAPL" {
		t.Errorf("mismatch.Symbol = %s, want AAPL", mismatch.Symbol)
	}
}

func TestNewCuratedSetRequiresBenchmark(t *testing.T) {
	calendar := []time.Time{d("2025-01-06")}
	bars := map[string][]Bar{
		"AAPL": makeSeries("AAPL", calendar, []float64{150}),
	}

	if _, err := NewCuratedSet("SPY", calendar, bars); err == nil {
		t.Fatal("Expected error when benchmark series is missing")
	}
}

func TestCuratedSetUpTo(t *testing.T) {
	calendar := []time.Time{d("2025-01-06"), d("2025-01-07"), d("2025-01-08")}
	bars := map[string][]Bar{
		"SPY": makeSeries("SPY", calendar, []float64{400, 401, 402}),
	}
	set, err := NewCuratedSet("SPY", calendar, bars)
	if err != nil {
		t.Fatal(err)
	}

	clipped, ok := set.UpTo(d("2025-01-07"))
	if !ok {
		t.Fatal("UpTo() should succeed")
	}
	if len(clipped.Calendar) != 2 {
		t.Errorf("clipped calendar has %d dates, want 2", len(clipped.Calendar))
	}
	if _, ok := clipped.Row("SPY", d("2025-01-08")); ok {
		t.Error("clipped set must not expose future bars")
	}

	// asOf between sessions clips to the prior session
	clipped, ok = set.UpTo(d("2025-01-09"))
	if !ok || len(clipped.Calendar) != 3 {
		t.Error("UpTo past the last session should keep the full calendar")
	}

	// asOf before the first session
	if _, ok := set.UpTo(d("2025-01-03")); ok {
		t.Error("UpTo before the calendar start should report no data")
	}
}

func TestCuratedSetNextTradingDay(t *testing.T) {
	calendar := []time.Time{d("2025-01-06"), d("2025-01-07"), d("2025-01-08")}
	bars := map[string][]Bar{
		"SPY": makeSeries("SPY", calendar, []float64{400, 401, 402}),
	}
	set, err := NewCuratedSet("SPY", calendar, bars)
	if err != nil {
		t.Fatal(err)
	}

	next, ok := set.NextTradingDay(d("2025-01-06"))
	if !ok || !next.Equal(d("2025-01-07")) {
		t.Errorf("NextTradingDay(01-06) = %v, want 2025-01-07", next)
	}

	if _, ok := set.NextTradingDay(d("2025-01-08")); ok {
		t.Error("NextTradingDay past the last session should report false")
	}
}

func TestBarFeature(t *testing.T) {
	bar := Bar{
		Close:  100,
		SMA100: 95,
		Ret1D:  Undefined(),
	}

	if v, ok := bar.Feature("close"); !ok || v != 100 {
		t.Errorf("Feature(close) = %v, %v", v, ok)
	}
	if v, ok := bar.Feature("sma_100"); !ok || v != 95 {
		t.Errorf("Feature(sma_100) = %v, %v", v, ok)
	}
	if v, ok := bar.Feature("ret_1d"); !ok || !math.IsNaN(v) {
		t.Errorf("Feature(ret_1d) = %v, %v, want NaN", v, ok)
	}
	if _, ok := bar.Feature("unknown_column"); ok {
		t.Error("Feature(unknown_column) should report false")
	}
}

func TestUndefinedMarker(t *testing.T) {
	if Defined(Undefined()) {
		t.Error("Undefined() must not be Defined")
	}
	if !Defined(0.0) {
		t.Error("zero is a defined value")
	}
}
