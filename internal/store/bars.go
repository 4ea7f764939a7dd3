// Package store moves pipeline data across process boundaries: daily
// bars as CSV, holdings and decision artifacts as JSON. Dates travel as
// YYYY-MM-DD strings; undefined indicator values travel as empty cells
// so every artifact stays valid for downstream tooling.
// ⭐ SSOT: 파일 직렬화 포맷은 여기서만
package store

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/wonhyo-e/argos/internal/contracts"
)

// barRow is the raw bar CSV schema: one row per symbol per trading day.
type barRow struct {
	Date     string  `csv:"date"`
	Symbol   string  `csv:"symbol"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Close    float64 `csv:"close"`
	AdjClose float64 `csv:"adj_close"`
	Volume   float64 `csv:"volume"`
}

// LoadBars reads a raw bar CSV and groups rows by symbol, sorted by
// date within each symbol. Rows are not validated beyond date parsing;
// calendar alignment happens in the preprocessor.
func LoadBars(path string) (map[string][]contracts.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar file: %w", err)
	}
	defer f.Close()

	var rows []barRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bar file %s: %w", path, err)
	}

	bySymbol := make(map[string][]contracts.Bar)
	for i, row := range rows {
		date, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("bar file %s row %d: %w", path, i+2, err)
		}
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], contracts.Bar{
			Date:        date,
			Symbol:      row.Symbol,
			Open:        row.Open,
			High:        row.High,
			Low:         row.Low,
			Close:       row.Close,
			AdjClose:    row.AdjClose,
			Volume:      row.Volume,
			SMA100:      math.NaN(),
			SMA200:      math.NaN(),
			Ret1D:       math.NaN(),
			Ret20D:      math.NaN(),
			RollingPeak: math.NaN(),
		})
	}
	for symbol := range bySymbol {
		bars := bySymbol[symbol]
		sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	}
	return bySymbol, nil
}

// curatedRow is the curated bar CSV schema. Indicator columns are
// strings so warm-up rows serialize as empty cells instead of "NaN".
type curatedRow struct {
	Date        string  `csv:"date"`
	Symbol      string  `csv:"symbol"`
	Open        float64 `csv:"open"`
	High        float64 `csv:"high"`
	Low         float64 `csv:"low"`
	Close       float64 `csv:"close"`
	AdjClose    float64 `csv:"adj_close"`
	Volume      float64 `csv:"volume"`
	SMA100      string  `csv:"sma_100"`
	SMA200      string  `csv:"sma_200"`
	Ret1D       string  `csv:"ret_1d"`
	Ret20D      string  `csv:"ret_20d"`
	RollingPeak string  `csv:"rolling_peak"`
}

// SaveCurated writes every symbol of the curated set as one CSV,
// symbols in sorted order, dates ascending within each symbol.
func SaveCurated(path string, curated *contracts.CuratedSet) error {
	var rows []curatedRow
	for _, symbol := range curated.Symbols {
		bars, ok := curated.Bars(symbol)
		if !ok {
			continue
		}
		for _, bar := range bars {
			rows = append(rows, curatedRow{
				Date:        bar.Date.Format(contracts.DateLayout),
				Symbol:      bar.Symbol,
				Open:        bar.Open,
				High:        bar.High,
				Low:         bar.Low,
				Close:       bar.Close,
				AdjClose:    bar.AdjClose,
				Volume:      bar.Volume,
				SMA100:      formatCell(bar.SMA100),
				SMA200:      formatCell(bar.SMA200),
				Ret1D:       formatCell(bar.Ret1D),
				Ret20D:      formatCell(bar.Ret20D),
				RollingPeak: formatCell(bar.RollingPeak),
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create curated file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write curated file %s: %w", path, err)
	}
	return nil
}

// LoadCurated reads a curated bar CSV back into symbol-grouped bars.
// Empty indicator cells become undefined values.
func LoadCurated(path string) (map[string][]contracts.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open curated file: %w", err)
	}
	defer f.Close()

	var rows []curatedRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse curated file %s: %w", path, err)
	}

	bySymbol := make(map[string][]contracts.Bar)
	for i, row := range rows {
		date, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("curated file %s row %d: %w", path, i+2, err)
		}
		bar := contracts.Bar{
			Date:     date,
			Symbol:   row.Symbol,
			Open:     row.Open,
			High:     row.High,
			Low:      row.Low,
			Close:    row.Close,
			AdjClose: row.AdjClose,
			Volume:   row.Volume,
		}
		if bar.SMA100, err = parseCell(row.SMA100); err != nil {
			return nil, fmt.Errorf("curated file %s row %d sma_100: %w", path, i+2, err)
		}
		if bar.SMA200, err = parseCell(row.SMA200); err != nil {
			return nil, fmt.Errorf("curated file %s row %d sma_200: %w", path, i+2, err)
		}
		if bar.Ret1D, err = parseCell(row.Ret1D); err != nil {
			return nil, fmt.Errorf("curated file %s row %d ret_1d: %w", path, i+2, err)
		}
		if bar.Ret20D, err = parseCell(row.Ret20D); err != nil {
			return nil, fmt.Errorf("curated file %s row %d ret_20d: %w", path, i+2, err)
		}
		if bar.RollingPeak, err = parseCell(row.RollingPeak); err != nil {
			return nil, fmt.Errorf("curated file %s row %d rolling_peak: %w", path, i+2, err)
		}
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], bar)
	}
	return bySymbol, nil
}

func formatCell(v float64) string {
	if !contracts.Defined(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseCell(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
