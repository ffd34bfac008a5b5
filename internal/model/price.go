package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single daily close for a symbol.
type PricePoint struct {
	Date  time.Time       `json:"date"` // UTC calendar day
	Price decimal.Decimal `json:"price"`
}

// Quote is a current quote from the live price provider.
// PreviousClose is zero when the provider did not report one.
type Quote struct {
	Symbol        string          `json:"symbol"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	PreviousClose decimal.Decimal `json:"previousClose"`
}

// ClipSeries returns the points of series within [start, end] (UTC days, inclusive), one per
// day, ascending. Points with a non-positive price are dropped; when a day repeats, the
// later point wins. Each date is truncated to its UTC day. The result is never nil.
func ClipSeries(series []PricePoint, start, end time.Time) []PricePoint {
	start, end = Day(start), Day(end)

	byDay := make(map[time.Time]decimal.Decimal, len(series))
	for _, p := range series {
		day := Day(p.Date)
		if day.Before(start) || day.After(end) || !p.Price.IsPositive() {
			continue
		}
		byDay[day] = p.Price
	}

	clipped := make([]PricePoint, 0, len(byDay))
	for day, price := range byDay {
		clipped = append(clipped, PricePoint{Date: day, Price: price})
	}
	sort.Slice(clipped, func(i, j int) bool {
		return clipped[i].Date.Before(clipped[j].Date)
	})
	return clipped
}
