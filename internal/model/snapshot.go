package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
)

// HoldingEntry is the valuation of one symbol inside a snapshot.
// Value always equals Price × Shares.
type HoldingEntry struct {
	Price  decimal.Decimal `json:"price"`
	Shares decimal.Decimal `json:"shares"`
	Value  decimal.Decimal `json:"value"`
}

// NewHoldingEntry builds an entry whose value is derived from price and shares.
func NewHoldingEntry(price, shares decimal.Decimal) HoldingEntry {
	return HoldingEntry{
		Price:  price,
		Shares: shares,
		Value:  price.Mul(shares),
	}
}

// HoldingsData is the per-symbol breakdown of a snapshot, keyed by symbol.
type HoldingsData map[string]HoldingEntry

// Merge returns a new breakdown containing every entry of h with each symbol in patch
// replacing (never adding to) the existing entry for that symbol. h is not modified.
func (h HoldingsData) Merge(patch HoldingsData) HoldingsData {
	merged := make(HoldingsData, len(h)+len(patch))
	for symbol, entry := range h {
		merged[symbol] = entry
	}
	for symbol, entry := range patch {
		merged[symbol] = entry
	}
	return merged
}

// Without returns the entries of h whose symbol is absent from other. h is not modified.
func (h HoldingsData) Without(other HoldingsData) HoldingsData {
	rest := make(HoldingsData, len(h))
	for symbol, entry := range h {
		if _, ok := other[symbol]; !ok {
			rest[symbol] = entry
		}
	}
	return rest
}

// FillMissing returns a new breakdown with every entry of h plus the entries of patch for
// symbols h does not hold yet. Entries already in h are never replaced.
func (h HoldingsData) FillMissing(patch HoldingsData) HoldingsData {
	return h.Merge(patch.Without(h))
}

// Total sums the values of all entries. An empty breakdown totals zero.
func (h HoldingsData) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range h {
		total = total.Add(entry.Value)
	}
	return total
}

// Symbols returns the symbols of the breakdown in ascending order.
func (h HoldingsData) Symbols() []string {
	symbols := make([]string, 0, len(h))
	for symbol := range h {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Encode serializes the breakdown as a JSON document with decimal strings.
func (h HoldingsData) Encode() ([]byte, error) {
	if h == nil {
		h = HoldingsData{}
	}
	data, err := json.Marshal(map[string]HoldingEntry(h))
	if err != nil {
		return nil, fmt.Errorf("failed to encode holdings data: %w", err)
	}
	return data, nil
}

// DecodeHoldingsData parses a stored breakdown document.
// Every entry must carry numeric price, shares, and value fields; a missing, null, or
// non-numeric field yields ErrInconsistentAggregate instead of being read as zero.
func DecodeHoldingsData(data []byte) (HoldingsData, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return HoldingsData{}, nil
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInconsistentAggregate, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is null", apperrors.ErrInconsistentAggregate)
	}

	holdings := make(HoldingsData, len(raw))
	for symbol, fields := range raw {
		if fields == nil {
			return nil, fmt.Errorf("%w: entry for %s is null", apperrors.ErrInconsistentAggregate, symbol)
		}

		var entry HoldingEntry
		for name, dst := range map[string]*decimal.Decimal{
			"price":  &entry.Price,
			"shares": &entry.Shares,
			"value":  &entry.Value,
		} {
			if err := decodeNumber(fields[name], dst); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", apperrors.ErrInconsistentAggregate, symbol, name, err)
			}
		}
		holdings[symbol] = entry
	}

	return holdings, nil
}

func decodeNumber(raw json.RawMessage, dst *decimal.Decimal) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing")
	}
	if bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("null")
	}
	return json.Unmarshal(raw, dst)
}

// PortfolioSnapshot is the valuation of a portfolio on one UTC calendar day.
// TotalValue equals HoldingsData.Total() after every write.
type PortfolioSnapshot struct {
	ID           string          `json:"id"`
	PortfolioID  string          `json:"portfolioId"`
	Date         time.Time       `json:"date"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	HoldingsData HoldingsData    `json:"holdingsData"`
}

// DatedContribution is a breakdown patch to merge into the snapshot of one date.
type DatedContribution struct {
	Date  time.Time
	Patch HoldingsData
}

// ChartPoint is one point of a portfolio value series.
type ChartPoint struct {
	Date       string          `json:"date"` // YYYY-MM-DD
	TotalValue decimal.Decimal `json:"totalValue"`
}
