package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the time resolution of an OHLCV bar.
type Granularity string

const (
	GranularityHourly Granularity = "hourly"
	GranularityDaily  Granularity = "daily"
)

// String returns the string representation of Granularity.
func (g Granularity) String() string {
	return string(g)
}

// IsValid checks if the granularity is a valid value.
func (g Granularity) IsValid() bool {
	return g == GranularityHourly || g == GranularityDaily
}

// OHLCVBar represents one candle of price/volume history.
// Corresponds to ohlcv_bars table in PostgreSQL.
//
// Natural key: (token_symbol, granularity, timestamp).
type OHLCVBar struct {
	TokenSymbol string           // upper-case ticker
	Granularity Granularity      // hourly | daily
	Timestamp   time.Time        // bar open time, UTC
	Open        *decimal.Decimal // nullable: absent in payload stays absent
	High        *decimal.Decimal
	Low         *decimal.Decimal
	Close       *decimal.Decimal
	Volume      *decimal.Decimal
	Suspect     bool      // true when the high/low ordering invariant failed
	FetchedAt   time.Time // when the bar was fetched, refreshed on re-fetch
	CreatedAt   time.Time // record creation timestamp, set once by the store
}

// ViolatesOrdering reports whether the bar breaks the
// low <= min(open, close) <= max(open, close) <= high invariant.
// Bars with missing price fields cannot be checked and report false.
func (b *OHLCVBar) ViolatesOrdering() bool {
	if b.Open == nil || b.High == nil || b.Low == nil || b.Close == nil {
		return false
	}
	if b.Low.GreaterThan(*b.High) {
		return true
	}
	if b.Open.LessThan(*b.Low) || b.Open.GreaterThan(*b.High) {
		return true
	}
	if b.Close.LessThan(*b.Low) || b.Close.GreaterThan(*b.High) {
		return true
	}
	return false
}
