package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token represents token metadata from the market data provider.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	Symbol     string           // PRIMARY KEY, upper-case ticker
	ProviderID string           // provider-side token identifier
	Name       string           // token name
	Price      *decimal.Decimal // current price (nullable)
	MarketCap  *decimal.Decimal // market capitalization (nullable)
	Volume24H  *decimal.Decimal // 24h traded volume (nullable)
	Rank       *int64           // provider market rank (nullable)
	FetchedAt  time.Time        // when metadata was fetched, refreshed on every run
	CreatedAt  time.Time        // record creation timestamp, set once by the store
}
