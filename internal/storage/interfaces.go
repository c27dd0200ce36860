// Package storage defines the upsert store contracts for canonical entities.
//
// Upsert semantics: insert if the natural key is absent, otherwise update
// mutable fields only; identity fields and created_at are never touched on
// update. Records in a batch are applied independently: one record's
// constraint violation is reported in UpsertResult.Errors and the rest
// proceed. The error return is reserved for connection-level failures where
// nothing further could be applied.
package storage

import (
	"context"
	"time"

	"crypto-data-pipeline/internal/domain"
)

// RecordError reports a single record that the store rejected.
type RecordError struct {
	Key   string // natural key of the rejected record
	Cause error
}

// UpsertResult summarizes one upsert batch.
type UpsertResult struct {
	Written int
	Errors  []RecordError
}

// TokenStore provides access to tokens storage. Natural key: symbol.
type TokenStore interface {
	// UpsertTokens inserts or refreshes tokens by symbol.
	UpsertTokens(ctx context.Context, tokens []*domain.Token) (UpsertResult, error)

	// GetBySymbol retrieves a token. Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error)
}

// PostStore provides access to social_posts storage. Natural key: link.
type PostStore interface {
	// UpsertPosts inserts new posts and refreshes mutable fields
	// (sentiment, interaction counts) of existing ones.
	UpsertPosts(ctx context.Context, posts []*domain.SocialPost) (UpsertResult, error)

	// GetByLink retrieves a post. Returns ErrNotFound if not exists.
	GetByLink(ctx context.Context, link string) (*domain.SocialPost, error)

	// CountForToken returns the number of stored posts for a symbol.
	CountForToken(ctx context.Context, symbol string) (int, error)
}

// OHLCVStore provides access to ohlcv_bars storage.
// Natural key: (token_symbol, granularity, timestamp).
type OHLCVStore interface {
	// UpsertBars inserts or refreshes bars by natural key.
	UpsertBars(ctx context.Context, bars []*domain.OHLCVBar) (UpsertResult, error)

	// GetBars retrieves bars for a symbol and granularity within
	// [from, to] (inclusive), ordered by timestamp ASC.
	GetBars(ctx context.Context, symbol string, g domain.Granularity, from, to time.Time) ([]*domain.OHLCVBar, error)
}
