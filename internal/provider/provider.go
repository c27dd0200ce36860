// Package provider defines the contracts between the pipeline core and the
// upstream data APIs. Payload types are provider-neutral: raw strings and
// json.Number fields, decoded but not interpreted. Parsing into canonical
// entities is the normalizer's job; retry policy is the stage runner's job.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"crypto-data-pipeline/internal/domain"
)

// MetadataPayload is the provider-neutral token metadata shape.
type MetadataPayload struct {
	ProviderID string      // provider-side token identifier
	Symbol     string      // ticker as reported by the provider
	Name       string      // token name
	Price      json.Number // empty when absent
	MarketCap  json.Number
	Volume24H  json.Number
	Rank       json.Number
}

// SocialPostPayload is the provider-neutral social post shape.
type SocialPostPayload struct {
	Title             string
	Link              string
	Sentiment         json.Number
	CreatorFollowers  json.Number
	Interactions24H   json.Number
	InteractionsTotal json.Number
}

// OHLCVPayload is the provider-neutral candle shape.
// Timestamp stays a raw string: providers disagree on format and the
// normalizer owns parsing.
type OHLCVPayload struct {
	Timestamp string
	Open      json.Number
	High      json.Number
	Low       json.Number
	Close     json.Number
	Volume    json.Number
}

// MetadataProvider fetches token metadata for a symbol.
type MetadataProvider interface {
	// FetchMetadata returns metadata for a symbol, or a *provider.Error.
	FetchMetadata(ctx context.Context, symbol string) (*MetadataPayload, error)
}

// SocialProvider fetches social posts for a topic.
type SocialProvider interface {
	// FetchPosts returns posts created since the given time, newest last.
	FetchPosts(ctx context.Context, topic string, since time.Time) ([]SocialPostPayload, error)
}

// OHLCVProvider fetches candle history for a symbol.
type OHLCVProvider interface {
	// FetchOHLCV returns bars for [from, to] at the given granularity.
	FetchOHLCV(ctx context.Context, symbol string, granularity domain.Granularity, from, to time.Time) ([]OHLCVPayload, error)
}
