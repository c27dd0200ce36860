// Package normalize converts provider-neutral payloads into canonical domain
// entities. All functions are pure: no I/O, no clocks (callers pass now).
//
// Numeric coercion keeps null and zero distinguishable: a field absent from
// the payload becomes a nil pointer, never decimal zero.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/provider"
)

// Sentinel causes for normalization rejections.
var (
	ErrMissingField = errors.New("required field missing")
	ErrBadTimestamp = errors.New("unparseable timestamp")
	ErrBadNumber    = errors.New("unparseable number")
)

// timestampLayouts are the accepted provider timestamp formats, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses any accepted provider timestamp representation into a
// UTC instant. Integer strings are treated as Unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrBadTimestamp)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// Decimal coerces a json.Number to a decimal pointer.
// Empty input maps to nil, not zero.
func Decimal(n fmt.Stringer) (*decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" || s == "null" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return &d, nil
}

// Int64 coerces a json.Number to an int64 pointer. Fractional provider values
// are truncated; empty input maps to nil.
func Int64(n fmt.Stringer) (*int64, error) {
	d, err := Decimal(n)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, nil
	}
	v := d.IntPart()
	return &v, nil
}

// Token converts a metadata payload into a canonical Token.
// The symbol is canonicalized upper-case; a payload without a symbol is
// rejected.
func Token(p *provider.MetadataPayload, now time.Time) (*domain.Token, error) {
	if p == nil || strings.TrimSpace(p.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol", ErrMissingField)
	}

	price, err := Decimal(p.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	marketCap, err := Decimal(p.MarketCap)
	if err != nil {
		return nil, fmt.Errorf("market cap: %w", err)
	}
	volume, err := Decimal(p.Volume24H)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}
	rank, err := Int64(p.Rank)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	return &domain.Token{
		Symbol:     strings.ToUpper(strings.TrimSpace(p.Symbol)),
		ProviderID: p.ProviderID,
		Name:       p.Name,
		Price:      price,
		MarketCap:  marketCap,
		Volume24H:  volume,
		Rank:       rank,
		FetchedAt:  now.UTC(),
	}, nil
}

// Post converts a social post payload into a canonical SocialPost.
// The link is the natural key and is required. Missing counts map to zero:
// the provider reports them as absolute counters and omission means none seen.
func Post(p provider.SocialPostPayload, symbol string, now time.Time) (*domain.SocialPost, error) {
	if strings.TrimSpace(p.Link) == "" {
		return nil, fmt.Errorf("%w: link", ErrMissingField)
	}

	sentiment, err := Decimal(p.Sentiment)
	if err != nil {
		return nil, fmt.Errorf("sentiment: %w", err)
	}
	followers, err := Int64(p.CreatorFollowers)
	if err != nil {
		return nil, fmt.Errorf("creator followers: %w", err)
	}
	day, err := Int64(p.Interactions24H)
	if err != nil {
		return nil, fmt.Errorf("interactions 24h: %w", err)
	}
	total, err := Int64(p.InteractionsTotal)
	if err != nil {
		return nil, fmt.Errorf("interactions total: %w", err)
	}

	post := &domain.SocialPost{
		TokenSymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Title:       p.Title,
		Link:        strings.TrimSpace(p.Link),
		IngestedAt:  now.UTC(),
	}
	if sentiment != nil {
		post.Sentiment = *sentiment
	}
	if followers != nil {
		post.CreatorFollowers = *followers
	}
	if day != nil {
		post.Interactions24H = *day
	}
	if total != nil {
		post.InteractionsTotal = *total
	}
	return post, nil
}

// Bar converts an OHLCV payload into a canonical OHLCVBar.
// The timestamp is required; price fields stay nil when absent. After
// coercion the high/low ordering invariant is validated: a violating bar is
// returned tagged Suspect rather than rejected, so the store still persists
// it and the run outcome can count a data-quality warning.
func Bar(p provider.OHLCVPayload, symbol string, g domain.Granularity, now time.Time) (*domain.OHLCVBar, error) {
	ts, err := ParseTimestamp(p.Timestamp)
	if err != nil {
		return nil, err
	}

	open, err := Decimal(p.Open)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	high, err := Decimal(p.High)
	if err != nil {
		return nil, fmt.Errorf("high: %w", err)
	}
	low, err := Decimal(p.Low)
	if err != nil {
		return nil, fmt.Errorf("low: %w", err)
	}
	closePrice, err := Decimal(p.Close)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	volume, err := Decimal(p.Volume)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}

	bar := &domain.OHLCVBar{
		TokenSymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Granularity: g,
		Timestamp:   ts,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePrice,
		Volume:      volume,
		FetchedAt:   now.UTC(),
	}
	bar.Suspect = bar.ViolatesOrdering()
	return bar, nil
}

// Drop records a payload rejected during batch normalization.
type Drop struct {
	Index int
	Cause error
}

// Posts normalizes a batch of post payloads, returning accepted entities and
// per-record drops. Intra-batch duplicate links keep the last occurrence,
// matching upsert semantics.
func Posts(payloads []provider.SocialPostPayload, symbol string, now time.Time) ([]*domain.SocialPost, []Drop) {
	var posts []*domain.SocialPost
	var drops []Drop
	byLink := make(map[string]int)

	for i, p := range payloads {
		post, err := Post(p, symbol, now)
		if err != nil {
			drops = append(drops, Drop{Index: i, Cause: err})
			continue
		}
		if prev, seen := byLink[post.Link]; seen {
			posts[prev] = post
			continue
		}
		byLink[post.Link] = len(posts)
		posts = append(posts, post)
	}
	return posts, drops
}

// Bars normalizes a batch of OHLCV payloads. Intra-batch duplicate timestamps
// keep the last occurrence.
func Bars(payloads []provider.OHLCVPayload, symbol string, g domain.Granularity, now time.Time) ([]*domain.OHLCVBar, []Drop) {
	var bars []*domain.OHLCVBar
	var drops []Drop
	byTime := make(map[time.Time]int)

	for i, p := range payloads {
		bar, err := Bar(p, symbol, g, now)
		if err != nil {
			drops = append(drops, Drop{Index: i, Cause: err})
			continue
		}
		if prev, seen := byTime[bar.Timestamp]; seen {
			bars[prev] = bar
			continue
		}
		byTime[bar.Timestamp] = len(bars)
		bars = append(bars, bar)
	}
	return bars, drops
}
