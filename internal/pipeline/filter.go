package pipeline

import (
	"github.com/shopspring/decimal"

	"crypto-data-pipeline/internal/domain"
)

// SocialFilter keeps only posts from influential creators with strong
// sentiment. A post passes when the creator clears the follower floor, at
// least one interaction counter clears its floor, and the sentiment score is
// outside the neutral band.
type SocialFilter struct {
	MinFollowers         int64
	MinInteractions24H   int64
	MinInteractionsTotal int64
	BullishAt            decimal.Decimal // keep when sentiment >= BullishAt
	BearishAt            decimal.Decimal // keep when sentiment <= BearishAt
}

// DefaultSocialFilter returns the production thresholds.
func DefaultSocialFilter() SocialFilter {
	return SocialFilter{
		MinFollowers:         50000,
		MinInteractions24H:   30000,
		MinInteractionsTotal: 60000,
		BullishAt:            decimal.RequireFromString("2.8"),
		BearishAt:            decimal.RequireFromString("2.2"),
	}
}

// Keep reports whether the post passes the filter.
func (f SocialFilter) Keep(p *domain.SocialPost) bool {
	if p.CreatorFollowers < f.MinFollowers {
		return false
	}
	if p.Interactions24H < f.MinInteractions24H && p.InteractionsTotal < f.MinInteractionsTotal {
		return false
	}
	return p.Sentiment.GreaterThanOrEqual(f.BullishAt) || p.Sentiment.LessThanOrEqual(f.BearishAt)
}

// Apply partitions posts into kept and filtered-out counts.
func (f SocialFilter) Apply(posts []*domain.SocialPost) (kept []*domain.SocialPost, filtered int) {
	for _, p := range posts {
		if f.Keep(p) {
			kept = append(kept, p)
		} else {
			filtered++
		}
	}
	return kept, filtered
}
