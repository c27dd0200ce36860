package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SocialPost represents a social media post about a token.
// Corresponds to social_posts table in PostgreSQL.
//
// Natural key is the post link alone: provider posts are globally unique by
// URL, so a post mentioning several tokens still occupies a single row.
type SocialPost struct {
	TokenSymbol       string          // token the post was fetched for
	Title             string          // post title
	Link              string          // PRIMARY KEY, post URL
	Sentiment         decimal.Decimal // provider sentiment score, mutable on re-fetch
	CreatorFollowers  int64           // creator follower count at fetch time
	Interactions24H   int64           // interactions in the last 24h, mutable
	InteractionsTotal int64           // lifetime interactions, mutable
	IngestedAt        time.Time       // when the post was ingested
	CreatedAt         time.Time       // record creation timestamp, set once by the store
}
