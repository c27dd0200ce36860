package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

func TestPostStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostStore(pool)
	ctx := context.Background()

	ingestedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	post := &domain.SocialPost{
		TokenSymbol:       "BTC",
		Title:             "BTC to the moon",
		Link:              "https://x.com/p/1",
		Sentiment:         decimal.RequireFromString("3.2"),
		CreatorFollowers:  80000,
		Interactions24H:   40000,
		InteractionsTotal: 95000,
		IngestedAt:        ingestedAt,
	}

	res, err := store.UpsertPosts(ctx, []*domain.SocialPost{post})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	retrieved, err := store.GetByLink(ctx, "https://x.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, "BTC", retrieved.TokenSymbol)
	assert.Equal(t, "BTC to the moon", retrieved.Title)
	assert.True(t, retrieved.Sentiment.Equal(post.Sentiment))
	assert.Equal(t, int64(80000), retrieved.CreatorFollowers)
	assert.NotZero(t, retrieved.CreatedAt)
}

func TestPostStore_ConflictRefreshesCountsOnly(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostStore(pool)
	ctx := context.Background()

	ingestedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	post := &domain.SocialPost{
		TokenSymbol: "BTC",
		Title:       "original",
		Link:        "https://x.com/p/1",
		Sentiment:   decimal.RequireFromString("3.0"),
		IngestedAt:  ingestedAt,
	}
	_, err := store.UpsertPosts(ctx, []*domain.SocialPost{post})
	require.NoError(t, err)

	// Same link seen again with fresher engagement numbers
	update := &domain.SocialPost{
		TokenSymbol:       "BTC",
		Title:             "edited",
		Link:              "https://x.com/p/1",
		Sentiment:         decimal.RequireFromString("3.4"),
		CreatorFollowers:  90000,
		Interactions24H:   50000,
		InteractionsTotal: 120000,
		IngestedAt:        ingestedAt.Add(time.Hour),
	}
	res, err := store.UpsertPosts(ctx, []*domain.SocialPost{update})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	retrieved, err := store.GetByLink(ctx, "https://x.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, "original", retrieved.Title, "identity fields must not change on conflict")
	assert.True(t, retrieved.Sentiment.Equal(decimal.RequireFromString("3.4")))
	assert.Equal(t, int64(90000), retrieved.CreatorFollowers)
	assert.True(t, retrieved.IngestedAt.Equal(ingestedAt.Add(time.Hour)))

	count, err := store.CountForToken(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "conflict must not create a second row")
}

func TestPostStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostStore(pool)
	_, err := store.GetByLink(context.Background(), "https://x.com/p/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostStore_CountForToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	posts := []*domain.SocialPost{
		{TokenSymbol: "BTC", Link: "https://x.com/p/1", Sentiment: decimal.Zero, IngestedAt: now},
		{TokenSymbol: "BTC", Link: "https://x.com/p/2", Sentiment: decimal.Zero, IngestedAt: now},
		{TokenSymbol: "ETH", Link: "https://x.com/p/3", Sentiment: decimal.Zero, IngestedAt: now},
	}
	res, err := store.UpsertPosts(ctx, posts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)

	count, err := store.CountForToken(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountForToken(ctx, "DOGE")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
