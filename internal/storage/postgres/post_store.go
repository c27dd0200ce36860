package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// PostStore implements storage.PostStore using PostgreSQL.
type PostStore struct {
	pool *Pool
}

// NewPostStore creates a new PostStore.
func NewPostStore(pool *Pool) *PostStore {
	return &PostStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PostStore = (*PostStore)(nil)

// UpsertPosts inserts new posts and refreshes mutable fields of existing
// ones. Identity (link, token_symbol, title) and created_at are left
// unchanged on conflict; sentiment and interaction counts take the re-fetched
// values.
func (s *PostStore) UpsertPosts(ctx context.Context, posts []*domain.SocialPost) (storage.UpsertResult, error) {
	query := `
		INSERT INTO social_posts (
			link, token_symbol, title, sentiment,
			creator_followers, interactions_24h, interactions_total, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (link) DO UPDATE SET
			sentiment          = EXCLUDED.sentiment,
			creator_followers  = EXCLUDED.creator_followers,
			interactions_24h   = EXCLUDED.interactions_24h,
			interactions_total = EXCLUDED.interactions_total,
			ingested_at        = EXCLUDED.ingested_at
	`

	var result storage.UpsertResult
	for _, p := range posts {
		if p == nil || p.Link == "" {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		_, err := s.pool.Exec(ctx, query,
			p.Link, p.TokenSymbol, p.Title, p.Sentiment,
			p.CreatorFollowers, p.Interactions24H, p.InteractionsTotal, p.IngestedAt,
		)
		if err != nil {
			if isConstraintError(err) {
				result.Errors = append(result.Errors, storage.RecordError{Key: p.Link, Cause: err})
				continue
			}
			return result, fmt.Errorf("upsert post %s: %w", p.Link, err)
		}
		result.Written++
	}
	return result, nil
}

// GetByLink retrieves a post. Returns ErrNotFound if not exists.
func (s *PostStore) GetByLink(ctx context.Context, link string) (*domain.SocialPost, error) {
	query := `
		SELECT link, token_symbol, title, sentiment,
		       creator_followers, interactions_24h, interactions_total, ingested_at, created_at
		FROM social_posts
		WHERE link = $1
	`

	row := s.pool.QueryRow(ctx, query, link)
	p, err := scanPost(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get post by link: %w", err)
	}
	return p, nil
}

// CountForToken returns the number of stored posts for a symbol.
func (s *PostStore) CountForToken(ctx context.Context, symbol string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM social_posts WHERE token_symbol = $1`, symbol,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts for token: %w", err)
	}
	return count, nil
}

// scanPost scans a single row into SocialPost.
func scanPost(row pgx.Row) (*domain.SocialPost, error) {
	var p domain.SocialPost

	err := row.Scan(
		&p.Link,
		&p.TokenSymbol,
		&p.Title,
		&p.Sentiment,
		&p.CreatorFollowers,
		&p.Interactions24H,
		&p.InteractionsTotal,
		&p.IngestedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
