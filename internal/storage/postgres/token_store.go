package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// UpsertTokens inserts or refreshes tokens by symbol.
// ON CONFLICT updates mutable market attributes only; created_at is set by
// the database on first insert and never touched afterwards.
func (s *TokenStore) UpsertTokens(ctx context.Context, tokens []*domain.Token) (storage.UpsertResult, error) {
	query := `
		INSERT INTO tokens (
			symbol, provider_id, name, price, market_cap, volume_24h, rank, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			name        = EXCLUDED.name,
			price       = EXCLUDED.price,
			market_cap  = EXCLUDED.market_cap,
			volume_24h  = EXCLUDED.volume_24h,
			rank        = EXCLUDED.rank,
			fetched_at  = EXCLUDED.fetched_at
	`

	var result storage.UpsertResult
	for _, t := range tokens {
		if t == nil || t.Symbol == "" {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		_, err := s.pool.Exec(ctx, query,
			t.Symbol, t.ProviderID, t.Name, t.Price, t.MarketCap, t.Volume24H, t.Rank, t.FetchedAt,
		)
		if err != nil {
			if isConstraintError(err) {
				result.Errors = append(result.Errors, storage.RecordError{Key: t.Symbol, Cause: err})
				continue
			}
			return result, fmt.Errorf("upsert token %s: %w", t.Symbol, err)
		}
		result.Written++
	}
	return result, nil
}

// GetBySymbol retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error) {
	query := `
		SELECT symbol, provider_id, name, price, market_cap, volume_24h, rank, fetched_at, created_at
		FROM tokens
		WHERE symbol = $1
	`

	row := s.pool.QueryRow(ctx, query, symbol)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by symbol: %w", err)
	}
	return t, nil
}

// scanToken scans a single row into Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token

	err := row.Scan(
		&t.Symbol,
		&t.ProviderID,
		&t.Name,
		&t.Price,
		&t.MarketCap,
		&t.Volume24H,
		&t.Rank,
		&t.FetchedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
