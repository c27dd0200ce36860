package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// OHLCVStore implements storage.OHLCVStore using PostgreSQL.
type OHLCVStore struct {
	pool *Pool
}

// NewOHLCVStore creates a new OHLCVStore.
func NewOHLCVStore(pool *Pool) *OHLCVStore {
	return &OHLCVStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OHLCVStore = (*OHLCVStore)(nil)

// UpsertBars inserts or refreshes bars by (token_symbol, granularity,
// timestamp). Price fields and the suspect flag take the re-fetched values;
// created_at is never touched on update.
func (s *OHLCVStore) UpsertBars(ctx context.Context, bars []*domain.OHLCVBar) (storage.UpsertResult, error) {
	query := `
		INSERT INTO ohlcv_bars (
			token_symbol, granularity, ts, open, high, low, close, volume, suspect, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (token_symbol, granularity, ts) DO UPDATE SET
			open       = EXCLUDED.open,
			high       = EXCLUDED.high,
			low        = EXCLUDED.low,
			close      = EXCLUDED.close,
			volume     = EXCLUDED.volume,
			suspect    = EXCLUDED.suspect,
			fetched_at = EXCLUDED.fetched_at
	`

	var result storage.UpsertResult
	for _, b := range bars {
		if b == nil || b.TokenSymbol == "" || !b.Granularity.IsValid() || b.Timestamp.IsZero() {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		_, err := s.pool.Exec(ctx, query,
			b.TokenSymbol, b.Granularity.String(), b.Timestamp,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Suspect, b.FetchedAt,
		)
		if err != nil {
			if isConstraintError(err) {
				result.Errors = append(result.Errors, storage.RecordError{Key: barKey(b), Cause: err})
				continue
			}
			return result, fmt.Errorf("upsert bar %s: %w", barKey(b), err)
		}
		result.Written++
	}
	return result, nil
}

// GetBars retrieves bars for a symbol and granularity within [from, to],
// ordered by timestamp ASC.
func (s *OHLCVStore) GetBars(ctx context.Context, symbol string, g domain.Granularity, from, to time.Time) ([]*domain.OHLCVBar, error) {
	query := `
		SELECT token_symbol, granularity, ts, open, high, low, close, volume, suspect, fetched_at, created_at
		FROM ohlcv_bars
		WHERE token_symbol = $1 AND granularity = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, g.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []*domain.OHLCVBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	return bars, nil
}

// scanBar scans a single row into OHLCVBar.
func scanBar(row pgx.Row) (*domain.OHLCVBar, error) {
	var b domain.OHLCVBar
	var granularity string

	err := row.Scan(
		&b.TokenSymbol,
		&granularity,
		&b.Timestamp,
		&b.Open,
		&b.High,
		&b.Low,
		&b.Close,
		&b.Volume,
		&b.Suspect,
		&b.FetchedAt,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Granularity = domain.Granularity(granularity)
	return &b, nil
}

// barKey renders the natural key for error reporting.
func barKey(b *domain.OHLCVBar) string {
	return fmt.Sprintf("%s/%s/%s", b.TokenSymbol, b.Granularity, b.Timestamp.UTC().Format(time.RFC3339))
}
