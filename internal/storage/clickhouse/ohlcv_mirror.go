package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crypto-data-pipeline/internal/domain"
)

// OHLCVMirror appends persisted bars to the ohlcv_history table. Writes are
// append-only; ReplacingMergeTree deduplicates by (token_symbol, granularity,
// ts) keeping the row with the highest fetched_at.
type OHLCVMirror struct {
	conn *Conn
}

// NewOHLCVMirror creates a new OHLCVMirror.
func NewOHLCVMirror(conn *Conn) *OHLCVMirror {
	return &OHLCVMirror{conn: conn}
}

// AppendBars writes a batch of bars. The batch is all-or-nothing.
func (s *OHLCVMirror) AppendBars(ctx context.Context, bars []*domain.OHLCVBar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ohlcv_history (
			token_symbol, granularity, ts, open, high, low, close, volume, suspect, fetched_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.TokenSymbol, b.Granularity.String(), b.Timestamp,
			b.Open, b.High, b.Low, b.Close, b.Volume,
			b.Suspect, b.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves bars for a symbol and granularity within
// [from, to] (inclusive), ordered by timestamp ASC. FINAL collapses
// unreplaced duplicates.
func (s *OHLCVMirror) GetByTimeRange(ctx context.Context, symbol string, g domain.Granularity, from, to time.Time) ([]*domain.OHLCVBar, error) {
	query := `
		SELECT token_symbol, granularity, ts, open, high, low, close, volume, suspect, fetched_at
		FROM ohlcv_history FINAL
		WHERE token_symbol = ? AND granularity = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, g.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// CountForToken returns the collapsed row count for a symbol and granularity.
func (s *OHLCVMirror) CountForToken(ctx context.Context, symbol string, g domain.Granularity) (int, error) {
	query := `
		SELECT count(*) FROM ohlcv_history FINAL
		WHERE token_symbol = ? AND granularity = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, g.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return int(count), nil
}

// chRows is the subset of driver.Rows used by scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.OHLCVBar, error) {
	var bars []*domain.OHLCVBar

	for rows.Next() {
		var b domain.OHLCVBar
		var granularity string

		err := rows.Scan(
			&b.TokenSymbol, &granularity, &b.Timestamp,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.Suspect, &b.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ohlcv row: %w", err)
		}

		b.Granularity = domain.Granularity(granularity)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ohlcv rows: %w", err)
	}

	return bars, nil
}
