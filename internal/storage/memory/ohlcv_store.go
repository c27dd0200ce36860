package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// barKey is the natural key of an OHLCV bar.
type barKey struct {
	symbol      string
	granularity domain.Granularity
	timestamp   time.Time
}

// OHLCVStore is an in-memory implementation of storage.OHLCVStore.
type OHLCVStore struct {
	mu   sync.RWMutex
	bars map[barKey]*domain.OHLCVBar
}

// NewOHLCVStore creates a new in-memory OHLCV store.
func NewOHLCVStore() *OHLCVStore {
	return &OHLCVStore{bars: make(map[barKey]*domain.OHLCVBar)}
}

// UpsertBars inserts or refreshes bars by natural key.
func (s *OHLCVStore) UpsertBars(_ context.Context, bars []*domain.OHLCVBar) (storage.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result storage.UpsertResult
	for _, b := range bars {
		if b == nil || b.TokenSymbol == "" || !b.Granularity.IsValid() || b.Timestamp.IsZero() {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		key := barKey{b.TokenSymbol, b.Granularity, b.Timestamp.UTC()}
		barCopy := *b
		if existing, exists := s.bars[key]; exists {
			barCopy.CreatedAt = existing.CreatedAt
		} else {
			barCopy.CreatedAt = time.Now().UTC()
		}
		s.bars[key] = &barCopy
		result.Written++
	}
	return result, nil
}

// GetBars retrieves bars for a symbol and granularity within [from, to],
// ordered by timestamp ASC.
func (s *OHLCVStore) GetBars(_ context.Context, symbol string, g domain.Granularity, from, to time.Time) ([]*domain.OHLCVBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.OHLCVBar
	for key, b := range s.bars {
		if key.symbol != symbol || key.granularity != g {
			continue
		}
		if key.timestamp.Before(from) || key.timestamp.After(to) {
			continue
		}
		barCopy := *b
		out = append(out, &barCopy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Len returns the number of stored bars.
func (s *OHLCVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

var _ storage.OHLCVStore = (*OHLCVStore)(nil)
