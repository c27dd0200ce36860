// Package memory provides in-memory implementations of the storage
// interfaces for tests and dry runs. Stores copy values in and out and hold
// the same upsert guarantees as the SQL-backed stores.
package memory

import (
	"context"
	"sync"
	"time"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu       sync.RWMutex
	bySymbol map[string]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{bySymbol: make(map[string]*domain.Token)}
}

// UpsertTokens inserts or refreshes tokens by symbol.
func (s *TokenStore) UpsertTokens(_ context.Context, tokens []*domain.Token) (storage.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result storage.UpsertResult
	for _, t := range tokens {
		if t == nil || t.Symbol == "" {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		tokenCopy := *t
		if existing, exists := s.bySymbol[t.Symbol]; exists {
			tokenCopy.CreatedAt = existing.CreatedAt
		} else {
			tokenCopy.CreatedAt = time.Now().UTC()
		}
		s.bySymbol[t.Symbol] = &tokenCopy
		result.Written++
	}
	return result, nil
}

// GetBySymbol retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetBySymbol(_ context.Context, symbol string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.bySymbol[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySymbol)
}

var _ storage.TokenStore = (*TokenStore)(nil)
