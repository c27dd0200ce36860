package memory

import (
	"context"
	"sync"
	"time"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/storage"
)

// PostStore is an in-memory implementation of storage.PostStore.
type PostStore struct {
	mu     sync.RWMutex
	byLink map[string]*domain.SocialPost
}

// NewPostStore creates a new in-memory post store.
func NewPostStore() *PostStore {
	return &PostStore{byLink: make(map[string]*domain.SocialPost)}
}

// UpsertPosts inserts new posts and refreshes mutable fields of existing
// ones. Identity fields of an existing row are preserved.
func (s *PostStore) UpsertPosts(_ context.Context, posts []*domain.SocialPost) (storage.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result storage.UpsertResult
	for _, p := range posts {
		if p == nil || p.Link == "" {
			result.Errors = append(result.Errors, storage.RecordError{Cause: storage.ErrInvalidInput})
			continue
		}

		if existing, exists := s.byLink[p.Link]; exists {
			updated := *existing
			updated.Sentiment = p.Sentiment
			updated.CreatorFollowers = p.CreatorFollowers
			updated.Interactions24H = p.Interactions24H
			updated.InteractionsTotal = p.InteractionsTotal
			updated.IngestedAt = p.IngestedAt
			s.byLink[p.Link] = &updated
		} else {
			postCopy := *p
			postCopy.CreatedAt = time.Now().UTC()
			s.byLink[p.Link] = &postCopy
		}
		result.Written++
	}
	return result, nil
}

// GetByLink retrieves a post. Returns ErrNotFound if not exists.
func (s *PostStore) GetByLink(_ context.Context, link string) (*domain.SocialPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.byLink[link]
	if !exists {
		return nil, storage.ErrNotFound
	}
	postCopy := *p
	return &postCopy, nil
}

// CountForToken returns the number of stored posts for a symbol.
func (s *PostStore) CountForToken(_ context.Context, symbol string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.byLink {
		if p.TokenSymbol == symbol {
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored posts.
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byLink)
}

var _ storage.PostStore = (*PostStore)(nil)
