// Package stub provides fixed in-memory providers for testing.
// Stubs can be scripted to fail deterministically: a queue of errors is
// consumed first, then the fixed payloads are served.
package stub

import (
	"context"
	"sync"
	"time"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/provider"
)

// failQueue serves scripted errors before real payloads.
type failQueue struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

// next pops the next scripted error, or nil when the queue is drained.
func (q *failQueue) next() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if len(q.errs) == 0 {
		return nil
	}
	err := q.errs[0]
	q.errs = q.errs[1:]
	return err
}

func (q *failQueue) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// MetadataProvider returns fixed metadata keyed by symbol.
// Implements provider.MetadataProvider.
type MetadataProvider struct {
	payloads map[string]*provider.MetadataPayload
	failures failQueue
}

// NewMetadataProvider creates a stub metadata provider.
func NewMetadataProvider(payloads map[string]*provider.MetadataPayload) *MetadataProvider {
	return &MetadataProvider{payloads: payloads}
}

// FailWith queues errors to be returned before any payload is served.
func (s *MetadataProvider) FailWith(errs ...error) *MetadataProvider {
	s.failures.errs = append(s.failures.errs, errs...)
	return s
}

// Calls returns how many times FetchMetadata was invoked.
func (s *MetadataProvider) Calls() int {
	return s.failures.callCount()
}

// FetchMetadata returns a copy of the scripted payload for the symbol.
func (s *MetadataProvider) FetchMetadata(_ context.Context, symbol string) (*provider.MetadataPayload, error) {
	if err := s.failures.next(); err != nil {
		return nil, err
	}
	p, exists := s.payloads[symbol]
	if !exists {
		return nil, provider.NewError("stub", provider.KindNotFound, nil)
	}
	payloadCopy := *p
	return &payloadCopy, nil
}

// SocialProvider returns fixed posts keyed by topic.
// Implements provider.SocialProvider.
type SocialProvider struct {
	posts    map[string][]provider.SocialPostPayload
	failures failQueue
}

// NewSocialProvider creates a stub social provider.
func NewSocialProvider(posts map[string][]provider.SocialPostPayload) *SocialProvider {
	return &SocialProvider{posts: posts}
}

// FailWith queues errors to be returned before any payload is served.
func (s *SocialProvider) FailWith(errs ...error) *SocialProvider {
	s.failures.errs = append(s.failures.errs, errs...)
	return s
}

// Calls returns how many times FetchPosts was invoked.
func (s *SocialProvider) Calls() int {
	return s.failures.callCount()
}

// FetchPosts returns copies of the scripted posts for the topic.
func (s *SocialProvider) FetchPosts(_ context.Context, topic string, _ time.Time) ([]provider.SocialPostPayload, error) {
	if err := s.failures.next(); err != nil {
		return nil, err
	}
	src := s.posts[topic]
	out := make([]provider.SocialPostPayload, len(src))
	copy(out, src)
	return out, nil
}

// OHLCVProvider returns fixed bars keyed by symbol and granularity.
// Implements provider.OHLCVProvider.
type OHLCVProvider struct {
	bars     map[string][]provider.OHLCVPayload // keyed by symbol + "/" + granularity
	failures failQueue
}

// NewOHLCVProvider creates a stub OHLCV provider.
func NewOHLCVProvider() *OHLCVProvider {
	return &OHLCVProvider{bars: make(map[string][]provider.OHLCVPayload)}
}

// Add scripts bars for a symbol and granularity.
func (s *OHLCVProvider) Add(symbol string, g domain.Granularity, bars ...provider.OHLCVPayload) *OHLCVProvider {
	key := symbol + "/" + g.String()
	s.bars[key] = append(s.bars[key], bars...)
	return s
}

// FailWith queues errors to be returned before any payload is served.
func (s *OHLCVProvider) FailWith(errs ...error) *OHLCVProvider {
	s.failures.errs = append(s.failures.errs, errs...)
	return s
}

// Calls returns how many times FetchOHLCV was invoked.
func (s *OHLCVProvider) Calls() int {
	return s.failures.callCount()
}

// FetchOHLCV returns copies of the scripted bars.
func (s *OHLCVProvider) FetchOHLCV(_ context.Context, symbol string, g domain.Granularity, _, _ time.Time) ([]provider.OHLCVPayload, error) {
	if err := s.failures.next(); err != nil {
		return nil, err
	}
	src := s.bars[symbol+"/"+g.String()]
	out := make([]provider.OHLCVPayload, len(src))
	copy(out, src)
	return out, nil
}

// Compile-time interface checks.
var (
	_ provider.MetadataProvider = (*MetadataProvider)(nil)
	_ provider.SocialProvider   = (*SocialProvider)(nil)
	_ provider.OHLCVProvider    = (*OHLCVProvider)(nil)
)
