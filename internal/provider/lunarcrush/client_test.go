package lunarcrush

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-data-pipeline/internal/provider"
)

func TestFetchPosts_MapsFields(t *testing.T) {
	var gotPath, gotAuth, gotStart string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotStart = r.URL.Query().Get("start")
		fmt.Fprint(w, `{"data":[{
			"post_title":"BTC breaking out",
			"post_link":"https://x.com/p/1",
			"post_sentiment":3.2,
			"creator_followers":80000,
			"interactions_24h":40000,
			"interactions_total":95000}]}`)
	}))
	defer srv.Close()

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := New("test-key", WithBaseURL(srv.URL))
	posts, err := c.FetchPosts(context.Background(), "BTC", since)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if gotPath != "/api4/public/topic/btc/posts/v1" {
		t.Errorf("Topic must be lower-cased in path, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotStart != fmt.Sprintf("%d", since.Unix()) {
		t.Errorf("Expected start=%d, got %q", since.Unix(), gotStart)
	}

	if len(posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.Title != "BTC breaking out" || p.Link != "https://x.com/p/1" {
		t.Errorf("Identity fields mismatch: %+v", p)
	}
	if p.Sentiment.String() != "3.2" || p.CreatorFollowers.String() != "80000" {
		t.Errorf("Numeric fields mismatch: %+v", p)
	}
}

func TestFetchPosts_ClockBoundsEnd(t *testing.T) {
	var gotEnd string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEnd = r.URL.Query().Get("end")
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New("k", WithBaseURL(srv.URL), WithClock(func() time.Time { return fixed }))
	if _, err := c.FetchPosts(context.Background(), "BTC", fixed.Add(-time.Hour)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotEnd != fmt.Sprintf("%d", fixed.Unix()) {
		t.Errorf("Expected end=%d from the injected clock, got %q", fixed.Unix(), gotEnd)
	}
}

func TestFetchPosts_UnauthorizedKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("bad-key", WithBaseURL(srv.URL))
	_, err := c.FetchPosts(context.Background(), "BTC", time.Now().Add(-time.Hour))
	if provider.KindOf(err) != provider.KindUnauthorized {
		t.Fatalf("Expected unauthorized, got %v", err)
	}
	if provider.Retryable(err) {
		t.Error("Unauthorized must not be retryable")
	}
}

func TestFetchPosts_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := New("k", WithBaseURL(srv.URL))
	posts, err := c.FetchPosts(context.Background(), "BTC", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("Expected no posts, got %d", len(posts))
	}
}
