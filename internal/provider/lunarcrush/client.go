// Package lunarcrush implements the LunarCrush social posts client.
package lunarcrush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crypto-data-pipeline/internal/provider"
)

const (
	// Name identifies this provider in errors, logs and metrics.
	Name = "lunarcrush"

	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://lunarcrush.com"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second
)

// Client is the LunarCrush HTTP client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests point this at a fake server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithRateLimit caps outgoing requests per minute.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithClock overrides the clock used for the end bound of post queries.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a LunarCrush client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ provider.SocialProvider = (*Client)(nil)

// postsResponse mirrors the topic posts endpoint shape.
type postsResponse struct {
	Data []postRecord `json:"data"`
}

type postRecord struct {
	PostTitle         string      `json:"post_title"`
	PostLink          string      `json:"post_link"`
	PostSentiment     json.Number `json:"post_sentiment"`
	CreatorFollowers  json.Number `json:"creator_followers"`
	Interactions24H   json.Number `json:"interactions_24h"`
	InteractionsTotal json.Number `json:"interactions_total"`
}

// FetchPosts returns posts for a topic created since the given time.
// Topics are lower-case on the provider side.
func (c *Client) FetchPosts(ctx context.Context, topic string, since time.Time) ([]provider.SocialPostPayload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("start", fmt.Sprintf("%d", since.UTC().Unix()))
	q.Set("end", fmt.Sprintf("%d", c.now().UTC().Unix()))

	u := fmt.Sprintf("%s/api4/public/topic/%s/posts/v1?%s",
		c.baseURL, url.PathEscape(strings.ToLower(topic)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, provider.NewError(Name, provider.KindBadRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, provider.NewError(Name, provider.KindTransient, err)
	}
	defer resp.Body.Close()

	if perr := provider.FromStatus(Name, resp.StatusCode); perr != nil {
		return nil, perr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(Name, provider.KindTransient, fmt.Errorf("read response: %w", err))
	}

	var pr postsResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, provider.NewError(Name, provider.KindTransient, fmt.Errorf("unmarshal posts: %w", err))
	}

	out := make([]provider.SocialPostPayload, 0, len(pr.Data))
	for _, p := range pr.Data {
		out = append(out, provider.SocialPostPayload{
			Title:             p.PostTitle,
			Link:              p.PostLink,
			Sentiment:         p.PostSentiment,
			CreatorFollowers:  p.CreatorFollowers,
			Interactions24H:   p.Interactions24H,
			InteractionsTotal: p.InteractionsTotal,
		})
	}
	return out, nil
}
