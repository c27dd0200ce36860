// Package tokenmetrics implements the Token Metrics API client.
// It serves the metadata and OHLCV provider contracts. The client maps
// provider JSON into neutral payloads and classifies HTTP failures; it never
// retries; retry policy belongs to the stage runner.
package tokenmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/provider"
)

const (
	// Name identifies this provider in errors, logs and metrics.
	Name = "tokenmetrics"

	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.tokenmetrics.com"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// pageLimit is the page size used for OHLCV pagination.
	pageLimit = 1000
)

// Client is the Token Metrics HTTP client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
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

// New creates a Token Metrics client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface checks.
var (
	_ provider.MetadataProvider = (*Client)(nil)
	_ provider.OHLCVProvider    = (*Client)(nil)
)

// envelope is the Token Metrics response wrapper.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data"`
}

// tokenRecord mirrors the /v2/tokens payload shape.
type tokenRecord struct {
	TokenID     json.Number `json:"TOKEN_ID"`
	TokenName   string      `json:"TOKEN_NAME"`
	TokenSymbol string      `json:"TOKEN_SYMBOL"`
	Price       json.Number `json:"CURRENT_PRICE"`
	MarketCap   json.Number `json:"MARKET_CAP"`
	TotalVolume json.Number `json:"TOTAL_VOLUME"`
	MarketRank  json.Number `json:"MARKET_CAP_RANK"`
}

// ohlcvRecord mirrors the /v2/{hourly,daily}-ohlcv payload shape.
// Hourly rows carry TIMESTAMP, daily rows carry DATE.
type ohlcvRecord struct {
	Timestamp string      `json:"TIMESTAMP"`
	Date      string      `json:"DATE"`
	Open      json.Number `json:"OPEN"`
	High      json.Number `json:"HIGH"`
	Low       json.Number `json:"LOW"`
	Close     json.Number `json:"CLOSE"`
	Volume    json.Number `json:"VOLUME"`
}

// FetchMetadata returns metadata for a symbol.
func (c *Client) FetchMetadata(ctx context.Context, symbol string) (*provider.MetadataPayload, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	env, err := c.get(ctx, "/v2/tokens", q)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, provider.NewError(Name, provider.KindNotFound, fmt.Errorf("no token data for %s", symbol))
	}

	var rec tokenRecord
	if err := json.Unmarshal(env.Data[0], &rec); err != nil {
		return nil, provider.NewError(Name, provider.KindBadRequest, fmt.Errorf("decode token record: %w", err))
	}

	return &provider.MetadataPayload{
		ProviderID: rec.TokenID.String(),
		Symbol:     rec.TokenSymbol,
		Name:       rec.TokenName,
		Price:      rec.Price,
		MarketCap:  rec.MarketCap,
		Volume24H:  rec.TotalVolume,
		Rank:       rec.MarketRank,
	}, nil
}

// FetchOHLCV returns bars for [from, to] at the given granularity.
// Pages through results until the provider returns a short page.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, granularity domain.Granularity, from, to time.Time) ([]provider.OHLCVPayload, error) {
	endpoint := "/v2/daily-ohlcv"
	if granularity == domain.GranularityHourly {
		endpoint = "/v2/hourly-ohlcv"
	}

	var out []provider.OHLCVPayload
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("startDate", from.UTC().Format("2006-01-02"))
		q.Set("endDate", to.UTC().Format("2006-01-02"))
		q.Set("limit", fmt.Sprintf("%d", pageLimit))
		q.Set("page", fmt.Sprintf("%d", page))

		env, err := c.get(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}

		for _, raw := range env.Data {
			var rec ohlcvRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, provider.NewError(Name, provider.KindBadRequest, fmt.Errorf("decode ohlcv record: %w", err))
			}
			ts := rec.Timestamp
			if ts == "" {
				ts = rec.Date
			}
			out = append(out, provider.OHLCVPayload{
				Timestamp: ts,
				Open:      rec.Open,
				High:      rec.High,
				Low:       rec.Low,
				Close:     rec.Close,
				Volume:    rec.Volume,
			})
		}

		if len(env.Data) < pageLimit {
			return out, nil
		}
	}
}

// get performs one authenticated GET and decodes the response envelope.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, provider.NewError(Name, provider.KindBadRequest, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api_key", c.apiKey)

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

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, provider.NewError(Name, provider.KindTransient, fmt.Errorf("unmarshal envelope: %w", err))
	}
	if !env.Success {
		return nil, provider.NewError(Name, provider.KindBadRequest, fmt.Errorf("provider rejected request: %s", env.Message))
	}

	return &env, nil
}
