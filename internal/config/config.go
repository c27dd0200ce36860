// Package config loads pipeline configuration from the environment, with
// optional .env file support for local runs.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full pipeline configuration. Slice values use the ";"
// separator, e.g. PIPELINE_TOKENS="BTC;ETH;ADA".
type Config struct {
	// Provider credentials
	TokenMetricsAPIKey string `env:"TOKENMETRICS_API_KEY,required"`
	LunarCrushAPIKey   string `env:"LUNARCRUSH_API_KEY,required"`

	// Provider rate limits, requests per minute
	TokenMetricsRate int `env:"TOKENMETRICS_RATE_LIMIT,default=60"`
	LunarCrushRate   int `env:"LUNARCRUSH_RATE_LIMIT,default=60"`

	// Storage. Empty PostgresDSN selects in-memory stores (dry runs);
	// empty ClickHouseDSN disables the analytics mirror.
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`

	// Token universe and scheduling
	Tokens         []string      `env:"PIPELINE_TOKENS,default=BTC;ETH"`
	Concurrency    int           `env:"PIPELINE_CONCURRENCY,default=4"`
	TokenTimeout   time.Duration `env:"PIPELINE_TOKEN_TIMEOUT,default=2m"`
	SocialLookback time.Duration `env:"PIPELINE_SOCIAL_LOOKBACK,default=24h"`
	HourlyLookback time.Duration `env:"PIPELINE_HOURLY_LOOKBACK,default=168h"`
	DailyLookback  time.Duration `env:"PIPELINE_DAILY_LOOKBACK,default=2160h"`

	// Fetch retries
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS,default=3"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY,default=1s"`
	RetryMaxDelay    time.Duration `env:"RETRY_MAX_DELAY,default=10s"`

	// Social post filter thresholds
	SocialMinFollowers         int64  `env:"SOCIAL_MIN_FOLLOWERS,default=50000"`
	SocialMinInteractions24H   int64  `env:"SOCIAL_MIN_INTERACTIONS_24H,default=30000"`
	SocialMinInteractionsTotal int64  `env:"SOCIAL_MIN_INTERACTIONS_TOTAL,default=60000"`
	SocialBullishAt            string `env:"SOCIAL_SENTIMENT_BULLISH,default=2.8"`
	SocialBearishAt            string `env:"SOCIAL_SENTIMENT_BEARISH,default=2.2"`

	// Observability. Empty MetricsAddr disables the /metrics listener.
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// Load reads configuration from the environment. A non-empty envFile is
// loaded first; a missing default .env is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load() // allow .env for local runs
	}

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
