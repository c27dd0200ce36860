// Package main provides the ingestion pipeline entry point.
// Executes: fetch → normalize → upsert for every configured token.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-data-pipeline/internal/config"
	"crypto-data-pipeline/internal/observability"
	"crypto-data-pipeline/internal/orchestrator"
	"crypto-data-pipeline/internal/pipeline"
	"crypto-data-pipeline/internal/provider/lunarcrush"
	"crypto-data-pipeline/internal/provider/tokenmetrics"
	"crypto-data-pipeline/internal/storage"
	"crypto-data-pipeline/internal/storage/clickhouse"
	"crypto-data-pipeline/internal/storage/memory"
	"crypto-data-pipeline/internal/storage/migrations"
	"crypto-data-pipeline/internal/storage/postgres"
)

func main() {
	envFile := flag.String("env-file", "", "Path to .env file (optional)")
	tokensFlag := flag.String("tokens", "", "Comma-separated token universe, overrides PIPELINE_TOKENS")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *tokensFlag != "" {
		cfg.Tokens = strings.Split(*tokensFlag, ",")
	}

	logger := newLogger(cfg.LogLevel)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("shutdown signal received, cancelling run")
		cancel()
	}()

	// Optional /metrics listener
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Storage error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	filter, err := socialFilter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	tm := tokenmetrics.New(cfg.TokenMetricsAPIKey,
		tokenmetrics.WithRateLimit(cfg.TokenMetricsRate))
	lc := lunarcrush.New(cfg.LunarCrushAPIKey,
		lunarcrush.WithRateLimit(cfg.LunarCrushRate))

	stages := &pipeline.StageSet{
		Metadata: tm,
		Social:   lc,
		OHLCV:    tm,
		Tokens:   stores.tokens,
		Posts:    stores.posts,
		Bars:     stores.bars,
		Mirror:   stores.mirror,
		Filter:   filter,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Logger: logger,
	}

	orch := orchestrator.New(orchestrator.Options{
		Stages:         stages,
		Tokens:         normalizeSymbols(cfg.Tokens),
		Concurrency:    cfg.Concurrency,
		TokenTimeout:   cfg.TokenTimeout,
		SocialLookback: cfg.SocialLookback,
		HourlyLookback: cfg.HourlyLookback,
		DailyLookback:  cfg.DailyLookback,
		Logger:         logger,
	})

	summary := orch.Run(ctx)

	fmt.Println("=== Ingestion Run ===")
	fmt.Printf("  Tokens:           %d\n", summary.TokensTotal)
	fmt.Printf("  Degraded tokens:  %d\n", summary.TokensDegraded)
	fmt.Printf("  Records written:  %d\n", summary.RecordsWritten)
	fmt.Printf("  Records dropped:  %d\n", summary.RecordsDropped)
	fmt.Printf("  Quality warnings: %d\n", summary.QualityWarnings)
	fmt.Printf("  Duration:         %s\n", summary.Duration.Round(time.Millisecond))
	for _, o := range summary.Outcomes {
		for _, s := range o.Stages {
			if s.Err != "" {
				fmt.Printf("  %s/%s: %s\n", o.Token, s.Stage, s.Err)
			}
		}
	}

	// A degraded run still exits 0: partial data in the store beats no data,
	// and the summary carries the detail.
	if summary.Degraded {
		logger.Warn().Msg("run degraded: metadata missing for at least one token")
	}
}

// pipelineStores bundles the selected store backends.
type pipelineStores struct {
	tokens storage.TokenStore
	posts  storage.PostStore
	bars   storage.OHLCVStore
	mirror pipeline.BarMirror
}

// createStores selects PostgreSQL stores when a DSN is configured, otherwise
// in-memory stores. The ClickHouse mirror attaches only when its DSN is set.
func createStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipelineStores, func(), error) {
	cleanup := func() {}

	stores := &pipelineStores{
		tokens: memory.NewTokenStore(),
		posts:  memory.NewPostStore(),
		bars:   memory.NewOHLCVStore(),
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, cleanup, fmt.Errorf("migrate postgres: %w", err)
		}
		stores.tokens = postgres.NewTokenStore(pool)
		stores.posts = postgres.NewPostStore(pool)
		stores.bars = postgres.NewOHLCVStore(pool)
		cleanup = pool.Close
		logger.Info().Msg("using postgres stores")
	} else {
		logger.Info().Msg("no POSTGRES_DSN, using in-memory stores")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("migrate clickhouse: %w", err)
		}
		stores.mirror = clickhouse.NewOHLCVMirror(conn)
		prev := cleanup
		cleanup = func() {
			conn.Close()
			prev()
		}
		logger.Info().Msg("clickhouse mirror enabled")
	}

	return stores, cleanup, nil
}

// socialFilter builds the post filter from configured thresholds.
func socialFilter(cfg *config.Config) (pipeline.SocialFilter, error) {
	bullish, err := decimal.NewFromString(cfg.SocialBullishAt)
	if err != nil {
		return pipeline.SocialFilter{}, fmt.Errorf("parse SOCIAL_SENTIMENT_BULLISH: %w", err)
	}
	bearish, err := decimal.NewFromString(cfg.SocialBearishAt)
	if err != nil {
		return pipeline.SocialFilter{}, fmt.Errorf("parse SOCIAL_SENTIMENT_BEARISH: %w", err)
	}
	return pipeline.SocialFilter{
		MinFollowers:         cfg.SocialMinFollowers,
		MinInteractions24H:   cfg.SocialMinInteractions24H,
		MinInteractionsTotal: cfg.SocialMinInteractionsTotal,
		BullishAt:            bullish,
		BearishAt:            bearish,
	}, nil
}

// normalizeSymbols trims and upper-cases the configured universe.
func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// newLogger builds the process logger.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
