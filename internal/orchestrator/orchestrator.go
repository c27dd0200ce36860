// Package orchestrator fans a configured token universe out over the
// per-token pipeline. It is the top fault barrier: a token run may degrade or
// fail, the orchestrator itself never returns an error.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/observability"
	"crypto-data-pipeline/internal/pipeline"
)

// Default configuration values.
const (
	DefaultConcurrency    = 4
	DefaultTokenTimeout   = 2 * time.Minute
	DefaultSocialLookback = 24 * time.Hour
	DefaultHourlyLookback = 7 * 24 * time.Hour
	DefaultDailyLookback  = 90 * 24 * time.Hour
)

// Options contains configuration for creating an Orchestrator.
type Options struct {
	Stages *pipeline.StageSet
	Tokens []string // upper-case ticker universe

	Concurrency    int           // max tokens in flight
	TokenTimeout   time.Duration // per-token budget
	SocialLookback time.Duration // how far back to fetch posts
	HourlyLookback time.Duration // hourly OHLCV window
	DailyLookback  time.Duration // daily OHLCV window

	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// Orchestrator runs the full universe once per Run call.
type Orchestrator struct {
	stages *pipeline.StageSet
	tokens []string

	concurrency    int
	tokenTimeout   time.Duration
	socialLookback time.Duration
	hourlyLookback time.Duration
	dailyLookback  time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	tokenTimeout := opts.TokenTimeout
	if tokenTimeout <= 0 {
		tokenTimeout = DefaultTokenTimeout
	}
	socialLookback := opts.SocialLookback
	if socialLookback <= 0 {
		socialLookback = DefaultSocialLookback
	}
	hourlyLookback := opts.HourlyLookback
	if hourlyLookback <= 0 {
		hourlyLookback = DefaultHourlyLookback
	}
	dailyLookback := opts.DailyLookback
	if dailyLookback <= 0 {
		dailyLookback = DefaultDailyLookback
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		stages:         opts.Stages,
		tokens:         opts.Tokens,
		concurrency:    concurrency,
		tokenTimeout:   tokenTimeout,
		socialLookback: socialLookback,
		hourlyLookback: hourlyLookback,
		dailyLookback:  dailyLookback,
		logger:         opts.Logger,
		now:            now,
	}
}

// Run ingests every configured token and folds the outcomes into a summary.
// Token runs are isolated: one token failing, timing out or degrading never
// affects another.
func (o *Orchestrator) Run(ctx context.Context) *domain.RunSummary {
	start := time.Now()
	o.logger.Info().Int("tokens", len(o.tokens)).Int("concurrency", o.concurrency).
		Msg("run started")

	outcomes := make([]domain.RunOutcome, len(o.tokens))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, symbol := range o.tokens {
		g.Go(func() error {
			outcomes[i] = o.runToken(ctx, symbol)
			return nil
		})
	}
	g.Wait()

	summary := domain.Fold(outcomes, time.Since(start))
	if !summary.Degraded && summary.TokensDegraded == 0 {
		observability.DefaultMetrics.LastSuccessfulRun.Set(float64(time.Now().Unix()))
	}

	o.logger.Info().
		Int("tokens", summary.TokensTotal).
		Int("degraded", summary.TokensDegraded).
		Int("written", summary.RecordsWritten).
		Int("dropped", summary.RecordsDropped).
		Int("quality_warnings", summary.QualityWarnings).
		Dur("duration", summary.Duration).
		Msg("run finished")
	return summary
}

// runToken executes the stage graph for one symbol under the per-token
// budget.
func (o *Orchestrator) runToken(ctx context.Context, symbol string) domain.RunOutcome {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, o.tokenTimeout)
	defer cancel()

	now := o.now()
	since := now.Add(-o.socialLookback)
	hourly := pipeline.Window{From: now.Add(-o.hourlyLookback), To: now}
	daily := pipeline.Window{From: now.Add(-o.dailyLookback), To: now}

	logger := o.logger.With().Str("token", symbol).Logger()
	stages := o.stages.ForToken(symbol, since, hourly, daily)
	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{Stages: stages, Logger: logger})
	if err != nil {
		// Graph construction only fails on a programming error; surface it
		// as a failed outcome instead of crashing the run.
		results := make([]domain.StageResult, len(stages))
		for i, st := range stages {
			results[i] = domain.StageResult{Stage: st.Name, Status: domain.StageFailed, Err: err.Error()}
		}
		return domain.RunOutcome{Token: symbol, Stages: results, Duration: time.Since(start)}
	}

	results := runner.Run(tctx)
	outcome := domain.RunOutcome{Token: symbol, Stages: results, Duration: time.Since(start)}

	status := "success"
	for _, s := range results {
		if s.Status != domain.StageSuccess {
			status = "degraded"
			break
		}
	}
	observability.RecordTokenRun(status, outcome.Duration.Seconds())
	return outcome
}
