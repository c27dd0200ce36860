package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/normalize"
	"crypto-data-pipeline/internal/observability"
	"crypto-data-pipeline/internal/provider"
	"crypto-data-pipeline/internal/storage"
)

// BarMirror receives append-only copies of persisted bars for analytical
// queries. Mirror failures degrade to a warning, never the stage.
type BarMirror interface {
	AppendBars(ctx context.Context, bars []*domain.OHLCVBar) error
}

// Window bounds a history fetch, inclusive on both ends.
type Window struct {
	From time.Time
	To   time.Time
}

// StageSet assembles the concrete stage graph for a token: metadata first,
// then social posts and both OHLCV granularities in parallel.
type StageSet struct {
	Metadata provider.MetadataProvider
	Social   provider.SocialProvider
	OHLCV    provider.OHLCVProvider

	Tokens storage.TokenStore
	Posts  storage.PostStore
	Bars   storage.OHLCVStore
	Mirror BarMirror // optional

	Filter SocialFilter
	Retry  RetryPolicy
	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

func (s *StageSet) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ForToken builds the stage graph for one symbol. Social and OHLCV stages
// depend on metadata: without a canonical token row their writes would
// dangle.
func (s *StageSet) ForToken(symbol string, since time.Time, hourly, daily Window) []Stage {
	return []Stage{
		{
			Name: domain.StageMetadata,
			Run:  s.runMetadata(symbol),
		},
		{
			Name:      domain.StageSocialPosts,
			DependsOn: []string{domain.StageMetadata},
			Run:       s.runSocial(symbol, since),
		},
		{
			Name:      domain.StageOHLCVHourly,
			DependsOn: []string{domain.StageMetadata},
			Run:       s.runOHLCV(symbol, domain.GranularityHourly, hourly),
		},
		{
			Name:      domain.StageOHLCVDaily,
			DependsOn: []string{domain.StageMetadata},
			Run:       s.runOHLCV(symbol, domain.GranularityDaily, daily),
		},
	}
}

func (s *StageSet) runMetadata(symbol string) StageFunc {
	return func(ctx context.Context) domain.StageResult {
		res := domain.StageResult{Stage: domain.StageMetadata}

		var payload *provider.MetadataPayload
		start := time.Now()
		attempts, err := s.Retry.Do(ctx, func(ctx context.Context) error {
			var ferr error
			payload, ferr = s.Metadata.FetchMetadata(ctx, symbol)
			return ferr
		})
		res.Attempts = attempts
		observability.RecordFetch(domain.StageMetadata, time.Since(start).Seconds(), string(provider.KindOf(err)))
		if err != nil {
			return failStage(res, err)
		}

		token, err := normalize.Token(payload, s.now())
		if err != nil {
			res.RecordsDropped = 1
			return failStage(res, err)
		}

		result, err := s.Tokens.UpsertTokens(ctx, []*domain.Token{token})
		res.RecordsWritten = result.Written
		res.RecordsDropped += len(result.Errors)
		observability.RecordRecords("token", result.Written, len(result.Errors))
		if err != nil {
			return failStage(res, err)
		}
		if result.Written == 0 {
			res.Status = domain.StageFailed
			res.Err = "token row not written"
			return res
		}

		res.Status = domain.StageSuccess
		return res
	}
}

func (s *StageSet) runSocial(symbol string, since time.Time) StageFunc {
	return func(ctx context.Context) domain.StageResult {
		res := domain.StageResult{Stage: domain.StageSocialPosts}

		var payloads []provider.SocialPostPayload
		start := time.Now()
		attempts, err := s.Retry.Do(ctx, func(ctx context.Context) error {
			var ferr error
			payloads, ferr = s.Social.FetchPosts(ctx, symbol, since)
			return ferr
		})
		res.Attempts = attempts
		observability.RecordFetch(domain.StageSocialPosts, time.Since(start).Seconds(), string(provider.KindOf(err)))
		if err != nil {
			return failStage(res, err)
		}

		posts, drops := normalize.Posts(payloads, symbol, s.now())
		malformed := len(drops)
		for _, d := range drops {
			s.Logger.Debug().Str("token", symbol).Int("index", d.Index).
				Err(d.Cause).Msg("post payload dropped")
		}

		kept, filtered := s.Filter.Apply(posts)
		res.RecordsDropped = malformed + filtered

		result, err := s.Posts.UpsertPosts(ctx, kept)
		res.RecordsWritten = result.Written
		res.RecordsDropped += len(result.Errors)
		observability.RecordRecords("post", result.Written, malformed+len(result.Errors))
		if err != nil {
			return failStage(res, err)
		}

		lost := malformed + len(result.Errors)
		res.Status = batchStatus(len(payloads), lost)
		if res.Status == domain.StageFailed {
			res.Err = fmt.Sprintf("all %d fetched posts lost", len(payloads))
		}
		return res
	}
}

func (s *StageSet) runOHLCV(symbol string, g domain.Granularity, w Window) StageFunc {
	stageName := domain.StageOHLCVHourly
	if g == domain.GranularityDaily {
		stageName = domain.StageOHLCVDaily
	}

	return func(ctx context.Context) domain.StageResult {
		res := domain.StageResult{Stage: stageName}

		var payloads []provider.OHLCVPayload
		start := time.Now()
		attempts, err := s.Retry.Do(ctx, func(ctx context.Context) error {
			var ferr error
			payloads, ferr = s.OHLCV.FetchOHLCV(ctx, symbol, g, w.From, w.To)
			return ferr
		})
		res.Attempts = attempts
		observability.RecordFetch(stageName, time.Since(start).Seconds(), string(provider.KindOf(err)))
		if err != nil {
			return failStage(res, err)
		}

		bars, drops := normalize.Bars(payloads, symbol, g, s.now())
		malformed := len(drops)
		for _, d := range drops {
			s.Logger.Debug().Str("token", symbol).Str("granularity", g.String()).
				Int("index", d.Index).Err(d.Cause).Msg("bar payload dropped")
		}
		for _, b := range bars {
			if b.Suspect {
				res.QualityWarnings++
				s.Logger.Warn().Str("token", symbol).Str("granularity", g.String()).
					Time("ts", b.Timestamp).Msg("bar violates high/low ordering, persisted as suspect")
			}
		}
		res.RecordsDropped = malformed

		result, err := s.Bars.UpsertBars(ctx, bars)
		res.RecordsWritten = result.Written
		res.RecordsDropped += len(result.Errors)
		observability.RecordRecords("bar", result.Written, malformed+len(result.Errors))
		if err != nil {
			return failStage(res, err)
		}

		if s.Mirror != nil && result.Written > 0 {
			if merr := s.Mirror.AppendBars(ctx, bars); merr != nil {
				s.Logger.Warn().Str("token", symbol).Str("granularity", g.String()).
					Err(merr).Msg("analytics mirror append failed")
			}
		}

		lost := malformed + len(result.Errors)
		res.Status = batchStatus(len(payloads), lost)
		if res.Status == domain.StageFailed {
			res.Err = fmt.Sprintf("all %d fetched bars lost", len(payloads))
		}
		return res
	}
}

// failStage marks a result terminally failed.
func failStage(res domain.StageResult, err error) domain.StageResult {
	res.Status = domain.StageFailed
	res.Err = err.Error()
	return res
}

// batchStatus classifies a batch write. An empty fetch is a success; a batch
// fails only when every fetched record was lost to normalization or the
// store. Policy-filtered records are not losses, so a batch they thin out can
// at worst be partial.
func batchStatus(fetched, lost int) domain.StageStatus {
	switch {
	case fetched == 0:
		return domain.StageSuccess
	case lost >= fetched:
		return domain.StageFailed
	case lost > 0:
		return domain.StagePartial
	default:
		return domain.StageSuccess
	}
}
