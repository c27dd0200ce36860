package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/pipeline"
	"crypto-data-pipeline/internal/provider"
	"crypto-data-pipeline/internal/provider/stub"
	"crypto-data-pipeline/internal/storage/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	meta   *stub.MetadataProvider
	social *stub.SocialProvider
	ohlcv  *stub.OHLCVProvider
	tokens *memory.TokenStore
	posts  *memory.PostStore
	bars   *memory.OHLCVStore
	orch   *Orchestrator
}

func newFixture(universe []string, meta *stub.MetadataProvider, social *stub.SocialProvider, ohlcv *stub.OHLCVProvider) *fixture {
	f := &fixture{
		meta:   meta,
		social: social,
		ohlcv:  ohlcv,
		tokens: memory.NewTokenStore(),
		posts:  memory.NewPostStore(),
		bars:   memory.NewOHLCVStore(),
	}

	stages := &pipeline.StageSet{
		Metadata: meta,
		Social:   social,
		OHLCV:    ohlcv,
		Tokens:   f.tokens,
		Posts:    f.posts,
		Bars:     f.bars,
		Filter:   pipeline.DefaultSocialFilter(),
		Retry:    pipeline.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Multiplier: 2},
		Now:      func() time.Time { return testNow },
	}

	f.orch = New(Options{
		Stages:      stages,
		Tokens:      universe,
		Concurrency: 2,
		Now:         func() time.Time { return testNow },
	})
	return f
}

func metadataFor(symbols ...string) *stub.MetadataProvider {
	payloads := make(map[string]*provider.MetadataPayload)
	names := map[string]string{"BTC": "Bitcoin", "ETH": "Ethereum", "ADA": "Cardano"}
	for _, s := range symbols {
		payloads[s] = &provider.MetadataPayload{
			ProviderID: "id-" + s,
			Symbol:     s,
			Name:       names[s],
			Price:      json.Number("50000"),
		}
	}
	return stub.NewMetadataProvider(payloads)
}

func cleanBar(ts string) provider.OHLCVPayload {
	return provider.OHLCVPayload{
		Timestamp: ts,
		Open:      json.Number("100"),
		High:      json.Number("110"),
		Low:       json.Number("95"),
		Close:     json.Number("105"),
		Volume:    json.Number("10"),
	}
}

func TestRun_FullUniverse(t *testing.T) {
	ohlcv := stub.NewOHLCVProvider()
	for _, s := range []string{"BTC", "ETH", "ADA"} {
		ohlcv.Add(s, domain.GranularityHourly, cleanBar("2025-06-01T10:00:00Z"))
		ohlcv.Add(s, domain.GranularityDaily, cleanBar("2025-05-31"))
	}
	social := stub.NewSocialProvider(map[string][]provider.SocialPostPayload{
		"BTC": {{
			Link:             "https://x.com/p/1",
			Sentiment:        json.Number("3.2"),
			CreatorFollowers: json.Number("80000"),
			Interactions24H:  json.Number("40000"),
		}},
	})

	f := newFixture([]string{"BTC", "ETH", "ADA"}, metadataFor("BTC", "ETH", "ADA"), social, ohlcv)
	summary := f.orch.Run(context.Background())

	if summary.TokensTotal != 3 {
		t.Fatalf("Expected 3 tokens, got %d", summary.TokensTotal)
	}
	if summary.Degraded || summary.TokensDegraded != 0 {
		t.Fatalf("Expected clean run, got degraded=%v tokensDegraded=%d", summary.Degraded, summary.TokensDegraded)
	}
	// 3 tokens + 1 post + 3 hourly + 3 daily bars
	if summary.RecordsWritten != 10 {
		t.Errorf("Expected 10 records written, got %d", summary.RecordsWritten)
	}
	if summary.QualityWarnings != 0 {
		t.Errorf("Expected no quality warnings, got %d", summary.QualityWarnings)
	}

	if f.tokens.Len() != 3 {
		t.Errorf("Expected 3 stored tokens, got %d", f.tokens.Len())
	}
	bars, err := f.bars.GetBars(context.Background(), "BTC", domain.GranularityHourly,
		testNow.Add(-24*time.Hour), testNow)
	if err != nil || len(bars) != 1 {
		t.Fatalf("Expected 1 BTC hourly bar, got %d (err %v)", len(bars), err)
	}
	if bars[0].Suspect {
		t.Error("Clean bar must not be suspect")
	}
}

func TestRun_Idempotent(t *testing.T) {
	ohlcv := stub.NewOHLCVProvider().
		Add("BTC", domain.GranularityHourly, cleanBar("2025-06-01T10:00:00Z")).
		Add("BTC", domain.GranularityDaily, cleanBar("2025-05-31"))
	social := stub.NewSocialProvider(map[string][]provider.SocialPostPayload{
		"BTC": {{
			Link:             "https://x.com/p/1",
			Sentiment:        json.Number("3.2"),
			CreatorFollowers: json.Number("80000"),
			Interactions24H:  json.Number("40000"),
		}},
	})

	f := newFixture([]string{"BTC"}, metadataFor("BTC"), social, ohlcv)

	first := f.orch.Run(context.Background())
	second := f.orch.Run(context.Background())

	if first.TokensDegraded != 0 || second.TokensDegraded != 0 {
		t.Fatalf("Expected clean runs, got %d and %d degraded", first.TokensDegraded, second.TokensDegraded)
	}
	// Re-fetching writes the same rows again, never duplicates them.
	if f.tokens.Len() != 1 {
		t.Errorf("Expected 1 token after two runs, got %d", f.tokens.Len())
	}
	if f.posts.Len() != 1 {
		t.Errorf("Expected 1 post after two runs, got %d", f.posts.Len())
	}
	if f.bars.Len() != 2 {
		t.Errorf("Expected 2 bars after two runs, got %d", f.bars.Len())
	}
}

func TestRun_TokenFailureIsIsolated(t *testing.T) {
	// ETH is unknown upstream; BTC stays healthy.
	f := newFixture([]string{"BTC", "ETH"}, metadataFor("BTC"), stub.NewSocialProvider(nil), stub.NewOHLCVProvider())

	summary := f.orch.Run(context.Background())

	if !summary.Degraded {
		t.Fatal("Run with a failed metadata stage must be degraded")
	}
	if summary.TokensDegraded != 1 {
		t.Fatalf("Expected 1 degraded token, got %d", summary.TokensDegraded)
	}

	var btc, eth *domain.RunOutcome
	for i := range summary.Outcomes {
		switch summary.Outcomes[i].Token {
		case "BTC":
			btc = &summary.Outcomes[i]
		case "ETH":
			eth = &summary.Outcomes[i]
		}
	}
	if btc == nil || eth == nil {
		t.Fatal("Missing outcomes")
	}

	for _, s := range btc.Stages {
		if s.Status != domain.StageSuccess {
			t.Errorf("BTC stage %s: expected success, got %s (%s)", s.Stage, s.Status, s.Err)
		}
	}

	if eth.MetadataSucceeded() {
		t.Error("ETH metadata must have failed")
	}
	for _, name := range []string{domain.StageSocialPosts, domain.StageOHLCVHourly, domain.StageOHLCVDaily} {
		s := eth.StageByName(name)
		if s == nil || s.Status != domain.StageFailed {
			t.Errorf("ETH stage %s: expected failed, got %+v", name, s)
			continue
		}
		if !strings.Contains(s.Err, "dependency") {
			t.Errorf("ETH stage %s: expected dependency cause, got %q", name, s.Err)
		}
	}

	if f.tokens.Len() != 1 {
		t.Errorf("Only BTC should be stored, got %d tokens", f.tokens.Len())
	}
}

func TestRun_SocialFailureLeavesOHLCVIntact(t *testing.T) {
	ohlcv := stub.NewOHLCVProvider().
		Add("BTC", domain.GranularityHourly, cleanBar("2025-06-01T10:00:00Z")).
		Add("BTC", domain.GranularityDaily, cleanBar("2025-05-31"))
	social := stub.NewSocialProvider(nil).
		FailWith(provider.NewError("stub", provider.KindUnauthorized, nil))

	f := newFixture([]string{"BTC"}, metadataFor("BTC"), social, ohlcv)
	summary := f.orch.Run(context.Background())

	if summary.Degraded {
		t.Error("A failed data stage degrades the token, not the whole run")
	}
	if summary.TokensDegraded != 1 {
		t.Fatalf("Expected 1 degraded token, got %d", summary.TokensDegraded)
	}

	out := &summary.Outcomes[0]
	if s := out.StageByName(domain.StageSocialPosts); s == nil || s.Status != domain.StageFailed {
		t.Fatalf("Expected failed social stage, got %+v", s)
	}
	for _, name := range []string{domain.StageOHLCVHourly, domain.StageOHLCVDaily} {
		s := out.StageByName(name)
		if s == nil || s.Status != domain.StageSuccess {
			t.Errorf("Stage %s must succeed despite the social failure, got %+v", name, s)
		}
	}

	bars, err := f.bars.GetBars(context.Background(), "BTC", domain.GranularityHourly,
		testNow.Add(-24*time.Hour), testNow)
	if err != nil || len(bars) != 1 {
		t.Fatalf("Expected 1 persisted hourly bar, got %d (err %v)", len(bars), err)
	}
	if f.bars.Len() != 2 {
		t.Errorf("Expected both granularities persisted, got %d bars", f.bars.Len())
	}
	if f.posts.Len() != 0 {
		t.Errorf("Expected no posts, got %d", f.posts.Len())
	}
}

// blockingMetadata blocks until the context is done.
type blockingMetadata struct{}

func (blockingMetadata) FetchMetadata(ctx context.Context, _ string) (*provider.MetadataPayload, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRun_TokenTimeout(t *testing.T) {
	tokens := memory.NewTokenStore()
	stages := &pipeline.StageSet{
		Metadata: blockingMetadata{},
		Social:   stub.NewSocialProvider(nil),
		OHLCV:    stub.NewOHLCVProvider(),
		Tokens:   tokens,
		Posts:    memory.NewPostStore(),
		Bars:     memory.NewOHLCVStore(),
		Filter:   pipeline.DefaultSocialFilter(),
		Retry:    pipeline.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}
	orch := New(Options{
		Stages:       stages,
		Tokens:       []string{"BTC"},
		TokenTimeout: 50 * time.Millisecond,
	})

	summary := orch.Run(context.Background())

	if !summary.Degraded {
		t.Fatal("Timed-out token must degrade the run")
	}
	meta := summary.Outcomes[0].StageByName(domain.StageMetadata)
	if meta == nil || meta.Status != domain.StageFailed {
		t.Fatalf("Expected failed metadata stage, got %+v", meta)
	}
	if !strings.Contains(meta.Err, "context deadline exceeded") {
		t.Errorf("Expected deadline cause, got %q", meta.Err)
	}
	if tokens.Len() != 0 {
		t.Errorf("No token should be stored, got %d", tokens.Len())
	}
}
