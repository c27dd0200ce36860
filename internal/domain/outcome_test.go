package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFold_CountsAndDegradation(t *testing.T) {
	outcomes := []RunOutcome{
		{
			Token: "BTC",
			Stages: []StageResult{
				{Stage: StageMetadata, Status: StageSuccess, RecordsWritten: 1},
				{Stage: StageSocialPosts, Status: StageSuccess, RecordsWritten: 2, RecordsDropped: 1},
				{Stage: StageOHLCVHourly, Status: StageSuccess, RecordsWritten: 24, QualityWarnings: 1},
			},
		},
		{
			Token: "ETH",
			Stages: []StageResult{
				{Stage: StageMetadata, Status: StageFailed, Err: "boom"},
				{Stage: StageSocialPosts, Status: StageFailed, Err: "dependency metadata failed"},
			},
		},
	}

	s := Fold(outcomes, 3*time.Second)

	if s.TokensTotal != 2 || s.TokensDegraded != 1 {
		t.Errorf("Expected 2 tokens, 1 degraded, got %d and %d", s.TokensTotal, s.TokensDegraded)
	}
	if s.RecordsWritten != 27 || s.RecordsDropped != 1 || s.QualityWarnings != 1 {
		t.Errorf("Counts mismatch: written=%d dropped=%d warnings=%d",
			s.RecordsWritten, s.RecordsDropped, s.QualityWarnings)
	}
	if !s.Degraded {
		t.Error("Failed metadata for ETH must degrade the run")
	}
}

func TestFold_PartialStageDegradesTokenNotRun(t *testing.T) {
	outcomes := []RunOutcome{
		{
			Token: "BTC",
			Stages: []StageResult{
				{Stage: StageMetadata, Status: StageSuccess, RecordsWritten: 1},
				{Stage: StageSocialPosts, Status: StagePartial, RecordsWritten: 1, RecordsDropped: 1},
			},
		},
	}

	s := Fold(outcomes, time.Second)
	if s.TokensDegraded != 1 {
		t.Errorf("Partial stage must count the token degraded, got %d", s.TokensDegraded)
	}
	if s.Degraded {
		t.Error("Run is only degraded when metadata fails, not on partial side stages")
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestViolatesOrdering(t *testing.T) {
	clean := OHLCVBar{Open: dec("100"), High: dec("110"), Low: dec("95"), Close: dec("105")}
	if clean.ViolatesOrdering() {
		t.Error("Clean bar flagged")
	}

	inverted := OHLCVBar{Open: dec("92"), High: dec("90"), Low: dec("95"), Close: dec("93")}
	if !inverted.ViolatesOrdering() {
		t.Error("High below low not flagged")
	}

	openAbove := OHLCVBar{Open: dec("120"), High: dec("110"), Low: dec("95"), Close: dec("105")}
	if !openAbove.ViolatesOrdering() {
		t.Error("Open above high not flagged")
	}

	missing := OHLCVBar{High: dec("110"), Low: dec("95")}
	if missing.ViolatesOrdering() {
		t.Error("Bar with missing prices cannot be checked")
	}
}
