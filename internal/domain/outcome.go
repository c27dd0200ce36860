package domain

import "time"

// StageStatus classifies the terminal state of a pipeline stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StagePartial StageStatus = "partial"
	StageFailed  StageStatus = "failed"
)

// StageResult is the outcome of one stage for one token.
// Each stage builds its own result and returns it; results are folded by the
// runner and orchestrator, never mutated concurrently.
type StageResult struct {
	Stage           string      // stage name
	Status          StageStatus // success | partial | failed
	RecordsWritten  int         // records accepted by the store
	RecordsDropped  int         // records dropped during normalization or storage
	QualityWarnings int         // suspect OHLCV bars persisted
	Attempts        int         // fetch attempts used (>=1 when the fetch ran)
	Err             string      // terminal error message, empty on success
}

// RunOutcome aggregates the stage results for one token.
type RunOutcome struct {
	Token    string
	Stages   []StageResult
	Duration time.Duration
}

// StageByName returns the result for a named stage, or nil.
func (o *RunOutcome) StageByName(name string) *StageResult {
	for i := range o.Stages {
		if o.Stages[i].Stage == name {
			return &o.Stages[i]
		}
	}
	return nil
}

// MetadataSucceeded reports whether the metadata stage completed successfully.
func (o *RunOutcome) MetadataSucceeded() bool {
	for _, s := range o.Stages {
		if s.Stage == StageMetadata {
			return s.Status != StageFailed
		}
	}
	return false
}

// Well-known stage names for the concrete pipeline.
const (
	StageMetadata    = "metadata"
	StageSocialPosts = "social-posts"
	StageOHLCVHourly = "ohlcv-hourly"
	StageOHLCVDaily  = "ohlcv-daily"
)

// RunSummary is the top-level report produced by the orchestrator.
type RunSummary struct {
	Outcomes        []RunOutcome
	TokensTotal     int
	TokensDegraded  int // tokens with at least one failed or partial stage
	RecordsWritten  int
	RecordsDropped  int
	QualityWarnings int
	Degraded        bool // true unless metadata succeeded for every token
	Duration        time.Duration
}

// Fold builds a RunSummary from per-token outcomes.
func Fold(outcomes []RunOutcome, duration time.Duration) *RunSummary {
	summary := &RunSummary{
		Outcomes:    outcomes,
		TokensTotal: len(outcomes),
		Duration:    duration,
	}

	for i := range outcomes {
		o := &outcomes[i]
		degraded := false
		for _, s := range o.Stages {
			summary.RecordsWritten += s.RecordsWritten
			summary.RecordsDropped += s.RecordsDropped
			summary.QualityWarnings += s.QualityWarnings
			if s.Status != StageSuccess {
				degraded = true
			}
		}
		if degraded {
			summary.TokensDegraded++
		}
		if !o.MetadataSucceeded() {
			summary.Degraded = true
		}
	}

	return summary
}
