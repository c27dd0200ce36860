package pipeline

import (
	"context"

	"crypto-data-pipeline/internal/domain"
)

// StageFunc executes one stage and reports its result. A StageFunc never
// panics the run: all failures are folded into the result.
type StageFunc func(ctx context.Context) domain.StageResult

// Stage is a named unit of work in a per-token run. DependsOn lists stages
// that must not terminally fail before this one may execute.
type Stage struct {
	Name      string
	DependsOn []string
	Run       StageFunc
}
