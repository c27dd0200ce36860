package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-data-pipeline/internal/domain"
	"crypto-data-pipeline/internal/observability"
)

// Runner executes a stage graph for one token. Stages with satisfied
// dependencies run concurrently within a wave; a stage whose dependency
// terminally failed is marked failed without executing. A failed sibling
// never aborts the rest of the wave.
type Runner struct {
	stages []Stage
	waves  [][]int // stage indexes grouped by dependency depth
	logger zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Stages []Stage
	Logger zerolog.Logger
}

// NewRunner validates the stage graph and precomputes the wave schedule.
// Duplicate names, unknown dependencies and cycles are construction errors.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	byName := make(map[string]int, len(opts.Stages))
	for i, st := range opts.Stages {
		if st.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if st.Run == nil {
			return nil, fmt.Errorf("stage %s has no run func", st.Name)
		}
		if _, exists := byName[st.Name]; exists {
			return nil, fmt.Errorf("duplicate stage name %s", st.Name)
		}
		byName[st.Name] = i
	}
	for _, st := range opts.Stages {
		for _, dep := range st.DependsOn {
			if _, exists := byName[dep]; !exists {
				return nil, fmt.Errorf("stage %s depends on unknown stage %s", st.Name, dep)
			}
		}
	}

	waves, err := scheduleWaves(opts.Stages, byName)
	if err != nil {
		return nil, err
	}

	return &Runner{
		stages: opts.Stages,
		waves:  waves,
		logger: opts.Logger,
	}, nil
}

// scheduleWaves groups stages by dependency depth using Kahn's algorithm.
// Returns an error if the graph has a cycle.
func scheduleWaves(stages []Stage, byName map[string]int) ([][]int, error) {
	indegree := make([]int, len(stages))
	dependents := make([][]int, len(stages))
	for i, st := range stages {
		indegree[i] = len(st.DependsOn)
		for _, dep := range st.DependsOn {
			j := byName[dep]
			dependents[j] = append(dependents[j], i)
		}
	}

	var waves [][]int
	var ready []int
	for i := range stages {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	scheduled := 0
	for len(ready) > 0 {
		wave := ready
		ready = nil
		waves = append(waves, wave)
		scheduled += len(wave)

		for _, i := range wave {
			for _, j := range dependents[i] {
				indegree[j]--
				if indegree[j] == 0 {
					ready = append(ready, j)
				}
			}
		}
	}

	if scheduled != len(stages) {
		return nil, fmt.Errorf("stage graph has a cycle")
	}
	return waves, nil
}

// Run executes all stages and returns one result per stage, in declaration
// order. Run itself never returns an error: every failure is a stage result.
func (r *Runner) Run(ctx context.Context) []domain.StageResult {
	results := make([]domain.StageResult, len(r.stages))
	failed := make(map[string]bool)

	for _, wave := range r.waves {
		var wg sync.WaitGroup
		for _, idx := range wave {
			st := r.stages[idx]

			if dep := failedDependency(st, failed); dep != "" {
				results[idx] = domain.StageResult{
					Stage:  st.Name,
					Status: domain.StageFailed,
					Err:    fmt.Sprintf("dependency %s failed", dep),
				}
				r.logger.Warn().Str("stage", st.Name).Str("dependency", dep).
					Msg("stage skipped: dependency failed")
				continue
			}

			wg.Add(1)
			go func(idx int, st Stage) {
				defer wg.Done()
				start := time.Now()
				res := st.Run(ctx)
				res.Stage = st.Name
				results[idx] = res

				observability.RecordStageRun(st.Name, string(res.Status), time.Since(start).Seconds())
				observability.RecordStageRetries(st.Name, res.Attempts-1)
				observability.RecordQualityWarnings(st.Name, res.QualityWarnings)

				evt := r.logger.Info()
				if res.Status == domain.StageFailed {
					evt = r.logger.Error()
				}
				evt.Str("stage", st.Name).
					Str("status", string(res.Status)).
					Int("written", res.RecordsWritten).
					Int("dropped", res.RecordsDropped).
					Int("attempts", res.Attempts).
					Str("error", res.Err).
					Msg("stage finished")
			}(idx, st)
		}
		wg.Wait()

		// Wave boundaries are the only place failure state is written, so
		// stage goroutines never share it.
		for _, idx := range wave {
			if results[idx].Status == domain.StageFailed {
				failed[results[idx].Stage] = true
			}
		}
	}

	return results
}

// failedDependency returns the name of the first terminally-failed dependency,
// or empty string.
func failedDependency(st Stage, failed map[string]bool) string {
	for _, dep := range st.DependsOn {
		if failed[dep] {
			return dep
		}
	}
	return ""
}
