// Package telemetry aggregates per-run results into generation statistics
// and writes them to CSV for offline analysis.
package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one evolution generation.
type GenerationStats struct {
	Generation int `csv:"generation"`

	// Fitness distribution across the population
	BestFitness float64 `csv:"best_fitness"`
	MeanFitness float64 `csv:"mean_fitness"`
	StdFitness  float64 `csv:"std_fitness"`

	SpeciesCount int `csv:"species"`

	// Shape of the best run
	BestCells int `csv:"best_cells"`
	BestSteps int `csv:"best_steps"`

	// Termination reason tallies
	MaxStepsRuns   int `csv:"max_steps_runs"`
	InactivityRuns int `csv:"inactivity_runs"`
	TargetRuns     int `csv:"target_runs"`
	RepeatRuns     int `csv:"repeat_runs"`
	FailedRuns     int `csv:"failed_runs"`

	EvalSeconds float64 `csv:"eval_sec"`
}

// FitnessSummary calculates mean and standard deviation of a fitness
// sample. Returns zeros for an empty sample and zero deviation for a
// single value.
func FitnessSummary(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean = stat.Mean(values, nil)
	if len(values) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(values, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Float64("best_fitness", s.BestFitness),
		slog.Float64("mean_fitness", s.MeanFitness),
		slog.Float64("std_fitness", s.StdFitness),
		slog.Int("species", s.SpeciesCount),
		slog.Int("best_cells", s.BestCells),
		slog.Int("best_steps", s.BestSteps),
		slog.Int("max_steps_runs", s.MaxStepsRuns),
		slog.Int("inactivity_runs", s.InactivityRuns),
		slog.Int("target_runs", s.TargetRuns),
		slog.Int("repeat_runs", s.RepeatRuns),
		slog.Int("failed_runs", s.FailedRuns),
		slog.Float64("eval_sec", s.EvalSeconds),
	)
}
