package telemetry

import (
	"time"

	"github.com/pthm-cable/hexgrow/sim"
)

// Collector accumulates run results within a generation and produces
// GenerationStats.
type Collector struct {
	fitnesses []float64

	// Best run tracking (failed runs never become the best)
	best      float64
	bestCells int
	bestSteps int
	haveBest  bool

	// Termination tallies for the current generation
	maxSteps   int
	inactivity int
	target     int
	repeat     int
	failures   int
}

// NewCollector creates an empty generation collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record adds one run's outcome. Failed runs arrive with ReasonNone and
// count toward the failure tally; their fitness still enters the mean so
// the aggregate matches what the selection loop saw.
func (c *Collector) Record(fitness float64, steps, cells int, reason sim.Reason) {
	c.fitnesses = append(c.fitnesses, fitness)

	switch reason {
	case sim.MaxStepsReached:
		c.maxSteps++
	case sim.InactivityTimeout:
		c.inactivity++
	case sim.TargetFitnessReached:
		c.target++
	case sim.StateRepeatDetected:
		c.repeat++
	default:
		c.failures++
		return
	}

	if !c.haveBest || fitness > c.best {
		c.best = fitness
		c.bestCells = cells
		c.bestSteps = steps
		c.haveBest = true
	}
}

// Runs returns the number of results recorded since the last flush.
func (c *Collector) Runs() int {
	return len(c.fitnesses)
}

// Flush produces a GenerationStats and resets the collector for the next
// generation. The caller provides the generation number, the species count
// after speciation, and the wall time spent evaluating.
func (c *Collector) Flush(generation, speciesCount int, evalTime time.Duration) GenerationStats {
	mean, std := FitnessSummary(c.fitnesses)

	stats := GenerationStats{
		Generation: generation,

		BestFitness: c.best,
		MeanFitness: mean,
		StdFitness:  std,

		SpeciesCount: speciesCount,

		BestCells: c.bestCells,
		BestSteps: c.bestSteps,

		MaxStepsRuns:   c.maxSteps,
		InactivityRuns: c.inactivity,
		TargetRuns:     c.target,
		RepeatRuns:     c.repeat,
		FailedRuns:     c.failures,

		EvalSeconds: evalTime.Seconds(),
	}

	// Reset for next generation
	c.fitnesses = c.fitnesses[:0]
	c.best = 0
	c.bestCells = 0
	c.bestSteps = 0
	c.haveBest = false
	c.maxSteps = 0
	c.inactivity = 0
	c.target = 0
	c.repeat = 0
	c.failures = 0

	return stats
}
