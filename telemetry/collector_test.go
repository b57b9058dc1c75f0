package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/hexgrow/sim"
)

func TestCollectorFlush(t *testing.T) {
	c := NewCollector()
	c.Record(2.0, 5, 4, sim.MaxStepsReached)
	c.Record(6.0, 3, 7, sim.InactivityTimeout)
	c.Record(4.0, 8, 2, sim.TargetFitnessReached)
	c.Record(0, 0, 0, sim.ReasonNone) // failed run

	if c.Runs() != 4 {
		t.Fatalf("Runs = %d, want 4", c.Runs())
	}

	stats := c.Flush(3, 2, 1500*time.Millisecond)

	if stats.Generation != 3 {
		t.Errorf("Generation = %d, want 3", stats.Generation)
	}
	if stats.BestFitness != 6.0 {
		t.Errorf("BestFitness = %v, want 6", stats.BestFitness)
	}
	if stats.BestCells != 7 || stats.BestSteps != 3 {
		t.Errorf("best run = %d cells / %d steps, want 7/3", stats.BestCells, stats.BestSteps)
	}
	if math.Abs(stats.MeanFitness-3.0) > 1e-12 {
		t.Errorf("MeanFitness = %v, want 3", stats.MeanFitness)
	}
	if stats.SpeciesCount != 2 {
		t.Errorf("SpeciesCount = %d, want 2", stats.SpeciesCount)
	}
	if stats.MaxStepsRuns != 1 || stats.InactivityRuns != 1 || stats.TargetRuns != 1 || stats.RepeatRuns != 0 {
		t.Errorf("reason tallies = %d/%d/%d/%d, want 1/1/1/0",
			stats.MaxStepsRuns, stats.InactivityRuns, stats.TargetRuns, stats.RepeatRuns)
	}
	if stats.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", stats.FailedRuns)
	}
	if stats.EvalSeconds != 1.5 {
		t.Errorf("EvalSeconds = %v, want 1.5", stats.EvalSeconds)
	}
}

func TestCollectorResetsAfterFlush(t *testing.T) {
	c := NewCollector()
	c.Record(5.0, 2, 3, sim.MaxStepsReached)
	c.Flush(1, 1, time.Second)

	if c.Runs() != 0 {
		t.Fatalf("Runs after flush = %d, want 0", c.Runs())
	}

	stats := c.Flush(2, 0, 0)
	if stats.BestFitness != 0 || stats.MeanFitness != 0 || stats.MaxStepsRuns != 0 {
		t.Errorf("flush after reset produced %+v, want zeroed stats", stats)
	}
}

func TestCollectorBestIgnoresFailures(t *testing.T) {
	c := NewCollector()
	c.Record(5.0, 4, 6, sim.MaxStepsReached)
	c.Record(9.0, 1, 1, sim.ReasonNone) // failed run, fitness must not win

	stats := c.Flush(1, 1, time.Second)
	if stats.BestFitness != 5.0 {
		t.Errorf("BestFitness = %v, want 5 (failed run excluded)", stats.BestFitness)
	}
	if stats.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", stats.FailedRuns)
	}
	// The failed run's fitness still enters the mean.
	if stats.MeanFitness != 7.0 {
		t.Errorf("MeanFitness = %v, want 7", stats.MeanFitness)
	}
}
