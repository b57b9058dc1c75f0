package evolve

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/hexgrow/growth"
	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/sim"
)

// stubEvaluator scores genomes with a plain function, no simulation.
type stubEvaluator struct {
	fn func(g *genetics.Genome) (EvalResult, error)
}

func (e *stubEvaluator) Evaluate(g *genetics.Genome) (EvalResult, error) { return e.fn(g) }

// idFitness scores every genome by its ID, so outcomes are fully
// deterministic regardless of genetic content.
func idFitness() *stubEvaluator {
	return &stubEvaluator{fn: func(g *genetics.Genome) (EvalResult, error) {
		return EvalResult{Fitness: float64(g.Id), Steps: g.Id, Reason: sim.MaxStepsReached}, nil
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLayout() neural.GenomeConfig {
	return neural.GenomeConfig{BaseInputs: 3, BaseOutputs: 2}
}

func newTestPopulation(t *testing.T, ev Evaluator, size int) *Population {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	pop, err := NewPopulation(testLayout(), nil, ev, Config{
		PopSize: size,
		Workers: 2,
		Log:     discardLogger(),
	}, rng)
	if err != nil {
		t.Fatalf("NewPopulation: %v", err)
	}
	t.Cleanup(pop.Close)
	return pop
}

func TestNewPopulationSeedsMembers(t *testing.T) {
	pop := newTestPopulation(t, idFitness(), 20)

	members := pop.Members()
	if len(members) != 20 {
		t.Fatalf("population size = %d, want 20", len(members))
	}
	seen := map[int]bool{}
	for i, ind := range members {
		if ind.Genome == nil {
			t.Fatalf("member %d has no genome", i)
		}
		if seen[ind.ID] {
			t.Fatalf("duplicate member ID %d", ind.ID)
		}
		seen[ind.ID] = true
		// Full seeds connect every input to every output.
		if got := len(ind.Genome.Genes); got != 3*2 {
			t.Errorf("member %d has %d genes, want 6", i, got)
		}
	}
}

func TestNewPopulationValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := NewPopulation(neural.GenomeConfig{}, nil, idFitness(), Config{PopSize: 4}, rng); err == nil {
		t.Error("empty layout accepted")
	}
	if _, err := NewPopulation(testLayout(), nil, nil, Config{PopSize: 4}, rng); err == nil {
		t.Error("nil evaluator accepted")
	}
	if _, err := NewPopulation(testLayout(), nil, idFitness(), Config{PopSize: 4}, nil); err == nil {
		t.Error("nil random source accepted")
	}
}

func TestRunGenerationStats(t *testing.T) {
	pop := newTestPopulation(t, idFitness(), 12)

	res, err := pop.RunGeneration()
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if res.Generation != 1 {
		t.Errorf("generation = %d, want 1", res.Generation)
	}
	if res.BestFitness != 12 {
		t.Errorf("best fitness = %v, want 12", res.BestFitness)
	}
	if res.MeanFitness != 6.5 {
		t.Errorf("mean fitness = %v, want 6.5", res.MeanFitness)
	}
	if res.BestEverFitness != 12 {
		t.Errorf("best ever = %v, want 12", res.BestEverFitness)
	}
	// Seed genomes share one topology and weights within [-1,1], well
	// inside the compatibility threshold.
	if res.SpeciesCount != 1 {
		t.Errorf("species count = %d, want 1", res.SpeciesCount)
	}
	if res.Failures != 0 || res.Solved {
		t.Errorf("failures = %d solved = %v, want 0 and false", res.Failures, res.Solved)
	}
	if res.Best == nil || res.Best.ID != 12 {
		t.Fatalf("champion = %+v, want member 12", res.Best)
	}

	best := pop.BestEver()
	if best == nil || best.Fitness != 12 {
		t.Fatalf("BestEver = %+v, want fitness 12", best)
	}
	if best.Genome == res.Best.Genome {
		t.Error("BestEver shares its genome with the live population")
	}
}

func TestRunGenerationCountsFailures(t *testing.T) {
	ev := &stubEvaluator{fn: func(g *genetics.Genome) (EvalResult, error) {
		if g.Id%2 == 0 {
			return EvalResult{}, fmt.Errorf("boom")
		}
		return EvalResult{Fitness: float64(g.Id), Reason: sim.InactivityTimeout}, nil
	}}
	pop := newTestPopulation(t, ev, 12)

	res, err := pop.RunGeneration()
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if res.Failures != 6 {
		t.Errorf("failures = %d, want 6", res.Failures)
	}
	if res.BestFitness != 11 {
		t.Errorf("best fitness = %v, want 11", res.BestFitness)
	}
	if res.MeanFitness != 3 {
		t.Errorf("mean fitness = %v, want 3", res.MeanFitness)
	}
	for _, ind := range pop.Members() {
		if ind.Failed && ind.Fitness != 0 {
			t.Errorf("failed member %d kept fitness %v", ind.ID, ind.Fitness)
		}
	}
}

func TestRunGenerationSolved(t *testing.T) {
	ev := &stubEvaluator{fn: func(g *genetics.Genome) (EvalResult, error) {
		reason := sim.MaxStepsReached
		if g.Id == 5 {
			reason = sim.TargetFitnessReached
		}
		return EvalResult{Fitness: 1, Reason: reason}, nil
	}}
	pop := newTestPopulation(t, ev, 8)

	res, err := pop.RunGeneration()
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if !res.Solved {
		t.Error("target-reaching run not reported as solved")
	}
}

func TestReproduce(t *testing.T) {
	pop := newTestPopulation(t, idFitness(), 12)

	if err := pop.Reproduce(); err == nil {
		t.Fatal("Reproduce before any generation succeeded")
	}

	res, err := pop.RunGeneration()
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	champWeights := make([]float64, len(res.Best.Genome.Genes))
	for i, gene := range res.Best.Genome.Genes {
		champWeights[i] = gene.Link.ConnectionWeight
	}

	if err := pop.Reproduce(); err != nil {
		t.Fatalf("Reproduce: %v", err)
	}

	members := pop.Members()
	if len(members) != 12 {
		t.Fatalf("next generation size = %d, want 12", len(members))
	}
	seen := map[int]bool{}
	for _, ind := range members {
		if ind.ID <= 12 {
			t.Errorf("member reuses ID %d from the previous generation", ind.ID)
		}
		if seen[ind.ID] {
			t.Errorf("duplicate ID %d", ind.ID)
		}
		seen[ind.ID] = true
		if _, err := ind.Genome.Genesis(ind.ID); err != nil {
			t.Errorf("child %d does not build a network: %v", ind.ID, err)
		}
	}

	// The single species holds everyone, so its champion is copied
	// unchanged to the front of the next generation.
	first := members[0]
	if got, want := len(first.Genome.Genes), len(champWeights); got != want {
		t.Fatalf("champion copy has %d genes, want %d", got, want)
	}
	for i, gene := range first.Genome.Genes {
		if gene.Link.ConnectionWeight != champWeights[i] {
			t.Fatalf("champion copy weight %d = %v, want %v", i, gene.Link.ConnectionWeight, champWeights[i])
		}
	}
}

func TestSecondGeneration(t *testing.T) {
	pop := newTestPopulation(t, idFitness(), 12)

	if _, err := pop.RunGeneration(); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if err := pop.Reproduce(); err != nil {
		t.Fatalf("Reproduce: %v", err)
	}
	res, err := pop.RunGeneration()
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if res.Generation != 2 {
		t.Errorf("generation = %d, want 2", res.Generation)
	}
	// New members carry IDs 13..24, so the ID-scoring stub must improve.
	if res.BestFitness != 24 {
		t.Errorf("best fitness = %v, want 24", res.BestFitness)
	}
	if res.BestEverFitness != 24 {
		t.Errorf("best ever = %v, want 24", res.BestEverFitness)
	}
}

func TestEvalPoolMatchesSerial(t *testing.T) {
	layout := testLayout()
	rng := rand.New(rand.NewSource(3))
	build := func() []*Individual {
		members := make([]*Individual, 40)
		for i := range members {
			id := i + 1
			members[i] = &Individual{ID: id, Genome: neural.NewSeedGenome(id, layout, rng)}
		}
		return members
	}

	serial := build()
	parallel := build()

	sp := newEvalPool(idFitness(), 1)
	sp.evaluateAll(serial)

	pp := newEvalPool(idFitness(), 4)
	defer pp.stop()
	pp.evaluateAll(parallel)

	for i := range serial {
		if serial[i].Fitness != parallel[i].Fitness {
			t.Errorf("member %d: serial %v vs parallel %v", i, serial[i].Fitness, parallel[i].Fitness)
		}
		if serial[i].Reason != parallel[i].Reason {
			t.Errorf("member %d: reasons differ (%v vs %v)", i, serial[i].Reason, parallel[i].Reason)
		}
	}
}

func TestSimEvaluatorRuns(t *testing.T) {
	layout := neural.GenomeConfig{
		BaseInputs:  growth.BaseInputCount,
		BaseOutputs: growth.BaseOutputCount,
	}
	seeds := growth.CenterSeeds(5, 5)
	ev := &SimEvaluator{
		Layout: layout,
		NewExperiment: func() sim.Experiment {
			return growth.NewPatternExperiment(seeds, seeds)
		},
		Options: sim.Options{Width: 5, Height: 5, MaxSteps: 8},
	}

	g := neural.NewSeedGenome(1, layout, rand.New(rand.NewSource(7)))
	res, err := ev.Evaluate(g)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Steps < 1 {
		t.Errorf("run took %d steps, want at least 1", res.Steps)
	}
	if res.Reason == sim.ReasonNone {
		t.Error("run reported no termination reason")
	}
	if math.IsNaN(res.Fitness) || math.IsInf(res.Fitness, 0) {
		t.Errorf("fitness = %v, want finite", res.Fitness)
	}
}

func TestEvolutionWithSimulations(t *testing.T) {
	layout := neural.GenomeConfig{
		BaseInputs:  growth.BaseInputCount,
		BaseOutputs: growth.BaseOutputCount,
	}
	seeds := growth.CenterSeeds(5, 5)
	ev := &SimEvaluator{
		Layout: layout,
		NewExperiment: func() sim.Experiment {
			return growth.NewPatternExperiment(seeds, seeds)
		},
		Options: sim.Options{Width: 5, Height: 5, MaxSteps: 8},
	}
	rng := rand.New(rand.NewSource(11))
	pop, err := NewPopulation(layout, nil, ev, Config{
		PopSize: 10,
		Workers: 2,
		Log:     discardLogger(),
	}, rng)
	if err != nil {
		t.Fatalf("NewPopulation: %v", err)
	}
	defer pop.Close()

	for gen := 0; gen < 3; gen++ {
		res, err := pop.RunGeneration()
		if err != nil {
			t.Fatalf("generation %d: %v", gen+1, err)
		}
		t.Logf("generation %d: best=%.2f mean=%.2f species=%d",
			res.Generation, res.BestFitness, res.MeanFitness, res.SpeciesCount)
		if err := pop.Reproduce(); err != nil {
			t.Fatalf("reproduce %d: %v", gen+1, err)
		}
		if got := len(pop.Members()); got != 10 {
			t.Fatalf("generation %d size = %d, want 10", gen+1, got)
		}
	}
	if pop.BestEver() == nil {
		t.Fatal("no best individual recorded")
	}
}

func BenchmarkRunGeneration(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pop, err := NewPopulation(testLayout(), nil, idFitness(), Config{
		PopSize: 50,
		Log:     discardLogger(),
	}, rng)
	if err != nil {
		b.Fatalf("NewPopulation: %v", err)
	}
	defer pop.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pop.RunGeneration(); err != nil {
			b.Fatalf("RunGeneration: %v", err)
		}
		if err := pop.Reproduce(); err != nil {
			b.Fatalf("Reproduce: %v", err)
		}
	}
}
