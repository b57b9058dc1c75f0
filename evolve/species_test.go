package evolve

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/hexgrow/neural"
)

func TestSpeciateGroupsByCompatibility(t *testing.T) {
	layout := testLayout()
	rng := rand.New(rand.NewSource(5))
	opts := neural.DefaultOptions()
	sm := NewSpeciesManager(opts)

	base := neural.NewSeedGenome(1, layout, rng)
	near := neural.NewSeedGenome(2, layout, rng)

	// Shift every weight by six: the weight term alone (0.4 * 6) clears
	// the 2.3 compatibility threshold.
	far, err := neural.Clone(base, 3)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	for _, gene := range far.Genes {
		gene.Link.ConnectionWeight += 6
	}

	pop := []*Individual{
		{ID: 1, Genome: base},
		{ID: 2, Genome: near},
		{ID: 3, Genome: far},
	}
	sm.Speciate(pop)

	if got := len(sm.Species); got != 2 {
		t.Fatalf("species count = %d, want 2", got)
	}
	if pop[0].SpeciesID != pop[1].SpeciesID {
		t.Errorf("similar genomes split: %d vs %d", pop[0].SpeciesID, pop[1].SpeciesID)
	}
	if pop[2].SpeciesID == pop[0].SpeciesID {
		t.Error("distant genome joined the near species")
	}

	// Respeciating the same population keeps the grouping stable.
	sm.Speciate(pop)
	if got := len(sm.Species); got != 2 {
		t.Errorf("species count after respeciation = %d, want 2", got)
	}
}

func TestAllocateOffspringProportional(t *testing.T) {
	sm := NewSpeciesManager(neural.DefaultOptions())
	sm.Species = []*Species{
		{ID: 1, Members: []*Individual{{Fitness: 5}}},
		{ID: 2, Members: []*Individual{{Fitness: 3}}},
		{ID: 3, Members: []*Individual{{Fitness: 1}}},
	}

	counts := sm.AllocateOffspring(7)
	if counts[1] != 5 || counts[2] != 2 || counts[3] != 0 {
		t.Errorf("counts = %v, want map[1:5 2:2 3:0]", counts)
	}
	sum := 0
	for _, c := range counts {
		sum += c
	}
	if sum != 7 {
		t.Errorf("allocated %d offspring, want 7", sum)
	}
}

func TestAllocateOffspringNegativeFitness(t *testing.T) {
	sm := NewSpeciesManager(neural.DefaultOptions())
	sm.Species = []*Species{
		{ID: 1, Members: []*Individual{{Fitness: -1}, {Fitness: -3}}},
		{ID: 2, Members: []*Individual{{Fitness: -5}}},
	}

	counts := sm.AllocateOffspring(10)
	sum := 0
	for _, c := range counts {
		sum += c
	}
	if sum != 10 {
		t.Fatalf("allocated %d offspring, want 10", sum)
	}
	if counts[1] <= counts[2] {
		t.Errorf("fitter species got %d, weaker got %d", counts[1], counts[2])
	}
}

func TestAllocateOffspringEvenSplitOnTies(t *testing.T) {
	sm := NewSpeciesManager(neural.DefaultOptions())
	sm.Species = []*Species{
		{ID: 1, Members: []*Individual{{Fitness: 2}, {Fitness: 2}}},
		{ID: 2, Members: []*Individual{{Fitness: 2}}},
	}

	counts := sm.AllocateOffspring(5)
	if counts[1] != 3 || counts[2] != 2 {
		t.Errorf("counts = %v, want map[1:3 2:2]", counts)
	}
}

func TestEndGenerationRemovesStale(t *testing.T) {
	opts := neural.DefaultOptions()
	sm := NewSpeciesManager(opts)
	sm.Species = []*Species{
		{ID: 1, BestFitness: 10, Staleness: opts.DropOffAge},
		{ID: 2, BestFitness: 20, Staleness: 0},
	}

	sm.EndGeneration()
	if len(sm.Species) != 1 || sm.Species[0].ID != 2 {
		t.Fatalf("surviving species = %+v, want only ID 2", sm.Species)
	}
	if sm.Species[0].Age != 1 || sm.Species[0].Staleness != 1 {
		t.Errorf("age/staleness = %d/%d, want 1/1", sm.Species[0].Age, sm.Species[0].Staleness)
	}

	// The best species survives stagnation.
	sm.Species[0].Staleness = opts.DropOffAge * 3
	sm.EndGeneration()
	if len(sm.Species) != 1 {
		t.Error("stagnant best species was removed")
	}
}

func TestObserveResetsStaleness(t *testing.T) {
	sm := NewSpeciesManager(neural.DefaultOptions())
	sp := &Species{ID: 1, BestFitness: 5, Staleness: 7,
		Members: []*Individual{{Fitness: 6}}}
	sm.Species = []*Species{sp}

	sm.Observe()
	if sp.BestFitness != 6 || sp.Staleness != 0 {
		t.Errorf("best/staleness = %v/%d, want 6/0", sp.BestFitness, sp.Staleness)
	}

	// No improvement leaves staleness alone.
	sp.Staleness = 3
	sm.Observe()
	if sp.Staleness != 3 {
		t.Errorf("staleness = %d, want 3", sp.Staleness)
	}
}

func TestBreedingPoolSize(t *testing.T) {
	tests := []struct {
		n      int
		thresh float64
		want   int
	}{
		{1, 0.2, 1},
		{4, 0.2, 1},
		{5, 0.2, 1},
		{6, 0.2, 2},
		{10, 0.2, 2},
		{10, 0.5, 5},
		{3, 1.0, 3},
	}
	for _, tt := range tests {
		if got := breedingPoolSize(tt.n, tt.thresh); got != tt.want {
			t.Errorf("breedingPoolSize(%d, %v) = %d, want %d", tt.n, tt.thresh, got, tt.want)
		}
	}
}
