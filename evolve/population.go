// Package evolve runs generational neuroevolution over growth genomes: it
// seeds a population, scores every member by running its growth
// simulation, partitions the population into species, and breeds the next
// generation with crossover and mutation. Evaluations run in parallel;
// everything that touches the shared random source stays on the caller's
// goroutine, so a fixed seed reproduces a whole run.
package evolve

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/sim"
)

// championMinSpeciesSize is the species size at which the champion is
// copied unchanged into the next generation.
const championMinSpeciesSize = 5

// Individual is one population member and its latest evaluation.
type Individual struct {
	ID        int
	Genome    *genetics.Genome
	Fitness   float64
	Steps     int
	Cells     int
	Reason    sim.Reason
	SpeciesID int
	Failed    bool
}

// Config tunes a population beyond the NEAT options.
type Config struct {
	// PopSize overrides the NEAT options' population size when positive.
	PopSize int

	// SeedConnectionProb is the fraction of input-output pairs connected
	// in initial genomes. Values outside (0,1) seed fully connected.
	SeedConnectionProb float64

	// Workers caps the parallel evaluators. Zero uses GOMAXPROCS.
	Workers int

	// Log receives structured output. Nil uses slog.Default.
	Log *slog.Logger
}

// GenerationResult summarizes one evaluated generation.
type GenerationResult struct {
	Generation      int
	BestFitness     float64
	MeanFitness     float64
	BestEverFitness float64
	SpeciesCount    int
	Failures        int
	// Solved reports whether any member's run hit its fitness target.
	Solved bool
	// Best is this generation's champion. It remains owned by the
	// population; clone its genome before mutating it.
	Best *Individual
}

// Population is a generational pool of genomes under selection.
type Population struct {
	layout  neural.GenomeConfig
	opts    *neat.Options
	cfg     Config
	rng     *rand.Rand
	idGen   *neural.IDGenerator
	species *SpeciesManager
	pool    *evalPool

	members    []*Individual
	generation int
	bestEver   *Individual

	log *slog.Logger
}

// NewPopulation seeds a population of minimal genomes for the layout.
// A nil opts falls back to the default NEAT options.
func NewPopulation(layout neural.GenomeConfig, opts *neat.Options, ev Evaluator, cfg Config, rng *rand.Rand) (*Population, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("evolve: nil evaluator")
	}
	if rng == nil {
		return nil, fmt.Errorf("evolve: nil random source")
	}
	if opts == nil {
		opts = neural.DefaultOptions()
	}
	size := cfg.PopSize
	if size <= 0 {
		size = opts.PopSize
	}
	if size <= 0 {
		return nil, fmt.Errorf("evolve: population size not set")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	idGen := neural.NewIDGenerator(layout)
	members := make([]*Individual, size)
	for i := range members {
		id := idGen.NextID()
		var g *genetics.Genome
		if cfg.SeedConnectionProb > 0 && cfg.SeedConnectionProb < 1 {
			g = neural.NewSparseSeedGenome(id, layout, cfg.SeedConnectionProb, rng)
		} else {
			g = neural.NewSeedGenome(id, layout, rng)
		}
		members[i] = &Individual{ID: id, Genome: g}
	}

	return &Population{
		layout:  layout,
		opts:    opts,
		cfg:     cfg,
		rng:     rng,
		idGen:   idGen,
		species: NewSpeciesManager(opts),
		pool:    newEvalPool(ev, cfg.Workers),
		members: members,
		log:     cfg.Log,
	}, nil
}

// Members returns the current generation. Callers must treat the slice
// and the individuals as read-only.
func (p *Population) Members() []*Individual { return p.members }

// Generation returns the number of evaluated generations.
func (p *Population) Generation() int { return p.generation }

// BestEver returns the best individual observed across all generations,
// or nil before the first one. Its genome is a private copy, safe to use
// after the population moves on.
func (p *Population) BestEver() *Individual { return p.bestEver }

// Close stops the evaluation workers. The population must not be used
// afterwards.
func (p *Population) Close() { p.pool.stop() }

// RunGeneration evaluates every member, partitions the population into
// species, and reports the generation's statistics. Call Reproduce
// afterwards to build the next generation.
func (p *Population) RunGeneration() (GenerationResult, error) {
	if len(p.members) == 0 {
		return GenerationResult{}, fmt.Errorf("evolve: empty population")
	}
	p.generation++
	p.pool.evaluateAll(p.members)
	p.species.Speciate(p.members)
	p.species.Observe()

	var best *Individual
	var sum float64
	failures := 0
	solved := false
	for _, ind := range p.members {
		if ind.Failed {
			failures++
		}
		if ind.Reason == sim.TargetFitnessReached {
			solved = true
		}
		sum += ind.Fitness
		if best == nil || ind.Fitness > best.Fitness {
			best = ind
		}
	}

	if p.bestEver == nil || best.Fitness > p.bestEver.Fitness {
		clone, err := neural.Clone(best.Genome, best.Genome.Id)
		if err != nil {
			return GenerationResult{}, err
		}
		keep := *best
		keep.Genome = clone
		p.bestEver = &keep
	}

	res := GenerationResult{
		Generation:      p.generation,
		BestFitness:     best.Fitness,
		MeanFitness:     sum / float64(len(p.members)),
		BestEverFitness: p.bestEver.Fitness,
		SpeciesCount:    len(p.species.Species),
		Failures:        failures,
		Solved:          solved,
		Best:            best,
	}
	p.log.Info("generation evaluated",
		"generation", res.Generation,
		"best", res.BestFitness,
		"mean", res.MeanFitness,
		"species", res.SpeciesCount,
		"failures", res.Failures,
	)
	return res, nil
}

// Reproduce replaces the members with the next generation: each species
// receives offspring in proportion to its mean fitness, champions of
// established species survive unchanged, and the rest are bred from each
// species' surviving fraction.
func (p *Population) Reproduce() error {
	if len(p.species.Species) == 0 {
		return fmt.Errorf("evolve: reproduce called before any generation ran")
	}

	total := len(p.members)
	alloc := p.species.AllocateOffspring(total)

	next := make([]*Individual, 0, total)
	for _, sp := range p.species.Species {
		quota := alloc[sp.ID]
		if quota == 0 {
			continue
		}
		members := sp.sortedMembers()

		if len(members) >= championMinSpeciesSize {
			id := p.idGen.NextID()
			clone, err := neural.Clone(members[0].Genome, id)
			if err != nil {
				return err
			}
			next = append(next, &Individual{ID: id, Genome: clone})
			quota--
		}

		pool := members[:breedingPoolSize(len(members), p.opts.SurvivalThresh)]
		for ; quota > 0; quota-- {
			child, err := p.breedOne(pool)
			if err != nil {
				return err
			}
			next = append(next, child)
		}
	}

	p.members = next
	p.species.EndGeneration()
	return nil
}

// breedOne produces one child from a species' breeding pool. Lone
// survivors reproduce asexually; otherwise the parents cross over and the
// child usually mutates on top.
func (p *Population) breedOne(pool []*Individual) (*Individual, error) {
	id := p.idGen.NextID()

	if len(pool) == 1 || p.rng.Float64() < p.opts.MutateOnlyProb {
		parent := pool[p.rng.Intn(len(pool))]
		child, err := neural.Clone(parent.Genome, id)
		if err != nil {
			return nil, err
		}
		if _, err := neural.Mutate(child, p.opts, p.idGen, p.rng); err != nil {
			return nil, err
		}
		return &Individual{ID: id, Genome: child}, nil
	}

	mom := pool[p.rng.Intn(len(pool))]
	dad := pool[p.rng.Intn(len(pool))]
	child, err := neural.Crossover(mom.Genome, dad.Genome, mom.Fitness, dad.Fitness, id, p.rng)
	if err != nil {
		return nil, err
	}
	if p.rng.Float64() >= p.opts.MateOnlyProb {
		if _, err := neural.Mutate(child, p.opts, p.idGen, p.rng); err != nil {
			return nil, err
		}
	}
	return &Individual{ID: id, Genome: child}, nil
}

// breedingPoolSize is how many of a species' best members may breed,
// per the survival threshold, never fewer than one.
func breedingPoolSize(n int, survivalThresh float64) int {
	size := int(math.Ceil(survivalThresh * float64(n)))
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}
	return size
}
