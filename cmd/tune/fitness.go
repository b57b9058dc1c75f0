package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/hexgrow/config"
	"github.com/pthm-cable/hexgrow/evolve"
	"github.com/pthm-cable/hexgrow/growth"
	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/sim"
)

// Evaluator scores a parameter vector by running short evolutions and
// averaging the best fitness each reaches. The optimizer minimizes, so
// scores are the negated mean best fitness.
type Evaluator struct {
	params      *ParamVector
	base        *config.Config
	seeds       []int64
	generations int

	// Best vector tracking; Evaluate runs concurrently under CMA-ES.
	mu         sync.Mutex
	bestScore  float64
	bestVector []float64
}

// NewEvaluator creates an evaluator over the given base config.
func NewEvaluator(params *ParamVector, base *config.Config, seeds []int64, generations int) *Evaluator {
	return &Evaluator{
		params:      params,
		base:        base,
		seeds:       seeds,
		generations: generations,
		bestScore:   math.Inf(1),
	}
}

// Best returns the best raw parameter vector seen so far and its score.
func (e *Evaluator) Best() ([]float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestVector, e.bestScore
}

// Evaluate computes the score for a raw parameter vector (lower = better).
func (e *Evaluator) Evaluate(x []float64) float64 {
	cfg := e.copyConfig()
	e.params.ApplyToConfig(cfg, x)

	var total float64
	for _, seed := range e.seeds {
		best, err := e.runEvolution(cfg, seed)
		if err != nil {
			// A vector that cannot even start an evolution ranks last.
			return math.Inf(1)
		}
		total += best
	}
	score := -total / float64(len(e.seeds))

	e.mu.Lock()
	if score < e.bestScore {
		e.bestScore = score
		e.bestVector = append([]float64(nil), e.params.Clamp(x)...)
	}
	e.mu.Unlock()

	return score
}

// runEvolution runs one short evolution and returns the best fitness it
// reached.
func (e *Evaluator) runEvolution(cfg *config.Config, seed int64) (float64, error) {
	factory, target, hasTarget, err := growth.NewExperimentFactory(cfg)
	if err != nil {
		return 0, err
	}

	layout := neural.GenomeConfig{
		BaseInputs:  growth.BaseInputCount,
		BaseOutputs: growth.BaseOutputCount,
		Modules:     growth.ModuleDescriptors(cfg.Modules),
		Target:      target,
		HasTarget:   hasTarget,
	}

	opts := neural.DefaultOptions()
	cfg.NEAT.Apply(opts)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	evaluator := &evolve.SimEvaluator{
		Layout:        layout,
		NewExperiment: factory,
		Options: sim.Options{
			Width:         cfg.Simulation.Width,
			Height:        cfg.Simulation.Height,
			MaxSteps:      cfg.Simulation.MaxSteps,
			BreakOnRepeat: cfg.Simulation.BreakOnRepeat,
			Log:           quiet,
		},
	}

	pop, err := evolve.NewPopulation(layout, opts, evaluator, evolve.Config{
		PopSize:            opts.PopSize,
		SeedConnectionProb: cfg.NEAT.SeedConnectionProb,
		Workers:            1, // CMA-ES parallelizes across candidate vectors
		Log:                quiet,
	}, rand.New(rand.NewSource(seed)))
	if err != nil {
		return 0, err
	}
	defer pop.Close()

	for gen := 1; gen <= e.generations; gen++ {
		res, err := pop.RunGeneration()
		if err != nil {
			return 0, err
		}
		if res.Solved {
			break
		}
		if gen < e.generations {
			if err := pop.Reproduce(); err != nil {
				return 0, err
			}
		}
	}

	best := pop.BestEver()
	if best == nil {
		return 0, fmt.Errorf("no generations completed")
	}
	return best.Fitness, nil
}

// copyConfig copies the base config deep enough that ApplyToConfig cannot
// leak between concurrent evaluations (module list and config maps).
func (e *Evaluator) copyConfig() *config.Config {
	cfg := *e.base
	cfg.Modules = make([]config.ModuleConfig, len(e.base.Modules))
	for i, m := range e.base.Modules {
		cm := m
		cm.Config = make(map[string]any, len(m.Config))
		for k, v := range m.Config {
			cm.Config[k] = v
		}
		cfg.Modules[i] = cm
	}
	return &cfg
}
