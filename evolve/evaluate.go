package evolve

import (
	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/sim"
)

// EvalResult is the outcome of scoring one genome.
type EvalResult struct {
	// Fitness is the best score the genome's growth run reached.
	Fitness float64
	// Steps is how many ticks the run took.
	Steps int
	// Reason is why the run stopped.
	Reason sim.Reason
	// Cells is the live-cell count when the run ended.
	Cells int
}

// Evaluator scores one genome. Implementations must be safe for
// concurrent use; the pool calls Evaluate from several goroutines at
// once.
type Evaluator interface {
	Evaluate(g *genetics.Genome) (EvalResult, error)
}

// ExperimentFactory builds a fresh experiment for one run. Experiments
// hold per-run state, so every evaluation needs its own.
type ExperimentFactory func() sim.Experiment

// SimEvaluator scores genomes by running one full growth simulation each.
type SimEvaluator struct {
	// Layout describes the vector widths the genomes were built for.
	Layout neural.GenomeConfig
	// NewExperiment supplies the scoring experiment for each run.
	NewExperiment ExperimentFactory
	// Options configures every run. Attach no Renderer here; the options
	// are shared across concurrent evaluations.
	Options sim.Options
}

// Evaluate builds the genome's network, grows it once, and reports the
// run's best fitness.
func (e *SimEvaluator) Evaluate(g *genetics.Genome) (EvalResult, error) {
	ng, err := neural.FromGenome(g, e.Layout)
	if err != nil {
		return EvalResult{}, err
	}
	s, err := sim.New(ng, e.NewExperiment(), e.Options)
	if err != nil {
		return EvalResult{}, err
	}
	res, err := s.Run()
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{
		Fitness: res.MaxFitness,
		Steps:   res.Steps,
		Reason:  res.Reason,
		Cells:   s.Grid().Count(),
	}, nil
}
