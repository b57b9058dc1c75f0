// Package neural provides NEAT-evolved genomes as the decision functions
// of growth simulations, together with the reproduction operators
// (crossover, mutation, compatibility) the evolution driver searches with
// and JSON persistence for winners.
package neural

import (
	"fmt"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"github.com/yaricom/goNEAT/v4/neat/network"

	"github.com/pthm-cable/hexgrow/sim"
)

// GenomeConfig fixes the vector layout every genome of an experiment
// shares: the experiment's base widths plus the ordered module list. The
// network's input and output counts are derived from it.
type GenomeConfig struct {
	BaseInputs  int
	BaseOutputs int
	Modules     []sim.ModuleDescriptor

	// Target, when HasTarget is set, stops a run as soon as the running
	// maximum fitness equals it exactly.
	Target    float64
	HasTarget bool
}

// TotalInputs is the full input vector width: base plus module slices.
func (c GenomeConfig) TotalInputs() int {
	n := c.BaseInputs
	for _, d := range c.Modules {
		n += d.Inputs
	}
	return n
}

// TotalOutputs is the full output vector width: base plus module slices.
func (c GenomeConfig) TotalOutputs() int {
	n := c.BaseOutputs
	for _, d := range c.Modules {
		n += d.Outputs
	}
	return n
}

// Validate rejects layouts a simulation could not run.
func (c GenomeConfig) Validate() error {
	if c.BaseInputs < 0 || c.BaseOutputs < 0 {
		return fmt.Errorf("neural: negative base widths (%d in, %d out)", c.BaseInputs, c.BaseOutputs)
	}
	for _, d := range c.Modules {
		if d.Inputs < 0 || d.Outputs < 0 {
			return fmt.Errorf("neural: module %q declares negative widths", d.Kind)
		}
	}
	if c.TotalInputs() == 0 {
		return fmt.Errorf("neural: layout has no inputs")
	}
	if c.TotalOutputs() == 0 {
		return fmt.Errorf("neural: layout has no outputs")
	}
	return nil
}

// NetGenome adapts a goNEAT genome to the simulation's Genome interface.
// The phenotype network is built once at construction; Decide loads the
// sensors, activates to the network's depth, reads the outputs, and
// flushes, so each call is a pure function of its inputs.
//
// A NetGenome must not be shared across concurrently running simulations:
// the phenotype holds activation state during a call. Build one per run
// with FromGenome.
type NetGenome struct {
	cfg    GenomeConfig
	genome *genetics.Genome
	net    *network.Network
	depth  int
}

// fallbackDepth is used when the network cannot report a useful activation
// depth (trivial or cyclic topologies).
const fallbackDepth = 5

// FromGenome builds the phenotype and checks it against the layout. A
// genome whose sensor or output counts disagree with the configuration is
// a configuration error, caught here rather than mid-run.
func FromGenome(g *genetics.Genome, cfg GenomeConfig) (*NetGenome, error) {
	if g == nil {
		return nil, fmt.Errorf("neural: nil genome")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	phenotype, err := g.Genesis(g.Id)
	if err != nil {
		return nil, fmt.Errorf("neural: building network from genome %d: %w", g.Id, err)
	}

	sensors, outputs := 0, 0
	for _, n := range g.Nodes {
		switch n.NeuronType {
		case network.InputNeuron, network.BiasNeuron:
			sensors++
		case network.OutputNeuron:
			outputs++
		}
	}
	if sensors != cfg.TotalInputs() {
		return nil, fmt.Errorf("neural: genome %d has %d sensors, layout needs %d",
			g.Id, sensors, cfg.TotalInputs())
	}
	if outputs != cfg.TotalOutputs() {
		return nil, fmt.Errorf("neural: genome %d has %d outputs, layout needs %d",
			g.Id, outputs, cfg.TotalOutputs())
	}

	depth, err := phenotype.MaxActivationDepth()
	if err != nil || depth < 1 {
		depth = fallbackDepth
	}

	return &NetGenome{cfg: cfg, genome: g, net: phenotype, depth: depth}, nil
}

// NumInputs implements sim.Genome.
func (g *NetGenome) NumInputs() int { return g.cfg.TotalInputs() }

// NumOutputs implements sim.Genome.
func (g *NetGenome) NumOutputs() int { return g.cfg.TotalOutputs() }

// NonModuleInputs implements sim.Genome.
func (g *NetGenome) NonModuleInputs() int { return g.cfg.BaseInputs }

// NonModuleOutputs implements sim.Genome.
func (g *NetGenome) NonModuleOutputs() int { return g.cfg.BaseOutputs }

// Modules implements sim.Genome.
func (g *NetGenome) Modules() []sim.ModuleDescriptor { return g.cfg.Modules }

// TargetFitness implements sim.Genome.
func (g *NetGenome) TargetFitness() (float64, bool) { return g.cfg.Target, g.cfg.HasTarget }

// Decide runs the network on one cell's input vector.
func (g *NetGenome) Decide(inputs []float64) ([]float64, error) {
	if len(inputs) != g.cfg.TotalInputs() {
		return nil, fmt.Errorf("neural: got %d inputs, network expects %d",
			len(inputs), g.cfg.TotalInputs())
	}

	if err := g.net.LoadSensors(inputs); err != nil {
		return nil, fmt.Errorf("neural: loading sensors: %w", err)
	}

	for i := 0; i < g.depth; i++ {
		if _, err := g.net.Activate(); err != nil {
			return nil, fmt.Errorf("neural: activation failed: %w", err)
		}
	}

	raw := g.net.ReadOutputs()
	out := make([]float64, len(raw))
	copy(out, raw)

	// Flush so the next call starts from a clean network.
	if _, err := g.net.Flush(); err != nil {
		return nil, fmt.Errorf("neural: flush failed: %w", err)
	}
	return out, nil
}

// Underlying returns the wrapped goNEAT genome.
func (g *NetGenome) Underlying() *genetics.Genome { return g.genome }

// Complexity returns the phenotype's node and link counts.
func (g *NetGenome) Complexity() (nodes, links int) {
	return g.net.NodeCount(), g.net.LinkCount()
}
