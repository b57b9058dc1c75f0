package neural

import (
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Seed genomes share one node numbering per layout: input nodes take IDs
// 1..TotalInputs, output nodes follow. Innovation numbers walk the full
// input-by-output grid row-major whether or not a connection is made, so
// the same link carries the same innovation number in every individual
// and crossover aligns genes across the whole initial population.

// NewSeedGenome builds a fully connected input-to-output genome for the
// layout, with weights drawn uniformly from [-1, 1].
func NewSeedGenome(id int, cfg GenomeConfig, rng *rand.Rand) *genetics.Genome {
	nodes := seedNodes(cfg)
	in, out := cfg.TotalInputs(), cfg.TotalOutputs()

	genes := make([]*genetics.Gene, 0, in*out)
	innovNum := int64(1)

	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			weight := rng.Float64()*2 - 1
			gene := genetics.NewGeneWithTrait(
				nil,
				weight,
				nodes[i],
				nodes[in+j],
				false,
				innovNum,
				0,
			)
			genes = append(genes, gene)
			innovNum++
		}
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}

// NewSparseSeedGenome builds a seed genome where each input-output pair is
// connected with probability connectionProb, weights in [-2, 2]. Every
// output is guaranteed at least one incoming connection so the network
// activates end to end.
func NewSparseSeedGenome(id int, cfg GenomeConfig, connectionProb float64, rng *rand.Rand) *genetics.Genome {
	nodes := seedNodes(cfg)
	in, out := cfg.TotalInputs(), cfg.TotalOutputs()

	genes := make([]*genetics.Gene, 0)
	innovNum := int64(1)

	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			// Always advance the innovation number so numbering stays
			// aligned across individuals.
			currentInnov := innovNum
			innovNum++

			if rng.Float64() < connectionProb {
				weight := rng.Float64()*4 - 2
				gene := genetics.NewGeneWithTrait(
					nil,
					weight,
					nodes[i],
					nodes[in+j],
					false,
					currentInnov,
					0,
				)
				genes = append(genes, gene)
			}
		}
	}

	// Connect any output the dice left isolated. The grid position of the
	// chosen pair determines the innovation number, keeping alignment.
	for j := 0; j < out; j++ {
		hasConnection := false
		for _, gene := range genes {
			if gene.Link.OutNode.Id == in+j+1 {
				hasConnection = true
				break
			}
		}
		if !hasConnection {
			i := rng.Intn(in)
			gene := genetics.NewGeneWithTrait(
				nil,
				rng.Float64()*2-1,
				nodes[i],
				nodes[in+j],
				false,
				int64(i*out+j)+1,
				0,
			)
			genes = append(genes, gene)
		}
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}

// seedNodes builds the shared input and output node list for a layout.
// Inputs pass through linearly; outputs use the steepened sigmoid.
func seedNodes(cfg GenomeConfig) []*network.NNode {
	in, out := cfg.TotalInputs(), cfg.TotalOutputs()
	nodes := make([]*network.NNode, 0, in+out)

	for i := 1; i <= in; i++ {
		node := network.NewNNode(i, network.InputNeuron)
		node.ActivationType = neatmath.LinearActivation
		nodes = append(nodes, node)
	}

	for i := 1; i <= out; i++ {
		node := network.NewNNode(in+i, network.OutputNeuron)
		node.ActivationType = neatmath.SigmoidSteepenedActivation
		nodes = append(nodes, node)
	}

	return nodes
}
