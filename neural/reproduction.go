package neural

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Mutation constants
const (
	perturbProb         = 0.9  // Probability of perturbing vs replacing weights
	disableInheritProb  = 0.75 // Probability a gene disabled in a parent stays disabled
	maxConnectionWeight = 8.0  // Maximum absolute connection weight
	maxLinkAttempts     = 20   // Maximum attempts to find a new connection
	initialInnovation   = 1000 // Starting innovation number, above any seed layout
)

// IDGenerator hands out unique genome IDs and innovation numbers for one
// evolution run. Seed genomes number their innovations from 1 across the
// input-output grid, so fresh innovations start above that range.
type IDGenerator struct {
	nextID       int
	nextInnovNum int64
}

// NewIDGenerator creates a generator whose innovation numbers cannot
// collide with the given layout's seed numbering.
func NewIDGenerator(cfg GenomeConfig) *IDGenerator {
	start := int64(initialInnovation)
	if seedMax := int64(cfg.TotalInputs() * cfg.TotalOutputs()); seedMax >= start {
		start = seedMax + 1
	}
	return &IDGenerator{
		nextID:       1,
		nextInnovNum: start,
	}
}

// NextID returns the next unique genome ID.
func (g *IDGenerator) NextID() int {
	id := g.nextID
	g.nextID++
	return id
}

// NextInnovation returns the next innovation number.
func (g *IDGenerator) NextInnovation() int64 {
	num := g.nextInnovNum
	g.nextInnovNum++
	return num
}

// Crossover performs NEAT-style crossover between two parent genomes.
// Genes are aligned by innovation number; the more fit parent contributes
// the disjoint and excess genes. A gene disabled in either parent has a
// disableInheritProb chance of staying disabled in the child.
func Crossover(parent1, parent2 *genetics.Genome, fitness1, fitness2 float64, childID int, rng *rand.Rand) (*genetics.Genome, error) {
	if parent1 == nil || parent2 == nil {
		return nil, fmt.Errorf("neural: cannot crossover nil genomes")
	}

	var primary, secondary *genetics.Genome
	if fitness1 >= fitness2 {
		primary, secondary = parent1, parent2
	} else {
		primary, secondary = parent2, parent1
	}

	primaryGenes := make(map[int64]*genetics.Gene)
	for _, gene := range primary.Genes {
		primaryGenes[gene.InnovationNum] = gene
	}

	secondaryGenes := make(map[int64]*genetics.Gene)
	for _, gene := range secondary.Genes {
		secondaryGenes[gene.InnovationNum] = gene
	}

	innovSet := make(map[int64]bool)
	for innov := range primaryGenes {
		innovSet[innov] = true
	}
	for innov := range secondaryGenes {
		innovSet[innov] = true
	}

	// Sort innovations for deterministic ordering
	innovations := make([]int64, 0, len(innovSet))
	for innov := range innovSet {
		innovations = append(innovations, innov)
	}
	sort.Slice(innovations, func(i, j int) bool { return innovations[i] < innovations[j] })

	// The child needs every node its selected genes can reference.
	// Primary's nodes win on ID collisions.
	childNodeMap := make(map[int]*network.NNode)
	for _, node := range primary.Nodes {
		childNode := copyNode(node)
		childNodeMap[childNode.Id] = childNode
	}
	for _, node := range secondary.Nodes {
		if _, exists := childNodeMap[node.Id]; !exists {
			childNode := copyNode(node)
			childNodeMap[childNode.Id] = childNode
		}
	}

	childGenes := make([]*genetics.Gene, 0, len(innovations))

	for _, innov := range innovations {
		pGene := primaryGenes[innov]
		sGene := secondaryGenes[innov]

		var selectedGene *genetics.Gene
		enabled := true

		if pGene != nil && sGene != nil {
			// Matching gene, inherit from either parent at random
			if rng.Float64() < 0.5 {
				selectedGene = pGene
			} else {
				selectedGene = sGene
			}

			enabled = selectedGene.IsEnabled
			if !pGene.IsEnabled || !sGene.IsEnabled {
				enabled = rng.Float64() >= disableInheritProb
			}
		} else if pGene != nil {
			// Disjoint or excess from the more fit parent, always include
			selectedGene = pGene
			enabled = pGene.IsEnabled
		} else if fitness1 == fitness2 && sGene != nil {
			// Equal fitness, include the secondary's extras half the time
			if rng.Float64() < 0.5 {
				selectedGene = sGene
				enabled = sGene.IsEnabled
			}
		}
		// Otherwise: disjoint/excess from the less fit parent, skip

		if selectedGene != nil {
			inNode := childNodeMap[selectedGene.Link.InNode.Id]
			outNode := childNodeMap[selectedGene.Link.OutNode.Id]

			if inNode != nil && outNode != nil {
				childGene := genetics.NewGeneWithTrait(
					nil,
					selectedGene.Link.ConnectionWeight,
					inNode,
					outNode,
					selectedGene.Link.IsRecurrent,
					selectedGene.InnovationNum,
					selectedGene.MutationNum,
				)
				childGene.IsEnabled = enabled
				childGenes = append(childGenes, childGene)
			}
		}
	}

	// Nodes sorted by ID keep the sensor and output ordering every genome
	// of a layout shares.
	childNodes := make([]*network.NNode, 0, len(childNodeMap))
	for _, node := range childNodeMap {
		childNodes = append(childNodes, node)
	}
	sort.Slice(childNodes, func(i, j int) bool { return childNodes[i].Id < childNodes[j].Id })

	return genetics.NewGenome(childID, nil, childNodes, childGenes), nil
}

func copyNode(node *network.NNode) *network.NNode {
	newNode := network.NewNNode(node.Id, node.NeuronType)
	newNode.ActivationType = node.ActivationType
	return newNode
}

// Mutate applies the standard mutation battery to a genome in place using
// the probabilities from opts. Each mutation rolls independently. Returns
// whether anything changed.
func Mutate(genome *genetics.Genome, opts *neat.Options, idGen *IDGenerator, rng *rand.Rand) (bool, error) {
	if genome == nil {
		return false, fmt.Errorf("neural: cannot mutate nil genome")
	}

	mutated := false

	if rng.Float64() < opts.MutateLinkWeightsProb {
		mutateWeights(genome, opts.WeightMutPower, rng)
		mutated = true
	}

	if rng.Float64() < opts.MutateAddNodeProb {
		if addNode(genome, idGen, rng) {
			mutated = true
		}
	}

	if rng.Float64() < opts.MutateAddLinkProb {
		if addLink(genome, idGen, rng) {
			mutated = true
		}
	}

	if rng.Float64() < opts.MutateToggleEnableProb {
		toggleEnable(genome, rng)
		mutated = true
	}

	return mutated, nil
}

func mutateWeights(genome *genetics.Genome, power float64, rng *rand.Rand) {
	for _, gene := range genome.Genes {
		if rng.Float64() < perturbProb {
			gene.Link.ConnectionWeight += (rng.Float64()*2 - 1) * power
		} else {
			gene.Link.ConnectionWeight = rng.Float64()*4 - 2
		}

		gene.Link.ConnectionWeight = clampWeight(gene.Link.ConnectionWeight)
	}
}

// clampWeight clamps a connection weight to the valid range.
func clampWeight(w float64) float64 {
	if w > maxConnectionWeight {
		return maxConnectionWeight
	}
	if w < -maxConnectionWeight {
		return -maxConnectionWeight
	}
	return w
}

// addNode splits a random enabled connection with a new hidden node. The
// incoming gene gets weight 1.0 and the outgoing gene inherits the old
// weight, so behavior is near-unchanged at the moment of the split.
func addNode(genome *genetics.Genome, idGen *IDGenerator, rng *rand.Rand) bool {
	enabledGenes := make([]*genetics.Gene, 0)
	for _, gene := range genome.Genes {
		if gene.IsEnabled {
			enabledGenes = append(enabledGenes, gene)
		}
	}

	if len(enabledGenes) == 0 {
		return false
	}

	geneToSplit := enabledGenes[rng.Intn(len(enabledGenes))]
	geneToSplit.IsEnabled = false

	maxNodeID := 0
	for _, node := range genome.Nodes {
		if node.Id > maxNodeID {
			maxNodeID = node.Id
		}
	}

	newNode := network.NewNNode(maxNodeID+1, network.HiddenNeuron)
	activators := hiddenActivators()
	newNode.ActivationType = activators[rng.Intn(len(activators))]

	gene1 := genetics.NewGeneWithTrait(
		nil,
		1.0,
		geneToSplit.Link.InNode,
		newNode,
		false,
		idGen.NextInnovation(),
		0,
	)
	gene2 := genetics.NewGeneWithTrait(
		nil,
		geneToSplit.Link.ConnectionWeight,
		newNode,
		geneToSplit.Link.OutNode,
		false,
		idGen.NextInnovation(),
		0,
	)

	genome.Nodes = append(genome.Nodes, newNode)
	genome.Genes = append(genome.Genes, gene1, gene2)

	return true
}

func addLink(genome *genetics.Genome, idGen *IDGenerator, rng *rand.Rand) bool {
	inputs := make([]*network.NNode, 0)
	outputs := make([]*network.NNode, 0)
	hidden := make([]*network.NNode, 0)

	for _, node := range genome.Nodes {
		switch node.NeuronType {
		case network.InputNeuron, network.BiasNeuron:
			inputs = append(inputs, node)
		case network.OutputNeuron:
			outputs = append(outputs, node)
		case network.HiddenNeuron:
			hidden = append(hidden, node)
		}
	}

	// Sources: inputs and hidden. Targets: hidden and outputs.
	sources := append(inputs, hidden...)
	targets := append(hidden, outputs...)

	if len(sources) == 0 || len(targets) == 0 {
		return false
	}

	existing := make(map[int64]bool)
	for _, gene := range genome.Genes {
		existing[connectionKey(gene.Link.InNode.Id, gene.Link.OutNode.Id)] = true
	}

	for attempt := 0; attempt < maxLinkAttempts; attempt++ {
		source := sources[rng.Intn(len(sources))]
		target := targets[rng.Intn(len(targets))]

		if source.Id == target.Id {
			continue
		}
		if existing[connectionKey(source.Id, target.Id)] {
			continue
		}

		newGene := genetics.NewGeneWithTrait(
			nil,
			rng.Float64()*4-2,
			source,
			target,
			false,
			idGen.NextInnovation(),
			0,
		)
		genome.Genes = append(genome.Genes, newGene)
		return true
	}

	return false
}

// connectionKey creates a unique key for a connection between two nodes.
func connectionKey(inID, outID int) int64 {
	return int64(inID)<<32 | int64(outID)
}

// toggleEnable flips a random gene, refusing to disable the last enabled
// connection into a node so no output goes dark.
func toggleEnable(genome *genetics.Genome, rng *rand.Rand) {
	if len(genome.Genes) == 0 {
		return
	}

	gene := genome.Genes[rng.Intn(len(genome.Genes))]
	gene.IsEnabled = !gene.IsEnabled

	if !gene.IsEnabled {
		outNode := gene.Link.OutNode
		hasEnabled := false
		for _, g := range genome.Genes {
			if g.Link.OutNode.Id == outNode.Id && g.IsEnabled {
				hasEnabled = true
				break
			}
		}
		if !hasEnabled {
			gene.IsEnabled = true
		}
	}
}

// hiddenActivators lists the activation functions new hidden nodes may
// take. Growth decisions want smooth saturating responses.
func hiddenActivators() []neatmath.NodeActivationType {
	return []neatmath.NodeActivationType{
		neatmath.SigmoidSteepenedActivation,
		neatmath.TanhActivation,
	}
}

// Clone creates a deep copy of a genome with a new ID.
func Clone(genome *genetics.Genome, newID int) (*genetics.Genome, error) {
	if genome == nil {
		return nil, fmt.Errorf("neural: cannot clone nil genome")
	}

	nodeMap := make(map[int]*network.NNode)
	newNodes := make([]*network.NNode, 0, len(genome.Nodes))
	for _, node := range genome.Nodes {
		newNode := copyNode(node)
		nodeMap[node.Id] = newNode
		newNodes = append(newNodes, newNode)
	}

	newGenes := make([]*genetics.Gene, 0, len(genome.Genes))
	for _, gene := range genome.Genes {
		inNode := nodeMap[gene.Link.InNode.Id]
		outNode := nodeMap[gene.Link.OutNode.Id]
		if inNode != nil && outNode != nil {
			newGene := genetics.NewGeneWithTrait(
				nil,
				gene.Link.ConnectionWeight,
				inNode,
				outNode,
				gene.Link.IsRecurrent,
				gene.InnovationNum,
				gene.MutationNum,
			)
			newGene.IsEnabled = gene.IsEnabled
			newGenes = append(newGenes, newGene)
		}
	}

	return genetics.NewGenome(newID, nil, newNodes, newGenes), nil
}

// Compatibility calculates the NEAT compatibility distance between two
// genomes from their excess, disjoint and matching-weight differences.
func Compatibility(g1, g2 *genetics.Genome, opts *neat.Options) float64 {
	if g1 == nil || g2 == nil {
		return math.MaxFloat64
	}

	genes1 := make(map[int64]*genetics.Gene)
	for _, gene := range g1.Genes {
		genes1[gene.InnovationNum] = gene
	}

	genes2 := make(map[int64]*genetics.Gene)
	for _, gene := range g2.Genes {
		genes2[gene.InnovationNum] = gene
	}

	maxInnov1 := int64(0)
	for innov := range genes1 {
		if innov > maxInnov1 {
			maxInnov1 = innov
		}
	}
	maxInnov2 := int64(0)
	for innov := range genes2 {
		if innov > maxInnov2 {
			maxInnov2 = innov
		}
	}

	matching := 0
	disjoint := 0
	excess := 0
	weightDiff := 0.0

	for innov, gene1 := range genes1 {
		if gene2, exists := genes2[innov]; exists {
			matching++
			weightDiff += math.Abs(gene1.Link.ConnectionWeight - gene2.Link.ConnectionWeight)
		} else if innov > maxInnov2 {
			excess++
		} else {
			disjoint++
		}
	}

	for innov := range genes2 {
		if _, exists := genes1[innov]; !exists {
			if innov > maxInnov1 {
				excess++
			} else {
				disjoint++
			}
		}
	}

	// Small genomes are compared unnormalized, per standard NEAT.
	n := float64(max(len(g1.Genes), len(g2.Genes)))
	if n < 20 {
		n = 1
	}

	avgWeightDiff := 0.0
	if matching > 0 {
		avgWeightDiff = weightDiff / float64(matching)
	}

	return (opts.ExcessCoeff*float64(excess)+opts.DisjointCoeff*float64(disjoint))/n +
		opts.MutdiffCoeff*avgWeightDiff
}
