package neural

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Genomes are stored as plain JSON so winners survive library upgrades
// and stay diffable. Only the node kinds and activations this package
// produces are representable.

type genomeFile struct {
	ID    int        `json:"id"`
	Nodes []nodeJSON `json:"nodes"`
	Genes []geneJSON `json:"genes"`
}

type nodeJSON struct {
	ID         int    `json:"id"`
	Kind       string `json:"kind"`
	Activation string `json:"activation"`
}

type geneJSON struct {
	In         int     `json:"in"`
	Out        int     `json:"out"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
	Recurrent  bool    `json:"recurrent,omitempty"`
	Innovation int64   `json:"innovation"`
	Mutation   float64 `json:"mutation"`
}

const (
	kindInput  = "input"
	kindBias   = "bias"
	kindHidden = "hidden"
	kindOutput = "output"
)

var activationNames = map[neatmath.NodeActivationType]string{
	neatmath.LinearActivation:           "linear",
	neatmath.SigmoidSteepenedActivation: "sigmoid-steepened",
	neatmath.TanhActivation:             "tanh",
}

func activationName(t neatmath.NodeActivationType) (string, error) {
	if name, ok := activationNames[t]; ok {
		return name, nil
	}
	return "", fmt.Errorf("neural: unsupported activation type %v", t)
}

func activationByName(name string) (neatmath.NodeActivationType, error) {
	for t, n := range activationNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("neural: unknown activation %q", name)
}

func kindName(t network.NodeNeuronType) (string, error) {
	switch t {
	case network.InputNeuron:
		return kindInput, nil
	case network.BiasNeuron:
		return kindBias, nil
	case network.HiddenNeuron:
		return kindHidden, nil
	case network.OutputNeuron:
		return kindOutput, nil
	}
	return "", fmt.Errorf("neural: unsupported neuron type %v", t)
}

func kindByName(name string) (network.NodeNeuronType, error) {
	switch name {
	case kindInput:
		return network.InputNeuron, nil
	case kindBias:
		return network.BiasNeuron, nil
	case kindHidden:
		return network.HiddenNeuron, nil
	case kindOutput:
		return network.OutputNeuron, nil
	}
	return 0, fmt.Errorf("neural: unknown node kind %q", name)
}

// MarshalGenome encodes a genome as indented JSON.
func MarshalGenome(g *genetics.Genome) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("neural: cannot marshal nil genome")
	}

	file := genomeFile{
		ID:    g.Id,
		Nodes: make([]nodeJSON, 0, len(g.Nodes)),
		Genes: make([]geneJSON, 0, len(g.Genes)),
	}

	for _, node := range g.Nodes {
		kind, err := kindName(node.NeuronType)
		if err != nil {
			return nil, err
		}
		act, err := activationName(node.ActivationType)
		if err != nil {
			return nil, err
		}
		file.Nodes = append(file.Nodes, nodeJSON{ID: node.Id, Kind: kind, Activation: act})
	}

	for _, gene := range g.Genes {
		file.Genes = append(file.Genes, geneJSON{
			In:         gene.Link.InNode.Id,
			Out:        gene.Link.OutNode.Id,
			Weight:     gene.Link.ConnectionWeight,
			Enabled:    gene.IsEnabled,
			Recurrent:  gene.Link.IsRecurrent,
			Innovation: gene.InnovationNum,
			Mutation:   gene.MutationNum,
		})
	}

	return json.MarshalIndent(file, "", "  ")
}

// UnmarshalGenome decodes a genome from its JSON form.
func UnmarshalGenome(data []byte) (*genetics.Genome, error) {
	var file genomeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("neural: decoding genome: %w", err)
	}

	nodeMap := make(map[int]*network.NNode, len(file.Nodes))
	nodes := make([]*network.NNode, 0, len(file.Nodes))
	for _, n := range file.Nodes {
		kind, err := kindByName(n.Kind)
		if err != nil {
			return nil, err
		}
		act, err := activationByName(n.Activation)
		if err != nil {
			return nil, err
		}
		if _, dup := nodeMap[n.ID]; dup {
			return nil, fmt.Errorf("neural: duplicate node ID %d", n.ID)
		}
		node := network.NewNNode(n.ID, kind)
		node.ActivationType = act
		nodeMap[n.ID] = node
		nodes = append(nodes, node)
	}

	genes := make([]*genetics.Gene, 0, len(file.Genes))
	for _, g := range file.Genes {
		inNode := nodeMap[g.In]
		outNode := nodeMap[g.Out]
		if inNode == nil || outNode == nil {
			return nil, fmt.Errorf("neural: gene %d references missing node (%d -> %d)",
				g.Innovation, g.In, g.Out)
		}
		gene := genetics.NewGeneWithTrait(nil, g.Weight, inNode, outNode,
			g.Recurrent, g.Innovation, g.Mutation)
		gene.IsEnabled = g.Enabled
		genes = append(genes, gene)
	}

	return genetics.NewGenome(file.ID, nil, nodes, genes), nil
}

// SaveGenome writes a genome to path as JSON, creating parent directories
// as needed.
func SaveGenome(path string, g *genetics.Genome) error {
	data, err := MarshalGenome(g)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("neural: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("neural: writing genome: %w", err)
	}
	return nil
}

// LoadGenome reads a genome previously written by SaveGenome.
func LoadGenome(path string) (*genetics.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("neural: reading genome: %w", err)
	}
	return UnmarshalGenome(data)
}
