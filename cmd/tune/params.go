// Package main provides CMA-ES meta-optimization over growth and NEAT
// parameters: it searches for the signal-module shape and mutation rates
// under which short evolutions climb fastest.
package main

import (
	"math"

	"github.com/pthm-cable/hexgrow/config"
	"github.com/pthm-cable/hexgrow/modules"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Signal module shape
			{Name: "signal_radius", Min: 1, Max: 4, Default: float64(modules.DefaultSignalRadius)},
			{Name: "signal_decay", Min: 0.0, Max: 0.9, Default: modules.DefaultSignalDecay},
			// Structural mutation
			{Name: "add_node_prob", Min: 0.01, Max: 0.5, Default: 0.10},
			{Name: "add_link_prob", Min: 0.01, Max: 0.5, Default: 0.15},
			// Weight mutation
			{Name: "weight_mutation_prob", Min: 0.2, Max: 1.0, Default: 0.8},
			{Name: "weight_mutation_power", Min: 0.5, Max: 5.0, Default: 2.5},
			// Speciation
			{Name: "compat_threshold", Min: 1.0, Max: 6.0, Default: 2.3},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct. The signal
// module entry is updated in place, or appended when the config has none.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	radius := int(math.Round(clamped[0]))
	decay := clamped[1]

	sig := signalModule(cfg)
	if sig == nil {
		cfg.Modules = append(cfg.Modules, config.ModuleConfig{
			Kind:    modules.SignalKind,
			Inputs:  modules.SignalInputs,
			Outputs: modules.SignalOutputs,
		})
		sig = &cfg.Modules[len(cfg.Modules)-1]
	}
	if sig.Config == nil {
		sig.Config = make(map[string]any, 2)
	}
	sig.Config["radius"] = radius
	sig.Config["decay"] = decay

	cfg.NEAT.AddNodeProb = clamped[2]
	cfg.NEAT.AddLinkProb = clamped[3]
	cfg.NEAT.WeightMutationProb = clamped[4]
	cfg.NEAT.WeightMutationPower = clamped[5]
	cfg.NEAT.CompatThreshold = clamped[6]
}

// ExtractFromConfig extracts current parameter values from a Config
// struct, falling back to defaults where the config is silent.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := pv.DefaultVector()

	if sig := signalModule(cfg); sig != nil {
		if r, ok := sig.Config["radius"]; ok {
			if n, ok := asFloat(r); ok {
				v[0] = n
			}
		}
		if d, ok := sig.Config["decay"]; ok {
			if n, ok := asFloat(d); ok {
				v[1] = n
			}
		}
	}

	if cfg.NEAT.AddNodeProb > 0 {
		v[2] = cfg.NEAT.AddNodeProb
	}
	if cfg.NEAT.AddLinkProb > 0 {
		v[3] = cfg.NEAT.AddLinkProb
	}
	if cfg.NEAT.WeightMutationProb > 0 {
		v[4] = cfg.NEAT.WeightMutationProb
	}
	if cfg.NEAT.WeightMutationPower > 0 {
		v[5] = cfg.NEAT.WeightMutationPower
	}
	if cfg.NEAT.CompatThreshold > 0 {
		v[6] = cfg.NEAT.CompatThreshold
	}

	return v
}

func signalModule(cfg *config.Config) *config.ModuleConfig {
	for i := range cfg.Modules {
		if cfg.Modules[i].Kind == modules.SignalKind {
			return &cfg.Modules[i]
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
