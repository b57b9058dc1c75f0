// Package config provides configuration loading and access for growth runs.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/yaricom/goNEAT/v4/neat"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all growth and evolution configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Modules    []ModuleConfig   `yaml:"modules"`
	NEAT       NEATConfig       `yaml:"neat"`
	Output     OutputConfig     `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig bounds a single growth run.
type SimulationConfig struct {
	Width         int  `yaml:"width"`
	Height        int  `yaml:"height"`
	MaxSteps      int  `yaml:"max_steps"`
	BreakOnRepeat bool `yaml:"break_on_repeat"` // End runs that revisit an earlier grid state
	Verbose       bool `yaml:"verbose"`
}

// ExperimentConfig selects and parameterizes the scoring experiment.
type ExperimentConfig struct {
	Kind          string         `yaml:"kind"`           // "pattern" or "truss"
	Pattern       string         `yaml:"pattern"`        // Target mask, rows of '#' and '.'
	StopAtTarget  bool           `yaml:"stop_at_target"` // End runs that reproduce the pattern exactly
	WeightPenalty float64        `yaml:"weight_penalty"` // Truss fitness deduction per unit weight
	Material      MaterialConfig `yaml:"material"`
	Seeds         SeedsConfig    `yaml:"seeds"`
}

// SeedsConfig controls initial cell placement.
type SeedsConfig struct {
	Kind           string  `yaml:"kind"`  // "center", "bottom", or "noise"
	Count          int     `yaml:"count"` // Seeds across the foundation row (bottom kind)
	NoiseSeed      int64   `yaml:"noise_seed"`
	NoiseThreshold float64 `yaml:"noise_threshold"`
}

// MaterialConfig describes the truss bar stock.
type MaterialConfig struct {
	Elasticity  float64 `yaml:"elasticity"`   // Young's modulus in Pa
	Area        float64 `yaml:"area"`         // Cross-section in m^2
	Density     float64 `yaml:"density"`      // kg/m^3
	YieldStress float64 `yaml:"yield_stress"` // Pa
}

// ModuleConfig names one behavior module and its vector widths.
type ModuleConfig struct {
	Kind    string         `yaml:"kind"`
	Inputs  int            `yaml:"inputs"`
	Outputs int            `yaml:"outputs"`
	Config  map[string]any `yaml:"config"`
}

// NEATConfig holds evolution loop parameters. Zero-valued rate fields
// keep the built-in NEAT defaults.
type NEATConfig struct {
	Population         int     `yaml:"population"`
	Generations        int     `yaml:"generations"`
	Workers            int     `yaml:"workers"` // 0 = GOMAXPROCS
	Seed               int64   `yaml:"seed"`
	SeedConnectionProb float64 `yaml:"seed_connection_prob"`

	CompatThreshold     float64 `yaml:"compat_threshold"`
	AddNodeProb         float64 `yaml:"add_node_prob"`
	AddLinkProb         float64 `yaml:"add_link_prob"`
	WeightMutationProb  float64 `yaml:"weight_mutation_prob"`
	WeightMutationPower float64 `yaml:"weight_mutation_power"`
	SurvivalThreshold   float64 `yaml:"survival_threshold"`
	DropOffAge          int     `yaml:"drop_off_age"`
}

// Apply overlays the non-zero rate fields onto opts.
func (c NEATConfig) Apply(opts *neat.Options) {
	if c.Population > 0 {
		opts.PopSize = c.Population
	}
	if c.CompatThreshold > 0 {
		opts.CompatThreshold = c.CompatThreshold
	}
	if c.AddNodeProb > 0 {
		opts.MutateAddNodeProb = c.AddNodeProb
	}
	if c.AddLinkProb > 0 {
		opts.MutateAddLinkProb = c.AddLinkProb
	}
	if c.WeightMutationProb > 0 {
		opts.MutateLinkWeightsProb = c.WeightMutationProb
	}
	if c.WeightMutationPower > 0 {
		opts.WeightMutPower = c.WeightMutationPower
	}
	if c.SurvivalThreshold > 0 {
		opts.SurvivalThresh = c.SurvivalThreshold
	}
	if c.DropOffAge > 0 {
		opts.DropOffAge = c.DropOffAge
	}
}

// OutputConfig names where run artifacts land.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	StatsCSV string `yaml:"stats_csv"`
	Winner   string `yaml:"winner"`
	ASCII    bool   `yaml:"ascii"` // Print the grown grid when a run finishes
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers    int    // Effective evaluator count
	StatsPath  string // Output.Dir joined with Output.StatsCSV
	WinnerPath string // Output.Dir joined with Output.Winner
}

// Experiment and seed kinds accepted by validation.
const (
	ExperimentPattern = "pattern"
	ExperimentTruss   = "truss"

	SeedsCenter = "center"
	SeedsBottom = "bottom"
	SeedsNoise  = "noise"
)

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Get().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Get returns the global configuration. Panics if Init was not called.
func Get() *Config {
	if global == nil {
		panic("config: Get() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Experiment.Kind {
	case ExperimentPattern:
		if c.Experiment.Pattern == "" {
			return fmt.Errorf("config: pattern experiment without a pattern")
		}
	case ExperimentTruss:
	default:
		return fmt.Errorf("config: unknown experiment kind %q", c.Experiment.Kind)
	}

	switch c.Experiment.Seeds.Kind {
	case SeedsCenter, SeedsBottom, SeedsNoise:
	default:
		return fmt.Errorf("config: unknown seeds kind %q", c.Experiment.Seeds.Kind)
	}

	for _, m := range c.Modules {
		if m.Kind == "" {
			return fmt.Errorf("config: module without a kind")
		}
		if m.Inputs < 0 || m.Outputs < 0 {
			return fmt.Errorf("config: module %q declares negative widths", m.Kind)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.NEAT.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Output.StatsCSV != "" {
		c.Derived.StatsPath = filepath.Join(c.Output.Dir, c.Output.StatsCSV)
	}
	if c.Output.Winner != "" {
		c.Derived.WinnerPath = filepath.Join(c.Output.Dir, c.Output.Winner)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
