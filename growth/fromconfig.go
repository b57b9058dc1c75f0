package growth

import (
	"fmt"

	"github.com/pthm-cable/hexgrow/config"
	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/sim"
	"github.com/pthm-cable/hexgrow/truss"
)

// SeedPlacements returns the seed coordinates the config describes.
func SeedPlacements(cfg *config.Config) []hexmap.Coord {
	sc := cfg.Experiment.Seeds
	w, h := cfg.Simulation.Width, cfg.Simulation.Height
	switch sc.Kind {
	case config.SeedsBottom:
		return BottomSeeds(w, h, sc.Count)
	case config.SeedsNoise:
		return NoiseSeeds(w, h, sc.NoiseSeed, sc.NoiseThreshold)
	default:
		return CenterSeeds(w, h)
	}
}

// ModuleDescriptors converts the config module list to the engine form.
func ModuleDescriptors(mods []config.ModuleConfig) []sim.ModuleDescriptor {
	if len(mods) == 0 {
		return nil
	}
	descs := make([]sim.ModuleDescriptor, len(mods))
	for i, m := range mods {
		descs[i] = sim.ModuleDescriptor{
			Kind:    m.Kind,
			Inputs:  m.Inputs,
			Outputs: m.Outputs,
			Config:  m.Config,
		}
	}
	return descs
}

// CenteredPattern parses a mask and centers it on a width x height grid.
// The mask is compared as an occupancy set, so the row-parity change from
// centering does not affect scoring.
func CenteredPattern(text string, width, height int) ([]hexmap.Coord, error) {
	coords, pw, ph, err := ParsePattern(text)
	if err != nil {
		return nil, err
	}
	if pw > width || ph > height {
		return nil, fmt.Errorf("growth: %dx%d pattern does not fit a %dx%d grid", pw, ph, width, height)
	}
	dc, dr := (width-pw)/2, (height-ph)/2
	out := make([]hexmap.Coord, len(coords))
	for i, c := range coords {
		out[i] = hexmap.Coord{Col: c.Col + dc, Row: c.Row + dr}
	}
	return out, nil
}

// NewExperimentFactory builds a constructor for fresh experiment instances
// from the configuration. Experiments hold per-run state and evolution
// evaluates many runs concurrently, so callers get a factory rather than an
// instance. The target return is the exact fitness at which runs should
// stop early, when the config requests one.
func NewExperimentFactory(cfg *config.Config) (factory func() sim.Experiment, target float64, hasTarget bool, err error) {
	seeds := SeedPlacements(cfg)

	switch cfg.Experiment.Kind {
	case config.ExperimentTruss:
		mat := truss.Material{
			E:       cfg.Experiment.Material.Elasticity,
			Area:    cfg.Experiment.Material.Area,
			Density: cfg.Experiment.Material.Density,
			Yield:   cfg.Experiment.Material.YieldStress,
		}
		penalty := cfg.Experiment.WeightPenalty
		return func() sim.Experiment {
			return NewTrussExperiment(seeds, mat, penalty)
		}, 0, false, nil

	case config.ExperimentPattern:
		mask, err := CenteredPattern(cfg.Experiment.Pattern, cfg.Simulation.Width, cfg.Simulation.Height)
		if err != nil {
			return nil, 0, false, err
		}
		factory := func() sim.Experiment {
			return NewPatternExperiment(mask, seeds)
		}
		if cfg.Experiment.StopAtTarget {
			return factory, float64(len(mask)), true, nil
		}
		return factory, 0, false, nil

	default:
		return nil, 0, false, fmt.Errorf("growth: unknown experiment kind %q", cfg.Experiment.Kind)
	}
}
