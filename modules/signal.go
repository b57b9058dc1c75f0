// Package modules provides the built-in behavior extensions a genome can
// attach to a growth simulation. Each module contributes a fixed-width
// slice to every cell's input/output vectors and keeps its own per-run
// state; modules never depend on each other.
package modules

import (
	"fmt"
	"math"

	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/sim"
)

// SignalKind is the registry name of the morphogen signal module.
const SignalKind = "signal"

// Signal slice widths: cells read their own level plus the strongest and
// weakest neighborhood levels, and emit one value.
const (
	SignalInputs  = 3
	SignalOutputs = 1
)

// Signal defaults, used when the descriptor config omits the keys.
const (
	DefaultSignalRadius = 2
	DefaultSignalDecay  = 0.1
)

func init() {
	sim.RegisterModule(SignalKind, NewSignal)
}

// Signal is a diffusible morphogen: cells emit into their neighborhood,
// concentrations fall off with hex distance and decay every tick. It gives
// a genome spatial information beyond immediate neighbor occupancy.
//
// Config keys: "radius" (emission reach in hexes) and "decay" (per-tick
// exponential decay rate in [0,1]).
type Signal struct {
	s      *sim.Simulation
	radius int
	decay  float64

	// levels is module-owned per-cell state, created and released by the
	// lifecycle hooks.
	levels map[*sim.Cell]float64
}

// NewSignal constructs the module for one run. The descriptor must declare
// the module's fixed widths; anything else is a configuration error.
func NewSignal(s *sim.Simulation, d sim.ModuleDescriptor) (sim.ModuleSimulation, error) {
	if d.Inputs != SignalInputs || d.Outputs != SignalOutputs {
		return nil, fmt.Errorf("signal module requires %d inputs and %d outputs, descriptor declares %d/%d",
			SignalInputs, SignalOutputs, d.Inputs, d.Outputs)
	}

	m := &Signal{
		s:      s,
		radius: DefaultSignalRadius,
		decay:  DefaultSignalDecay,
		levels: make(map[*sim.Cell]float64),
	}

	if v, ok := d.Config["radius"]; ok {
		r, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("signal radius: %w", err)
		}
		if r < 0 {
			return nil, fmt.Errorf("signal radius %d is negative", r)
		}
		m.radius = r
	}
	if v, ok := d.Config["decay"]; ok {
		dec, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("signal decay: %w", err)
		}
		if dec < 0 || dec > 1 {
			return nil, fmt.Errorf("signal decay %v outside [0,1]", dec)
		}
		m.decay = dec
	}
	return m, nil
}

// Level returns a cell's current signal concentration.
func (m *Signal) Level(c *sim.Cell) float64 {
	return m.levels[c]
}

// CellCreated initializes the cell's concentration to zero.
func (m *Signal) CellCreated(c *sim.Cell) {
	m.levels[c] = 0
}

// CellDestroyed releases the cell's concentration.
func (m *Signal) CellDestroyed(c *sim.Cell) {
	delete(m.levels, c)
}

// CollectInputs reports the cell's own level and the extremes among its six
// neighbors, giving the decision function a local gradient.
func (m *Signal) CollectInputs(c *sim.Cell) []float64 {
	var nmax, nmin float64
	first := true
	for _, nc := range hexmap.Neighbors(c.Coord) {
		neighbor, ok := m.s.Grid().At(nc).(*sim.Cell)
		if !ok {
			continue
		}
		lvl := m.levels[neighbor]
		if first {
			nmax, nmin = lvl, lvl
			first = false
			continue
		}
		nmax = math.Max(nmax, lvl)
		nmin = math.Min(nmin, lvl)
	}
	return []float64{m.levels[c], nmax, nmin}
}

// ApplyOutputs emits the cell's signal: every live cell within the radius,
// the emitter included, receives the emission attenuated by hex distance.
// Non-positive emissions do nothing.
func (m *Signal) ApplyOutputs(c *sim.Cell, outputs []float64) {
	emit := outputs[0]
	if emit <= 0 {
		return
	}
	for _, other := range m.s.Cells() {
		dist := hexmap.Distance(c.Coord, other.Coord)
		if dist > m.radius {
			continue
		}
		m.levels[other] += emit / float64(1+dist)
	}
}

// StepEnd decays every concentration.
func (m *Signal) StepEnd() {
	if m.decay == 0 {
		return
	}
	keep := 1 - m.decay
	for c := range m.levels {
		m.levels[c] *= keep
	}
}

// toInt accepts the integer representations YAML and JSON configs produce.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported integer type %T", v)
	}
}

// toFloat accepts the numeric representations YAML and JSON configs produce.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}
