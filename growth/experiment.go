// Package growth implements the concrete experiments a simulation can
// run. Experiments share one sensing and acting convention: every cell
// reads the occupancy of its six neighbors plus a constant bias, and
// writes six division triggers plus an apoptosis flag. What differs
// between experiments is how a grown pattern is scored.
package growth

import (
	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/sim"
)

const (
	// BaseInputCount is the base input width: one occupancy flag per
	// neighbor direction plus a constant bias.
	BaseInputCount = hexmap.NumDirections + 1
	// BaseOutputCount is the base output width: one division trigger per
	// direction plus an apoptosis flag.
	BaseOutputCount = hexmap.NumDirections + 1

	// DivideThreshold is the activation above which a division output
	// fires toward its direction.
	DivideThreshold = 0.5
	// ApoptosisThreshold is the activation above which a cell destroys
	// itself. Apoptosis preempts division in the same tick.
	ApoptosisThreshold = 0.5
)

// baseExperiment carries the shared sensing/acting convention and plants
// the seed cells when a simulation binds.
type baseExperiment struct {
	sim   *sim.Simulation
	seeds []hexmap.Coord
}

// Bind attaches the experiment and creates the seed cells. Seeds must be
// valid, distinct coordinates; the simulation enforces that.
func (e *baseExperiment) Bind(s *sim.Simulation) {
	e.sim = s
	for _, c := range e.seeds {
		s.CreateCell(c)
	}
}

// BaseInputs reports the neighborhood occupancy in direction order,
// followed by the bias.
func (e *baseExperiment) BaseInputs(c *sim.Cell) []float64 {
	inputs := make([]float64, BaseInputCount)
	for i, n := range hexmap.Neighbors(c.Coord) {
		if e.sim.Grid().Occupied(n) {
			inputs[i] = 1
		}
	}
	inputs[hexmap.NumDirections] = 1
	return inputs
}

// BaseOutputs fires apoptosis or divisions from the cell's base output
// slice. An apoptotic cell takes no divisions with it.
func (e *baseExperiment) BaseOutputs(c *sim.Cell, outputs []float64) {
	if outputs[hexmap.NumDirections] > ApoptosisThreshold {
		e.sim.DestroyCell(c)
		return
	}
	for d := 0; d < hexmap.NumDirections; d++ {
		if outputs[d] > DivideThreshold {
			e.sim.DivideCell(c, hexmap.Direction(d))
		}
	}
}

// Simulation returns the bound simulation, nil before Bind.
func (e *baseExperiment) Simulation() *sim.Simulation { return e.sim }
