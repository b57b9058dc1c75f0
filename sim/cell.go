// Package sim implements a deterministic, stepped cellular-growth
// simulation on a bounded hexagonal grid. A population of cells, all driven
// by one shared decision function, grows, divides, and dies over a bounded
// number of steps; the spatial pattern it produces is scored by the
// attached experiment.
//
// The package owns the strict two-phase update protocol (collect all
// decision outputs against a pre-tick snapshot, then apply them), the
// module composition mechanism that lets independent behaviors extend each
// cell's input/output vector, and the termination state machine (step
// budget, inactivity, fitness target, repeated grid states).
//
// A Simulation is single-threaded and single-use: construct, Run, read the
// result. Parallelism belongs to callers evaluating many independent
// simulations, never inside one.
package sim

import "github.com/pthm-cable/hexgrow/hexmap"

// Cell is one live occupant of the grid.
//
// IDs are assigned by the owning simulation, start at 1, strictly increase,
// and are never reused. Alive transitions exactly once, from true to false;
// a dead cell is terminal and must not be passed to lifecycle operations.
type Cell struct {
	// ID uniquely identifies the cell within its simulation.
	ID int

	// Coord is the cell's grid position.
	Coord hexmap.Coord

	// Type distinguishes cell kinds for experiments that use more than one.
	Type int

	// Alive is cleared by DestroyCell and never set again.
	Alive bool

	// UserData carries auxiliary per-cell state. Modules store their
	// per-cell values here under their own keys.
	UserData map[string]any
}
