package growth

import (
	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/truss"
)

// TrussExperiment scores a grown shape as a load-bearing structure. The
// occupied hexes reachable from the foundation row become truss joints,
// the structure is solved under self-weight, and the score is its factor
// of safety less a weight penalty. Shapes with no foundation contact and
// shapes that collapse into a mechanism score zero.
type TrussExperiment struct {
	baseExperiment
	material      truss.Material
	weightPenalty float64
}

// NewTrussExperiment builds a truss experiment. weightPenalty scales the
// structure mass subtracted from the factor of safety; zero disables it.
func NewTrussExperiment(seeds []hexmap.Coord, mat truss.Material, weightPenalty float64) *TrussExperiment {
	return &TrussExperiment{
		baseExperiment: baseExperiment{seeds: seeds},
		material:       mat,
		weightPenalty:  weightPenalty,
	}
}

// Fitness solves the grown structure and returns its penalized factor of
// safety. Hexes not connected to the foundation row carry no load and are
// left out of the analysis.
func (e *TrussExperiment) Fitness() float64 {
	grid := e.sim.Grid()
	coords := truss.SupportedCoords(grid)
	if len(coords) == 0 {
		return 0
	}
	t, err := truss.FromCoords(coords, grid.Height(), e.material)
	if err != nil {
		return 0
	}
	fos, weight, err := t.Evaluate()
	if err != nil {
		return 0
	}
	return fos - e.weightPenalty*weight
}
