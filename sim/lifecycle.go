package sim

import (
	"fmt"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// nextID returns a fresh cell identifier. IDs start at 1 and are never
// reused within a simulation.
func (s *Simulation) nextID() int {
	s.nextCellID++
	return s.nextCellID
}

// CreateCell places a new default-type cell at c.
//
// The coordinate must be in bounds and empty; violating either is a fatal
// contract violation (the caller was required to check, as DivideCell
// does), so CreateCell panics rather than returning an error. On success
// the cell is registered, the per-tick created counter and the last-change
// marker advance, and every module's CellCreated hook runs in module order.
func (s *Simulation) CreateCell(c hexmap.Coord) *Cell {
	return s.CreateCellTyped(c, 0)
}

// CreateCellTyped is CreateCell with an explicit cell type.
func (s *Simulation) CreateCellTyped(c hexmap.Coord, cellType int) *Cell {
	if !s.grid.Valid(c) {
		panic(fmt.Sprintf("sim: create cell at out-of-bounds coordinate %v (bounds %dx%d)",
			c, s.grid.Width(), s.grid.Height()))
	}
	if s.grid.Occupied(c) {
		panic(fmt.Sprintf("sim: create cell at occupied coordinate %v", c))
	}

	s.lastChange = s.stepCount

	cell := &Cell{
		ID:       s.nextID(),
		Coord:    c,
		Type:     cellType,
		Alive:    true,
		UserData: make(map[string]any),
	}
	s.grid.Set(c, cell)
	s.cells = append(s.cells, cell)
	s.createdCells++

	for _, ms := range s.moduleSims {
		ms.CellCreated(cell)
	}
	return cell
}

// DestroyCell removes a live cell. Module CellDestroyed hooks run in module
// order before the cell leaves the registry and its grid slot clears; the
// cell is then marked dead, which is terminal. Destroying a dead cell is a
// contract violation.
func (s *Simulation) DestroyCell(cell *Cell) {
	if cell == nil || !cell.Alive {
		panic(fmt.Sprintf("sim: destroy of dead or nil cell %+v", cell))
	}

	s.lastChange = s.stepCount

	for _, ms := range s.moduleSims {
		ms.CellDestroyed(cell)
	}

	for i, c := range s.cells {
		if c == cell {
			s.cells = append(s.cells[:i], s.cells[i+1:]...)
			break
		}
	}
	s.grid.Clear(cell.Coord)
	s.destroyedCells++
	cell.Alive = false
}

// DivideCell grows a new cell in the given direction from cell.
//
// Division into an occupied or out-of-bounds neighbor is an expected,
// frequent outcome of growth, not an error: the call silently does
// nothing. A divide from a cell that already died this tick is likewise
// ignored.
func (s *Simulation) DivideCell(cell *Cell, dir hexmap.Direction) {
	if cell == nil || !cell.Alive {
		return
	}
	target := hexmap.Neighbor(cell.Coord, dir)
	if s.grid.Valid(target) && !s.grid.Occupied(target) {
		s.CreateCell(target)
	}
}
