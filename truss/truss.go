// Package truss evaluates grown hex structures as pin-jointed 2D trusses.
// Occupied hexes become joints at their cell centers, edges between
// adjacent occupied hexes become members, and the bottom grid row is the
// foundation. The direct stiffness method yields member forces, from which
// weight and a buckling-aware factor of safety score a structure.
package truss

import (
	"fmt"
	"math"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// HexSize is the hex radius used for joint geometry, in meters. Adjacent
// joints sit sqrt(3)*HexSize apart.
const HexSize = 1.0

// Gravity is the downward acceleration applied to member self-weight.
const Gravity = 9.81

// Material describes the bar stock every member is made of.
type Material struct {
	// E is the Young's modulus in pascals.
	E float64
	// Area is the cross-section area in square meters. Members are treated
	// as solid round bars, which fixes the second moment for buckling.
	Area float64
	// Density is the mass density in kg/m^3.
	Density float64
	// Yield is the yield stress in pascals.
	Yield float64
}

// DefaultMaterial returns mild steel round bar, 1 cm^2 section.
func DefaultMaterial() Material {
	return Material{
		E:       200e9,
		Area:    1e-4,
		Density: 7850,
		Yield:   250e6,
	}
}

// Joint is a pin connection at a hex center. Fixed joints are supports
// restrained in both directions.
type Joint struct {
	X, Y  float64
	Fixed bool
}

// Member is a straight bar between two joints, identified by index.
type Member struct {
	I, J   int
	Length float64
}

// Truss is an analyzable structure built from a hex occupancy pattern.
type Truss struct {
	Joints  []Joint
	Members []Member

	material Material
	loads    map[int][2]float64 // extra point loads per joint index
}

// memberDirections are the three forward neighbor directions; walking them
// from every occupied hex visits each undirected edge exactly once.
var memberDirections = [3]hexmap.Direction{hexmap.DirE, hexmap.DirSW, hexmap.DirSE}

// FromMap builds a truss from every occupied coordinate of m. Occupied
// cells in the bottom row become supports.
func FromMap(m *hexmap.Map, mat Material) (*Truss, error) {
	return FromCoords(m.OccupiedCoords(), m.Height(), mat)
}

// FromCoords builds a truss from an explicit coordinate set. Coordinates
// must be unique. Height is the grid height: row height-1 becomes the
// foundation at elevation zero and its joints are fixed.
func FromCoords(coords []hexmap.Coord, height int, mat Material) (*Truss, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("truss: empty structure")
	}
	if mat.E <= 0 || mat.Area <= 0 || mat.Density <= 0 || mat.Yield <= 0 {
		return nil, fmt.Errorf("truss: material has non-positive properties: %+v", mat)
	}

	index := make(map[hexmap.Coord]int, len(coords))
	joints := make([]Joint, 0, len(coords))
	for _, c := range coords {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("truss: duplicate coordinate %v", c)
		}
		index[c] = len(joints)
		x, y := hexmap.Center(c, HexSize)
		// Flip the render axis so the foundation row is y=0 and structures
		// grow upward.
		joints = append(joints, Joint{
			X:     x,
			Y:     1.5*HexSize*float64(height-1) - y,
			Fixed: c.Row == height-1,
		})
	}

	members := make([]Member, 0, 3*len(coords))
	for _, c := range coords {
		i := index[c]
		for _, d := range memberDirections {
			n := hexmap.Neighbor(c, d)
			j, ok := index[n]
			if !ok {
				continue
			}
			dx := joints[j].X - joints[i].X
			dy := joints[j].Y - joints[i].Y
			members = append(members, Member{
				I:      i,
				J:      j,
				Length: math.Hypot(dx, dy),
			})
		}
	}

	return &Truss{
		Joints:   joints,
		Members:  members,
		material: mat,
		loads:    make(map[int][2]float64),
	}, nil
}

// AddLoad applies an extra point load (fx, fy) in newtons at a joint, on
// top of self-weight. Negative fy points down.
func (t *Truss) AddLoad(joint int, fx, fy float64) error {
	if joint < 0 || joint >= len(t.Joints) {
		return fmt.Errorf("truss: joint %d out of range [0, %d)", joint, len(t.Joints))
	}
	load := t.loads[joint]
	load[0] += fx
	load[1] += fy
	t.loads[joint] = load
	return nil
}

// Weight returns the total self-weight force of all members, in newtons.
func (t *Truss) Weight() float64 {
	total := 0.0
	for _, m := range t.Members {
		total += t.material.Density * t.material.Area * m.Length * Gravity
	}
	return total
}

// SupportedCoords returns the occupied coordinates of m that are connected
// to the bottom row through chains of adjacent occupied hexes, in
// row-major order. Cells a truss cannot carry load through are excluded.
func SupportedCoords(m *hexmap.Map) []hexmap.Coord {
	bottom := m.Height() - 1
	reached := make(map[hexmap.Coord]bool)
	var queue []hexmap.Coord

	for col := 0; col < m.Width(); col++ {
		c := hexmap.Coord{Col: col, Row: bottom}
		if m.Occupied(c) {
			reached[c] = true
			queue = append(queue, c)
		}
	}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, n := range hexmap.Neighbors(c) {
			if !reached[n] && m.Occupied(n) {
				reached[n] = true
				queue = append(queue, n)
			}
		}
	}

	kept := make([]hexmap.Coord, 0, len(reached))
	for _, c := range m.OccupiedCoords() {
		if reached[c] {
			kept = append(kept, c)
		}
	}
	return kept
}
