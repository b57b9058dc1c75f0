// Package hexmap provides the bounded hexagonal grid a growth simulation
// runs on: occupancy storage, the six-way neighbor table, content hashing
// for cycle detection, and the coordinate geometry shared by renderers and
// structural analysis.
//
// Coordinates are odd-r offset coordinates: pointy-top hexes arranged in
// rows, with odd rows shifted half a hex to the right. The convention is
// fixed once here and applied consistently by every consumer.
package hexmap

import "fmt"

// Coord addresses one hex in odd-r offset coordinates.
type Coord struct {
	Col, Row int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// Direction enumerates the six hexagonal neighbor directions.
// Direction 0 is east; the rest proceed counterclockwise.
type Direction int

const (
	DirE Direction = iota
	DirNE
	DirNW
	DirW
	DirSW
	DirSE

	// NumDirections is the neighbor count of any hex.
	NumDirections = 6
)

var directionNames = [NumDirections]string{"E", "NE", "NW", "W", "SW", "SE"}

func (d Direction) String() string {
	if d < 0 || d >= NumDirections {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// neighborOffsets maps row parity then direction to a coordinate delta.
// Odd-r offset neighbors differ between even and odd rows because odd rows
// are shifted right.
var neighborOffsets = [2][NumDirections]Coord{
	// Even rows.
	{{1, 0}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}},
	// Odd rows.
	{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {0, 1}, {1, 1}},
}

// Neighbor returns the coordinate adjacent to c in direction d.
// The result may lie outside any particular map's bounds; callers that care
// must check with Map.Valid.
func Neighbor(c Coord, d Direction) Coord {
	off := neighborOffsets[c.Row&1][d]
	return Coord{Col: c.Col + off.Col, Row: c.Row + off.Row}
}

// Neighbors returns all six neighbors of c in direction order.
func Neighbors(c Coord) [NumDirections]Coord {
	var out [NumDirections]Coord
	parity := c.Row & 1
	for d := 0; d < NumDirections; d++ {
		off := neighborOffsets[parity][d]
		out[d] = Coord{Col: c.Col + off.Col, Row: c.Row + off.Row}
	}
	return out
}

// cube converts an odd-r offset coordinate to cube coordinates.
func cube(c Coord) (q, r, s int) {
	q = c.Col - (c.Row-(c.Row&1))/2
	r = c.Row
	return q, r, -q - r
}

// Distance returns the hex grid distance between two coordinates.
func Distance(a, b Coord) int {
	aq, ar, as := cube(a)
	bq, br, bs := cube(b)
	dq := absInt(aq - bq)
	dr := absInt(ar - br)
	ds := absInt(as - bs)
	return maxInt(dq, maxInt(dr, ds))
}

// Center returns the Cartesian center of hex c for pointy-top hexes with
// the given circumradius. Odd rows are shifted half a hex width right,
// matching the odd-r convention.
func Center(c Coord, size float64) (x, y float64) {
	const sqrt3 = 1.7320508075688772
	x = size * sqrt3 * (float64(c.Col) + 0.5*float64(c.Row&1))
	y = size * 1.5 * float64(c.Row)
	return x, y
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
