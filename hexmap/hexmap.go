package hexmap

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// Map is a bounded hexagonal grid with per-coordinate occupancy.
// Occupant values are opaque to this package; a simulation typically stores
// cell pointers. The zero occupant is "empty".
type Map struct {
	width  int
	height int
	cells  []any // row-major, index Row*width+Col
	count  int   // occupied coordinates
}

// New creates an empty map with the given bounds.
// Width and height must be positive.
func New(width, height int) *Map {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("hexmap: invalid bounds %dx%d", width, height))
	}
	return &Map{
		width:  width,
		height: height,
		cells:  make([]any, width*height),
	}
}

// Width returns the number of columns.
func (m *Map) Width() int { return m.width }

// Height returns the number of rows.
func (m *Map) Height() int { return m.height }

// Valid reports whether c lies within the map bounds.
func (m *Map) Valid(c Coord) bool {
	return c.Col >= 0 && c.Col < m.width && c.Row >= 0 && c.Row < m.height
}

// At returns the occupant at c, or nil if c is empty or out of bounds.
func (m *Map) At(c Coord) any {
	if !m.Valid(c) {
		return nil
	}
	return m.cells[c.Row*m.width+c.Col]
}

// Occupied reports whether c holds an occupant. Out-of-bounds coordinates
// are never occupied.
func (m *Map) Occupied(c Coord) bool {
	return m.At(c) != nil
}

// Set places v at c. Setting nil clears the slot.
// Setting an out-of-bounds coordinate is a contract violation.
func (m *Map) Set(c Coord, v any) {
	if !m.Valid(c) {
		panic(fmt.Sprintf("hexmap: set at out-of-bounds coordinate %v (bounds %dx%d)", c, m.width, m.height))
	}
	idx := c.Row*m.width + c.Col
	prev := m.cells[idx]
	m.cells[idx] = v
	if prev == nil && v != nil {
		m.count++
	} else if prev != nil && v == nil {
		m.count--
	}
}

// Clear empties the slot at c.
func (m *Map) Clear(c Coord) {
	m.Set(c, nil)
}

// Count returns the number of occupied coordinates.
func (m *Map) Count() int { return m.count }

// Fingerprint returns a hash of the current occupancy pattern.
// It is a pure function of which coordinates are occupied: independent of
// occupant identity, insertion history, and iteration order. Used by the
// run loop to detect repeated states.
func (m *Map) Fingerprint() uint64 {
	var fp uint64
	var buf [16]byte
	for row := 0; row < m.height; row++ {
		base := row * m.width
		for col := 0; col < m.width; col++ {
			if m.cells[base+col] == nil {
				continue
			}
			h := fnv.New64a()
			binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(col)))
			binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(row)))
			h.Write(buf[:])
			// XOR-fold keeps the result order-independent.
			fp ^= h.Sum64()
		}
	}
	return fp
}

// ASCII renders occupancy as text, one row per line, odd rows indented to
// suggest the hex stagger. Occupied hexes print '#', empty ones '.'.
func (m *Map) ASCII() string {
	var sb strings.Builder
	for row := 0; row < m.height; row++ {
		if row&1 == 1 {
			sb.WriteByte(' ')
		}
		base := row * m.width
		for col := 0; col < m.width; col++ {
			if col > 0 {
				sb.WriteByte(' ')
			}
			if m.cells[base+col] != nil {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// OccupiedCoords returns every occupied coordinate in row-major order.
func (m *Map) OccupiedCoords() []Coord {
	out := make([]Coord, 0, m.count)
	for row := 0; row < m.height; row++ {
		base := row * m.width
		for col := 0; col < m.width; col++ {
			if m.cells[base+col] != nil {
				out = append(out, Coord{Col: col, Row: row})
			}
		}
	}
	return out
}
