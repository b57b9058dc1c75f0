package growth

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// PatternExperiment scores a grown shape against a target mask. Every
// occupied target hex earns a point and every occupied hex outside the
// target loses one, so the maximum equals the target size and is reached
// exactly when the grown shape matches the target.
type PatternExperiment struct {
	baseExperiment
	target map[hexmap.Coord]bool
}

// NewPatternExperiment builds a pattern experiment from a target mask and
// the seed cells to start growth from.
func NewPatternExperiment(target, seeds []hexmap.Coord) *PatternExperiment {
	set := make(map[hexmap.Coord]bool, len(target))
	for _, c := range target {
		set[c] = true
	}
	return &PatternExperiment{
		baseExperiment: baseExperiment{seeds: seeds},
		target:         set,
	}
}

// Fitness counts matched target hexes minus occupied hexes off the target.
func (e *PatternExperiment) Fitness() float64 {
	matched, extra := 0, 0
	for _, c := range e.sim.Grid().OccupiedCoords() {
		if e.target[c] {
			matched++
		} else {
			extra++
		}
	}
	return float64(matched - extra)
}

// MaxFitness is the score of a perfect reproduction. Use it as the run's
// fitness target to stop as soon as the shape is grown.
func (e *PatternExperiment) MaxFitness() float64 { return float64(len(e.target)) }

// ParsePattern reads a target mask from rows of '#' (occupied) and '.'
// (empty). Blank lines are skipped and spaces are ignored, so odd rows may
// be indented half a hex the way ASCII renders draw them. All rows must
// have the same number of cells. Returns the occupied coordinates in
// row-major order plus the mask's width and height.
func ParsePattern(text string) ([]hexmap.Coord, int, int, error) {
	var coords []hexmap.Coord
	width, rows := 0, 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(strings.TrimSpace(line), " ", "")
		if line == "" {
			continue
		}
		if width == 0 {
			width = len(line)
		} else if len(line) != width {
			return nil, 0, 0, fmt.Errorf("growth: pattern row %d has %d cells, want %d", rows, len(line), width)
		}
		for col, ch := range line {
			switch ch {
			case '#':
				coords = append(coords, hexmap.Coord{Col: col, Row: rows})
			case '.':
			default:
				return nil, 0, 0, fmt.Errorf("growth: pattern row %d: unexpected %q", rows, ch)
			}
		}
		rows++
	}
	if rows == 0 {
		return nil, 0, 0, fmt.Errorf("growth: empty pattern")
	}
	return coords, width, rows, nil
}
