package growth

import (
	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/noise"
)

// CenterSeeds places a single seed in the middle of the grid.
func CenterSeeds(width, height int) []hexmap.Coord {
	return []hexmap.Coord{{Col: width / 2, Row: height / 2}}
}

// BottomSeeds places count seeds centered on the foundation row. The count
// is clamped to [1, width].
func BottomSeeds(width, height, count int) []hexmap.Coord {
	if count > width {
		count = width
	}
	if count < 1 {
		count = 1
	}
	start := (width - count) / 2
	coords := make([]hexmap.Coord, count)
	for i := range coords {
		coords[i] = hexmap.Coord{Col: start + i, Row: height - 1}
	}
	return coords
}

// noiseScale spreads grid coordinates across the noise field. The step must
// not be an integer: gradient noise vanishes on the integer lattice.
const noiseScale = 0.37

// NoiseSeeds scatters seeds where a gradient noise field exceeds the
// threshold. The same seed value always yields the same scatter. If no hex
// qualifies, it falls back to a single center seed.
func NoiseSeeds(width, height int, seed int64, threshold float64) []hexmap.Coord {
	p := noise.New(seed)
	var coords []hexmap.Coord
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if p.At(float64(col)*noiseScale, float64(row)*noiseScale) > threshold {
				coords = append(coords, hexmap.Coord{Col: col, Row: row})
			}
		}
	}
	if len(coords) == 0 {
		return CenterSeeds(width, height)
	}
	return coords
}
