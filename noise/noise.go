// Package noise generates coherent Perlin noise, used to scatter
// irregular but reproducible seed patterns across the grid.
package noise

import (
	"math"
	"math/rand"
)

// Perlin is a seeded gradient-noise generator. Values are continuous in
// space and roughly within [-1, 1].
type Perlin struct {
	perm [512]int
}

// New creates a generator whose field is fully determined by seed.
func New(seed int64) *Perlin {
	p := &Perlin{}
	rng := rand.New(rand.NewSource(seed))

	var perm [256]int
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	// Duplicate so corner hashing never wraps.
	for i := 0; i < 256; i++ {
		p.perm[i] = perm[i]
		p.perm[i+256] = perm[i]
	}

	return p
}

// At3 returns the noise value at a 3D coordinate.
func (p *Perlin) At3(x, y, z float64) float64 {
	X := int(math.Floor(x)) & 255
	Y := int(math.Floor(y)) & 255
	Z := int(math.Floor(z)) & 255

	x -= math.Floor(x)
	y -= math.Floor(y)
	z -= math.Floor(z)

	u := fade(x)
	v := fade(y)
	w := fade(z)

	A := p.perm[X] + Y
	AA := p.perm[A] + Z
	AB := p.perm[A+1] + Z
	B := p.perm[X+1] + Y
	BA := p.perm[B] + Z
	BB := p.perm[B+1] + Z

	return lerp(w, lerp(v, lerp(u, grad(p.perm[AA], x, y, z),
		grad(p.perm[BA], x-1, y, z)),
		lerp(u, grad(p.perm[AB], x, y-1, z),
			grad(p.perm[BB], x-1, y-1, z))),
		lerp(v, lerp(u, grad(p.perm[AA+1], x, y, z-1),
			grad(p.perm[BA+1], x-1, y, z-1)),
			lerp(u, grad(p.perm[AB+1], x, y-1, z-1),
				grad(p.perm[BB+1], x-1, y-1, z-1))))
}

// At returns the noise value at a 2D coordinate.
func (p *Perlin) At(x, y float64) float64 {
	return p.At3(x, y, 0)
}

// Fractal sums octaves of noise at doubling frequency and decaying
// amplitude, normalized back to roughly [-1, 1]. Persistence controls how
// quickly higher octaves fade; 0.5 is a natural-looking default.
func (p *Perlin) Fractal(x, y float64, octaves int, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxValue := 0.0

	for i := 0; i < octaves; i++ {
		total += p.At(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	if maxValue == 0 {
		return 0
	}
	return total / maxValue
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}
