// Package render provides renderer implementations for growth runs.
// Headless runs simply attach no renderer; the engine treats nil as
// absent.
package render

import (
	"fmt"
	"io"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// ASCIIRenderer writes one text frame per tick to W, each preceded by a
// step header. Frames are numbered from 1 in arrival order.
type ASCIIRenderer struct {
	W io.Writer

	frame int
}

// NewASCIIRenderer creates a renderer writing to w.
func NewASCIIRenderer(w io.Writer) *ASCIIRenderer {
	return &ASCIIRenderer{W: w}
}

// Render implements sim.Renderer.
func (r *ASCIIRenderer) Render(m *hexmap.Map) {
	r.frame++
	fmt.Fprintf(r.W, "--- step %d (%d cells)\n%s", r.frame, m.Count(), m.ASCII())
}
