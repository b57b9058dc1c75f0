package growth

import (
	"math"
	"testing"

	"github.com/pthm-cable/hexgrow/hexmap"
	"github.com/pthm-cable/hexgrow/sim"
	"github.com/pthm-cable/hexgrow/truss"
)

var (
	_ sim.Experiment = (*PatternExperiment)(nil)
	_ sim.Experiment = (*TrussExperiment)(nil)
)

// scriptGenome drives growth tests with a fixed rule instead of a network.
// It uses the base layout only, no modules.
type scriptGenome struct {
	decide    func(inputs []float64) []float64
	target    float64
	hasTarget bool
}

func (g *scriptGenome) NumInputs() int                  { return BaseInputCount }
func (g *scriptGenome) NumOutputs() int                 { return BaseOutputCount }
func (g *scriptGenome) NonModuleInputs() int            { return BaseInputCount }
func (g *scriptGenome) NonModuleOutputs() int           { return BaseOutputCount }
func (g *scriptGenome) Modules() []sim.ModuleDescriptor { return nil }
func (g *scriptGenome) TargetFitness() (float64, bool)  { return g.target, g.hasTarget }

func (g *scriptGenome) Decide(inputs []float64) ([]float64, error) {
	if g.decide == nil {
		return make([]float64, BaseOutputCount), nil
	}
	return g.decide(inputs), nil
}

func newGrowthSim(t *testing.T, g sim.Genome, e sim.Experiment, opts sim.Options) *sim.Simulation {
	t.Helper()
	s, err := sim.New(g, e, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func cellAt(t *testing.T, s *sim.Simulation, c hexmap.Coord) *sim.Cell {
	t.Helper()
	for _, cell := range s.Cells() {
		if cell.Coord == c {
			return cell
		}
	}
	t.Fatalf("no cell at %v", c)
	return nil
}

func TestBindPlantsSeeds(t *testing.T) {
	seeds := []hexmap.Coord{{Col: 0, Row: 3}, {Col: 1, Row: 3}}
	e := NewPatternExperiment(nil, seeds)
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})

	if e.Simulation() != s {
		t.Error("experiment not bound to its simulation")
	}
	if got := len(s.Cells()); got != len(seeds) {
		t.Fatalf("planted %d cells, want %d", got, len(seeds))
	}
	for _, c := range seeds {
		if !s.Grid().Occupied(c) {
			t.Errorf("seed %v not occupied", c)
		}
	}
}

func TestBaseInputs(t *testing.T) {
	seeds := []hexmap.Coord{{Col: 1, Row: 1}, {Col: 2, Row: 1}}
	e := NewPatternExperiment(nil, seeds)
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})

	tests := []struct {
		coord hexmap.Coord
		want  []float64
	}{
		// (1,1) sees its east neighbor plus the bias.
		{hexmap.Coord{Col: 1, Row: 1}, []float64{1, 0, 0, 0, 0, 0, 1}},
		// (2,1) sees its west neighbor plus the bias.
		{hexmap.Coord{Col: 2, Row: 1}, []float64{0, 0, 0, 1, 0, 0, 1}},
	}
	for _, tt := range tests {
		got := e.BaseInputs(cellAt(t, s, tt.coord))
		if len(got) != BaseInputCount {
			t.Fatalf("inputs for %v have length %d, want %d", tt.coord, len(got), BaseInputCount)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("inputs for %v = %v, want %v", tt.coord, got, tt.want)
				break
			}
		}
	}
}

func TestBaseOutputsDivide(t *testing.T) {
	seeds := []hexmap.Coord{{Col: 1, Row: 1}}
	e := NewPatternExperiment(nil, seeds)
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})
	c := cellAt(t, s, seeds[0])

	// Exactly at the threshold nothing fires.
	outputs := make([]float64, BaseOutputCount)
	outputs[hexmap.DirE] = DivideThreshold
	e.BaseOutputs(c, outputs)
	if got := s.Grid().Count(); got != 1 {
		t.Fatalf("threshold activation divided: %d cells, want 1", got)
	}

	outputs[hexmap.DirE] = 0.9
	e.BaseOutputs(c, outputs)
	east := hexmap.Neighbor(seeds[0], hexmap.DirE)
	if !s.Grid().Occupied(east) {
		t.Fatalf("division toward %v did not occupy %v", hexmap.DirE, east)
	}
	if got := s.Grid().Count(); got != 2 {
		t.Fatalf("after one division: %d cells, want 2", got)
	}
}

func TestBaseOutputsApoptosisFirst(t *testing.T) {
	seeds := []hexmap.Coord{{Col: 1, Row: 1}}
	e := NewPatternExperiment(nil, seeds)
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})
	c := cellAt(t, s, seeds[0])

	// Every output fires, but apoptosis wins: the cell dies without
	// dividing anywhere.
	outputs := make([]float64, BaseOutputCount)
	for i := range outputs {
		outputs[i] = 0.9
	}
	e.BaseOutputs(c, outputs)

	if c.Alive {
		t.Error("cell survived apoptosis")
	}
	if got := s.Grid().Count(); got != 0 {
		t.Errorf("grid holds %d cells after apoptosis, want 0", got)
	}
}

func TestPatternFitness(t *testing.T) {
	target := []hexmap.Coord{{Col: 1, Row: 1}, {Col: 2, Row: 1}}
	e := NewPatternExperiment(target, target[:1])
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})

	if got := e.Fitness(); got != 1 {
		t.Errorf("one matched hex scores %v, want 1", got)
	}

	// An off-target cell cancels a matched one.
	s.CreateCell(hexmap.Coord{Col: 3, Row: 3})
	if got := e.Fitness(); got != 0 {
		t.Errorf("one matched plus one extra scores %v, want 0", got)
	}

	// Completing the target raises the score by one.
	s.CreateCell(target[1])
	if got := e.Fitness(); got != 1 {
		t.Errorf("two matched plus one extra scores %v, want 1", got)
	}

	if got := e.MaxFitness(); got != 2 {
		t.Errorf("MaxFitness = %v, want 2", got)
	}
}

func TestPatternRunReachesTarget(t *testing.T) {
	target := []hexmap.Coord{{Col: 1, Row: 1}, {Col: 2, Row: 1}}
	e := NewPatternExperiment(target, target)
	g := &scriptGenome{target: e.MaxFitness(), hasTarget: true}
	s := newGrowthSim(t, g, e, sim.Options{Width: 4, Height: 4})

	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != sim.TargetFitnessReached {
		t.Errorf("reason = %v, want %v", res.Reason, sim.TargetFitnessReached)
	}
	if res.Steps != 1 {
		t.Errorf("steps = %d, want 1", res.Steps)
	}
	if res.MaxFitness != e.MaxFitness() {
		t.Errorf("max fitness = %v, want %v", res.MaxFitness, e.MaxFitness())
	}
}

func TestParsePattern(t *testing.T) {
	coords, width, height, err := ParsePattern("# . #\n . # .\n# # #\n")
	if err != nil {
		t.Fatalf("ParsePattern: %v", err)
	}
	if width != 3 || height != 3 {
		t.Fatalf("size = %dx%d, want 3x3", width, height)
	}
	want := []hexmap.Coord{
		{Col: 0, Row: 0}, {Col: 2, Row: 0},
		{Col: 1, Row: 1},
		{Col: 0, Row: 2}, {Col: 1, Row: 2}, {Col: 2, Row: 2},
	}
	if len(coords) != len(want) {
		t.Fatalf("parsed %d coords, want %d", len(coords), len(want))
	}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("coords[%d] = %v, want %v", i, coords[i], want[i])
		}
	}
}

func TestParsePatternErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"ragged rows", "##\n#"},
		{"unknown cell", "#x#"},
		{"empty", "  \n\t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParsePattern(tt.text); err == nil {
				t.Fatalf("ParsePattern(%q) succeeded, want error", tt.text)
			}
		})
	}
}

func TestTrussFitnessMatchesDirect(t *testing.T) {
	// Two foundation seeds plus an apex form the smallest stable triangle.
	seeds := []hexmap.Coord{{Col: 0, Row: 3}, {Col: 1, Row: 3}, {Col: 1, Row: 2}}
	mat := truss.DefaultMaterial()

	e := NewTrussExperiment(seeds, mat, 0)
	s := newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})

	direct, err := truss.FromCoords(truss.SupportedCoords(s.Grid()), 4, mat)
	if err != nil {
		t.Fatalf("FromCoords: %v", err)
	}
	fos, weight, err := direct.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got := e.Fitness(); got != fos {
		t.Errorf("fitness = %v, want factor of safety %v", got, fos)
	}

	penalized := NewTrussExperiment(seeds, mat, 0.1)
	newGrowthSim(t, &scriptGenome{}, penalized, sim.Options{Width: 4, Height: 4})
	if got, want := penalized.Fitness(), fos-0.1*weight; math.Abs(got-want) > 1e-12 {
		t.Errorf("penalized fitness = %v, want %v", got, want)
	}
}

func TestTrussFitnessNoSupport(t *testing.T) {
	// A cell floating above the foundation row carries nothing.
	seeds := []hexmap.Coord{{Col: 1, Row: 1}}
	e := NewTrussExperiment(seeds, truss.DefaultMaterial(), 0)
	newGrowthSim(t, &scriptGenome{}, e, sim.Options{Width: 4, Height: 4})

	if got := e.Fitness(); got != 0 {
		t.Errorf("unsupported shape scores %v, want 0", got)
	}
}

func TestGrowTriangleRun(t *testing.T) {
	// Rule: a cell with an east neighbor divides northeast. From two
	// foundation seeds this builds one apex on the first tick and then
	// holds the shape until the inactivity window closes the run.
	seeds := []hexmap.Coord{{Col: 0, Row: 3}, {Col: 1, Row: 3}}
	g := &scriptGenome{decide: func(in []float64) []float64 {
		out := make([]float64, BaseOutputCount)
		if in[hexmap.DirE] == 1 {
			out[hexmap.DirNE] = 1
		}
		return out
	}}
	mat := truss.DefaultMaterial()
	e := NewTrussExperiment(seeds, mat, 0)
	s := newGrowthSim(t, g, e, sim.Options{Width: 4, Height: 4, MaxSteps: 64})

	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != sim.InactivityTimeout {
		t.Errorf("reason = %v, want %v", res.Reason, sim.InactivityTimeout)
	}
	if res.Steps != 6 {
		t.Errorf("steps = %d, want 6", res.Steps)
	}

	apex := hexmap.Coord{Col: 1, Row: 2}
	if got := s.Grid().Count(); got != 3 {
		t.Fatalf("final population = %d, want 3", got)
	}
	if !s.Grid().Occupied(apex) {
		t.Fatalf("apex %v never grew", apex)
	}

	// The best score observed is the finished triangle's factor of
	// safety, computed through the same analysis the experiment uses.
	direct, err := truss.FromCoords(append(seeds, apex), 4, mat)
	if err != nil {
		t.Fatalf("FromCoords: %v", err)
	}
	fos, _, err := direct.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(res.MaxFitness-fos) > 1e-12*math.Abs(fos) {
		t.Errorf("max fitness = %v, want triangle factor of safety %v", res.MaxFitness, fos)
	}
}

func TestCenterSeeds(t *testing.T) {
	got := CenterSeeds(8, 8)
	want := hexmap.Coord{Col: 4, Row: 4}
	if len(got) != 1 || got[0] != want {
		t.Errorf("CenterSeeds(8, 8) = %v, want [%v]", got, want)
	}
}

func TestBottomSeeds(t *testing.T) {
	got := BottomSeeds(4, 4, 2)
	want := []hexmap.Coord{{Col: 1, Row: 3}, {Col: 2, Row: 3}}
	if len(got) != len(want) {
		t.Fatalf("BottomSeeds(4, 4, 2) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("seed[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := BottomSeeds(4, 4, 10); len(got) != 4 {
		t.Errorf("count above width yields %d seeds, want 4", len(got))
	}
	if got := BottomSeeds(4, 4, 0); len(got) != 1 {
		t.Errorf("zero count yields %d seeds, want 1", len(got))
	}
}

func TestNoiseSeeds(t *testing.T) {
	a := NoiseSeeds(8, 8, 42, 0.1)
	b := NoiseSeeds(8, 8, 42, 0.1)
	if len(a) != len(b) {
		t.Fatalf("same seed gave %d then %d coords", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}
	for _, c := range a {
		if c.Col < 0 || c.Col >= 8 || c.Row < 0 || c.Row >= 8 {
			t.Errorf("seed %v outside the 8x8 grid", c)
		}
	}

	// An unreachable threshold falls back to the center.
	fallback := NoiseSeeds(8, 8, 42, 2)
	center := CenterSeeds(8, 8)
	if len(fallback) != 1 || fallback[0] != center[0] {
		t.Errorf("impossible threshold = %v, want center fallback %v", fallback, center)
	}
}
