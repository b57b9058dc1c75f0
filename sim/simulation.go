package sim

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// Default bounds and step budget, matching the smallest useful experiment.
const (
	DefaultWidth    = 8
	DefaultHeight   = 8
	DefaultMaxSteps = 64
)

// Options configures a simulation run.
type Options struct {
	// Width and Height bound the grid. Zero values default to 8x8.
	Width  int
	Height int

	// MaxSteps caps the number of ticks. Zero defaults to 64.
	MaxSteps int

	// BreakOnRepeat terminates the run when the grid returns to a
	// previously seen occupancy pattern.
	BreakOnRepeat bool

	// Verbose logs per-tick population changes.
	Verbose bool

	// Log receives structured output. Nil uses slog.Default.
	Log *slog.Logger

	// Renderer, when non-nil, is called with the grid after every tick.
	Renderer Renderer
}

// Simulation is one growth run: grid, live cells, module instances, and the
// step/termination bookkeeping. Construct with New, drive with Run (or
// SuperStep directly in tests), then discard; instances are never reused.
type Simulation struct {
	genome Genome
	exp    Experiment
	grid   *hexmap.Map

	cells       []*Cell
	moduleSims  []ModuleSimulation
	moduleDescs []ModuleDescriptor

	nextCellID int
	stepCount  int
	lastChange int

	// Per-tick counters, reset at the start of every SuperStep.
	createdCells   int
	destroyedCells int

	maxSteps      int
	breakOnRepeat bool
	seenStates    map[uint64]struct{}

	state  State
	reason Reason

	verbose  bool
	log      *slog.Logger
	renderer Renderer
}

// New builds a simulation for one run. It resolves the genome's module list
// against the registry, validates the vector-layout arithmetic, and binds
// the experiment. Configuration problems (nil collaborators, unknown module
// kinds, inconsistent input/output counts) are reported here so runs never
// start misconfigured.
func New(genome Genome, exp Experiment, opts Options) (*Simulation, error) {
	if genome == nil {
		return nil, fmt.Errorf("sim: nil genome")
	}
	if exp == nil {
		return nil, fmt.Errorf("sim: nil experiment")
	}

	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Width < 0 || opts.Height < 0 || opts.MaxSteps < 0 {
		return nil, fmt.Errorf("sim: negative bounds or step budget (%dx%d, %d steps)",
			opts.Width, opts.Height, opts.MaxSteps)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	s := &Simulation{
		genome:        genome,
		exp:           exp,
		grid:          hexmap.New(opts.Width, opts.Height),
		maxSteps:      opts.MaxSteps,
		breakOnRepeat: opts.BreakOnRepeat,
		verbose:       opts.Verbose,
		log:           opts.Log,
		renderer:      opts.Renderer,
		state:         StateNotStarted,
	}
	if s.breakOnRepeat {
		s.seenStates = make(map[uint64]struct{})
	}

	// Resolve module simulations once, in genome order. The order fixes
	// the slice layout of every combined vector for the run's lifetime.
	descs := genome.Modules()
	s.moduleDescs = make([]ModuleDescriptor, len(descs))
	copy(s.moduleDescs, descs)
	s.moduleSims = make([]ModuleSimulation, 0, len(descs))
	for _, d := range s.moduleDescs {
		if d.Inputs < 0 || d.Outputs < 0 {
			return nil, fmt.Errorf("sim: module %q declares negative slice widths (%d in, %d out)",
				d.Kind, d.Inputs, d.Outputs)
		}
		ctor, ok := moduleRegistry[d.Kind]
		if !ok {
			return nil, fmt.Errorf("sim: unknown module kind %q", d.Kind)
		}
		ms, err := ctor(s, d)
		if err != nil {
			return nil, fmt.Errorf("sim: constructing module %q: %w", d.Kind, err)
		}
		s.moduleSims = append(s.moduleSims, ms)
	}

	if err := s.checkLayout(); err != nil {
		return nil, err
	}

	exp.Bind(s)
	return s, nil
}

// checkLayout verifies the genome's declared totals against the base widths
// plus the module widths.
func (s *Simulation) checkLayout() error {
	nmi, nmo := s.genome.NonModuleInputs(), s.genome.NonModuleOutputs()
	if nmi < 0 || nmo < 0 {
		return fmt.Errorf("sim: negative base vector widths (%d in, %d out)", nmi, nmo)
	}
	inputs, outputs := nmi, nmo
	for _, d := range s.moduleDescs {
		inputs += d.Inputs
		outputs += d.Outputs
	}
	if inputs != s.genome.NumInputs() {
		return fmt.Errorf("sim: genome declares %d inputs but base plus modules sum to %d",
			s.genome.NumInputs(), inputs)
	}
	if outputs != s.genome.NumOutputs() {
		return fmt.Errorf("sim: genome declares %d outputs but base plus modules sum to %d",
			s.genome.NumOutputs(), outputs)
	}
	return nil
}

// Grid returns the simulation's grid. Mutate occupancy only through the
// lifecycle methods; direct Set/Clear calls desynchronize the registry.
func (s *Simulation) Grid() *hexmap.Map { return s.grid }

// Genome returns the shared genome driving every cell.
func (s *Simulation) Genome() Genome { return s.genome }

// Cells returns the live-cell list in creation order. Callers must treat it
// as read-only; cells join and leave only through the lifecycle methods.
func (s *Simulation) Cells() []*Cell { return s.cells }

// ModuleSimulations returns the resolved module instances in genome order.
// Callers may inspect module state but must not reorder the slice.
func (s *Simulation) ModuleSimulations() []ModuleSimulation { return s.moduleSims }

// StepCount returns the number of completed ticks.
func (s *Simulation) StepCount() int { return s.stepCount }

// LastChange returns the tick index of the most recent cell creation or
// destruction.
func (s *Simulation) LastChange() int { return s.lastChange }

// CreatedCells returns the number of cells created during the current tick
// (or the last completed one, between ticks).
func (s *Simulation) CreatedCells() int { return s.createdCells }

// DestroyedCells returns the number of cells destroyed during the current
// tick (or the last completed one, between ticks).
func (s *Simulation) DestroyedCells() int { return s.destroyedCells }

// State returns the run's lifecycle state.
func (s *Simulation) State() State { return s.state }

// TerminationReason returns why the run stopped, or ReasonNone while it has
// not terminated.
func (s *Simulation) TerminationReason() Reason { return s.reason }

// MaxSteps returns the configured tick budget.
func (s *Simulation) MaxSteps() int { return s.maxSteps }
