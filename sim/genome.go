package sim

import (
	"fmt"

	"github.com/pthm-cable/hexgrow/hexmap"
)

// Genome describes the shared decision function and the vector layout it
// expects. One genome drives every cell of a simulation; cells never own
// genomes.
//
// The layout arithmetic must satisfy
// NumInputs == NonModuleInputs + sum of module input widths (and the same
// for outputs). New verifies this at construction.
type Genome interface {
	// NumInputs is the total input vector length the decision function accepts.
	NumInputs() int
	// NumOutputs is the total output vector length the decision function emits.
	NumOutputs() int
	// NonModuleInputs is the width of the base input slice supplied by the
	// experiment, before any module slices.
	NonModuleInputs() int
	// NonModuleOutputs is the width of the base output slice consumed by
	// the experiment.
	NonModuleOutputs() int
	// Modules returns the ordered module descriptors. The order is fixed
	// for the lifetime of a simulation and determines where each module's
	// slice lands in the combined vectors.
	Modules() []ModuleDescriptor
	// Decide maps one cell's input vector to its output vector. It must be
	// a pure function of its argument, and each call must return a slice
	// the caller owns: the engine stores every cell's outputs before
	// applying any of them.
	Decide(inputs []float64) ([]float64, error)
	// TargetFitness returns the fitness value at which a run stops early,
	// and whether such a target is set. The comparison is exact equality
	// against the running maximum.
	TargetFitness() (float64, bool)
}

// ModuleDescriptor names a behavior extension and the fixed slice widths it
// contributes to every cell's input and output vectors.
type ModuleDescriptor struct {
	// Kind selects a registered module constructor.
	Kind string
	// Inputs is the input slice width this module contributes.
	Inputs int
	// Outputs is the output slice width this module contributes.
	Outputs int
	// Config carries module-specific options, e.g. {"radius": 2, "decay": 0.1}.
	Config map[string]any
}

// ModuleSimulation is one live module instance attached to one simulation
// run. It holds whatever mutable state the module needs across steps; the
// owning simulation is its only user.
type ModuleSimulation interface {
	// CellCreated initializes module-owned state for a new cell. Called in
	// module order whenever a cell is created.
	CellCreated(c *Cell)
	// CellDestroyed releases module-owned state. Called in module order
	// before the cell leaves the registry.
	CellDestroyed(c *Cell)
	// CollectInputs returns this module's input slice for the cell. The
	// returned length must equal the descriptor's Inputs width.
	CollectInputs(c *Cell) []float64
	// ApplyOutputs consumes this module's output slice for the cell. It may
	// create or destroy cells through the simulation and must not assume
	// the cell is still alive after triggering a destruction.
	ApplyOutputs(c *Cell, outputs []float64)
	// StepEnd runs once per tick after every cell's outputs are applied,
	// in module order.
	StepEnd()
}

// ModuleConstructor builds a module simulation instance for one run.
// Constructors receive the owning simulation and the descriptor that named
// them; recognized Config keys are module-specific.
type ModuleConstructor func(s *Simulation, d ModuleDescriptor) (ModuleSimulation, error)

var moduleRegistry = map[string]ModuleConstructor{}

// RegisterModule makes a module kind available to simulations. It is
// typically called from a module package's init. Registering the same kind
// twice is a programming error.
func RegisterModule(kind string, ctor ModuleConstructor) {
	if kind == "" || ctor == nil {
		panic("sim: RegisterModule with empty kind or nil constructor")
	}
	if _, dup := moduleRegistry[kind]; dup {
		panic(fmt.Sprintf("sim: module kind %q registered twice", kind))
	}
	moduleRegistry[kind] = ctor
}

// Experiment supplies the concrete behavior a simulation runs: the base
// (non-module) slice of every cell's vectors and the fitness score of the
// current pattern. All methods are mandatory; New rejects a nil experiment
// so a missing implementation fails at construction, not mid-run.
type Experiment interface {
	// Bind attaches the experiment to its simulation before any step runs.
	// Experiments keep the reference to create, divide, and destroy cells.
	Bind(s *Simulation)
	// BaseInputs returns the base input slice for a cell. Its length must
	// equal the genome's NonModuleInputs.
	BaseInputs(c *Cell) []float64
	// BaseOutputs consumes the base output slice for a cell.
	BaseOutputs(c *Cell, outputs []float64)
	// Fitness scores the current grid pattern. Runs track the maximum
	// value this returns across all completed steps.
	Fitness() float64
}

// Stepper is an optional Experiment upgrade: a per-tick hook invoked after
// all module StepEnd hooks.
type Stepper interface {
	StepEnd()
}

// Renderer receives the grid once per completed tick when attached to a
// simulation. Rendering is best-effort and must not mutate the map.
type Renderer interface {
	Render(m *hexmap.Map)
}
