package sim

import "fmt"

// pendingOutput pairs a cell with the decision output computed for it
// during the collect phase.
type pendingOutput struct {
	cell    *Cell
	outputs []float64
}

// SuperStep runs one full tick: collect every cell's decision output
// against the pre-tick population, then apply all outputs, then run the
// per-tick hooks. The two phases are strictly separated so that no cell's
// inputs ever observe another cell's same-tick mutation, regardless of
// processing order.
func (s *Simulation) SuperStep() error {
	// 1. Reset the per-tick counters.
	s.createdCells = 0
	s.destroyedCells = 0

	if s.verbose {
		s.log.Info("step start", "step", s.stepCount, "cells", len(s.cells))
	}

	// 2. Collect phase: snapshot the population and compute every output
	// before any is applied.
	pending, err := s.collectOutputs()
	if err != nil {
		return err
	}

	// 3. Apply phase: walk the snapshot, not the (now mutable) live list.
	s.applyOutputs(pending)

	// 4. Per-tick hooks: every module in order, then the experiment's own.
	for _, ms := range s.moduleSims {
		ms.StepEnd()
	}
	if st, ok := s.exp.(Stepper); ok {
		st.StepEnd()
	}

	if s.verbose {
		s.log.Info("step end",
			"step", s.stepCount,
			"created", s.createdCells,
			"destroyed", s.destroyedCells,
			"cells", len(s.cells))
	}

	s.stepCount++
	return nil
}

// collectOutputs builds each live cell's combined input vector (base slice,
// then each module's slice in module order), runs the decision function,
// and returns the (cell, outputs) pairs. Nothing mutates during this phase,
// so the pair list doubles as the pre-tick snapshot the apply phase
// iterates.
func (s *Simulation) collectOutputs() ([]pendingOutput, error) {
	nmi := s.genome.NonModuleInputs()
	pending := make([]pendingOutput, 0, len(s.cells))

	for _, cell := range s.cells {
		inputs := make([]float64, 0, s.genome.NumInputs())

		base := s.exp.BaseInputs(cell)
		if len(base) != nmi {
			panic(fmt.Sprintf("sim: experiment produced %d base inputs for cell %d, genome declares %d",
				len(base), cell.ID, nmi))
		}
		inputs = append(inputs, base...)

		for i, ms := range s.moduleSims {
			mi := ms.CollectInputs(cell)
			if len(mi) != s.moduleDescs[i].Inputs {
				panic(fmt.Sprintf("sim: module %q produced %d inputs for cell %d, descriptor declares %d",
					s.moduleDescs[i].Kind, len(mi), cell.ID, s.moduleDescs[i].Inputs))
			}
			inputs = append(inputs, mi...)
		}

		outputs, err := s.genome.Decide(inputs)
		if err != nil {
			return nil, fmt.Errorf("sim: decision function failed for cell %d at step %d: %w",
				cell.ID, s.stepCount, err)
		}
		if len(outputs) != s.genome.NumOutputs() {
			panic(fmt.Sprintf("sim: decision function returned %d outputs, genome declares %d",
				len(outputs), s.genome.NumOutputs()))
		}

		pending = append(pending, pendingOutput{cell: cell, outputs: outputs})
	}
	return pending, nil
}

// applyOutputs distributes each stored output vector: the base slice to the
// experiment, then each module's slice in module order. A cell that died
// earlier in the phase is skipped entirely, and a cell that dies partway
// through its own sequence forfeits its remaining module slices. Dead
// entities are never operated on.
func (s *Simulation) applyOutputs(pending []pendingOutput) {
	nmo := s.genome.NonModuleOutputs()

	for _, p := range pending {
		if !p.cell.Alive {
			continue
		}

		s.exp.BaseOutputs(p.cell, p.outputs[:nmo])
		if !p.cell.Alive {
			continue
		}

		offset := nmo
		for i, ms := range s.moduleSims {
			width := s.moduleDescs[i].Outputs
			ms.ApplyOutputs(p.cell, p.outputs[offset:offset+width])
			offset += width
			if !p.cell.Alive {
				break
			}
		}
	}
}
