package sim

import (
	"errors"
	"fmt"
	"math"
)

// State is a simulation's lifecycle position: runs move from NotStarted
// through Running to exactly one Terminated.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateTerminated
)

var stateNames = [...]string{"NotStarted", "Running", "Terminated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Reason records why a run terminated.
type Reason int

const (
	// ReasonNone means the run has not terminated.
	ReasonNone Reason = iota
	// MaxStepsReached: the tick budget ran out.
	MaxStepsReached
	// InactivityTimeout: no cell was created or destroyed for more than
	// the inactivity window.
	InactivityTimeout
	// TargetFitnessReached: the running maximum fitness hit the genome's
	// target exactly.
	TargetFitnessReached
	// StateRepeatDetected: the grid returned to a previously seen
	// occupancy pattern (only with BreakOnRepeat).
	StateRepeatDetected
)

var reasonNames = [...]string{
	"None", "MaxStepsReached", "InactivityTimeout",
	"TargetFitnessReached", "StateRepeatDetected",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return reasonNames[r]
}

// inactivityWindow is the number of consecutive quiet ticks after which a
// run stops. Fixed, like the exact-equality target rule; neither has ever
// needed to vary per experiment.
const inactivityWindow = 5

// Result is what a completed run reports.
type Result struct {
	// MaxFitness is the highest fitness observed across the whole run,
	// which may exceed the fitness at the terminating step. The loop
	// locates the best configuration reached, not the final one.
	MaxFitness float64

	// Steps is the number of ticks that completed.
	Steps int

	// Reason is why the run stopped.
	Reason Reason
}

// ErrAlreadyRun is returned by Run on a simulation that already ran.
// Simulations are single-use.
var ErrAlreadyRun = errors.New("sim: simulation already run")

// Run drives the simulation to termination and returns the best fitness
// observed. After every tick it scores the pattern, renders if a renderer
// is attached, and evaluates the stop conditions in a fixed order: fitness
// target, inactivity, repeated state, step budget.
func (s *Simulation) Run() (Result, error) {
	if s.state != StateNotStarted {
		return Result{}, ErrAlreadyRun
	}
	s.state = StateRunning

	// Experiments may score negative (penalties), so the running maximum
	// starts below any observable value. MaxSteps is at least one, so the
	// result always reports a sampled fitness.
	maxFitness := math.Inf(-1)
	target, hasTarget := s.genome.TargetFitness()

	for i := 0; i < s.maxSteps; i++ {
		if err := s.SuperStep(); err != nil {
			s.state = StateTerminated
			return Result{}, err
		}

		if f := s.exp.Fitness(); f > maxFitness {
			maxFitness = f
		}

		if s.renderer != nil {
			s.renderer.Render(s.grid)
		}

		if hasTarget && maxFitness == target {
			return s.terminate(maxFitness, TargetFitnessReached), nil
		}

		if s.stepCount-s.lastChange > inactivityWindow {
			if s.verbose {
				s.log.Info("run end: inactivity", "step", s.stepCount, "last_change", s.lastChange)
			}
			return s.terminate(maxFitness, InactivityTimeout), nil
		}

		if s.breakOnRepeat {
			fp := s.grid.Fingerprint()
			if _, seen := s.seenStates[fp]; seen {
				if s.verbose {
					s.log.Info("run end: repeated state", "step", s.stepCount)
				}
				return s.terminate(maxFitness, StateRepeatDetected), nil
			}
			s.seenStates[fp] = struct{}{}
		}
	}

	return s.terminate(maxFitness, MaxStepsReached), nil
}

func (s *Simulation) terminate(maxFitness float64, r Reason) Result {
	s.state = StateTerminated
	s.reason = r
	return Result{MaxFitness: maxFitness, Steps: s.stepCount, Reason: r}
}
