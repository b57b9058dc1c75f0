package evolve

import (
	"math"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/hexgrow/neural"
)

// Species is a group of genetically similar individuals. Members are
// reassigned every generation; the representative anchors compatibility
// comparisons and tracks the group across generations.
type Species struct {
	ID             int
	Representative *genetics.Genome
	Members        []*Individual
	BestFitness    float64
	Age            int // Generations since the species appeared
	Staleness      int // Generations without fitness improvement
}

// sortedMembers returns the members ordered best-first. Ties break on ID
// so reproduction stays deterministic under a fixed seed.
func (sp *Species) sortedMembers() []*Individual {
	out := make([]*Individual, len(sp.Members))
	copy(out, sp.Members)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fitness != out[j].Fitness {
			return out[i].Fitness > out[j].Fitness
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SpeciesManager partitions a population into species and tracks their
// fitness history across generations.
type SpeciesManager struct {
	Species       []*Species
	opts          *neat.Options
	nextSpeciesID int
	generation    int
}

// NewSpeciesManager creates a manager using the compatibility and
// stagnation settings from opts.
func NewSpeciesManager(opts *neat.Options) *SpeciesManager {
	return &SpeciesManager{opts: opts, nextSpeciesID: 1}
}

// Speciate reassigns every individual to the first species whose
// representative lies within the compatibility threshold, creating new
// species for outliers. Species that attract nobody are dropped, and the
// survivors re-anchor on their first member so representatives track
// genetic drift.
func (sm *SpeciesManager) Speciate(pop []*Individual) {
	for _, sp := range sm.Species {
		sp.Members = sp.Members[:0]
	}

	for _, ind := range pop {
		sp := sm.findCompatible(ind.Genome)
		if sp == nil {
			sp = &Species{
				ID:             sm.nextSpeciesID,
				Representative: ind.Genome,
				BestFitness:    math.Inf(-1),
			}
			sm.nextSpeciesID++
			sm.Species = append(sm.Species, sp)
		}
		sp.Members = append(sp.Members, ind)
		ind.SpeciesID = sp.ID
	}

	active := sm.Species[:0]
	for _, sp := range sm.Species {
		if len(sp.Members) == 0 {
			continue
		}
		sp.Representative = sp.Members[0].Genome
		active = append(active, sp)
	}
	sm.Species = active
}

func (sm *SpeciesManager) findCompatible(g *genetics.Genome) *Species {
	for _, sp := range sm.Species {
		if sp.Representative == nil {
			continue
		}
		if neural.Compatibility(g, sp.Representative, sm.opts) < sm.opts.CompatThreshold {
			return sp
		}
	}
	return nil
}

// Observe folds the current members' scores into each species' fitness
// history. An improvement resets the staleness counter.
func (sm *SpeciesManager) Observe() {
	for _, sp := range sm.Species {
		for _, ind := range sp.Members {
			if ind.Fitness > sp.BestFitness {
				sp.BestFitness = ind.Fitness
				sp.Staleness = 0
			}
		}
	}
}

// AllocateOffspring distributes a fixed offspring budget across species
// in proportion to mean member fitness. Scores are shifted so the worst
// individual sits at zero, which keeps negative fitness workable; if
// every share comes out zero the budget splits evenly. Largest-remainder
// rounding makes the counts sum to total exactly.
func (sm *SpeciesManager) AllocateOffspring(total int) map[int]int {
	counts := make(map[int]int, len(sm.Species))
	if total <= 0 || len(sm.Species) == 0 {
		return counts
	}

	minFit := math.Inf(1)
	for _, sp := range sm.Species {
		for _, ind := range sp.Members {
			if ind.Fitness < minFit {
				minFit = ind.Fitness
			}
		}
	}

	shares := make([]float64, len(sm.Species))
	var totalShare float64
	for i, sp := range sm.Species {
		var sum float64
		for _, ind := range sp.Members {
			sum += ind.Fitness - minFit
		}
		shares[i] = sum / float64(len(sp.Members))
		totalShare += shares[i]
	}

	if totalShare == 0 {
		base, extra := total/len(sm.Species), total%len(sm.Species)
		for i, sp := range sm.Species {
			counts[sp.ID] = base
			if i < extra {
				counts[sp.ID]++
			}
		}
		return counts
	}

	type slot struct {
		idx  int
		frac float64
	}
	slots := make([]slot, 0, len(sm.Species))
	assigned := 0
	for i, sp := range sm.Species {
		ideal := shares[i] / totalShare * float64(total)
		base := int(math.Floor(ideal))
		counts[sp.ID] = base
		assigned += base
		slots = append(slots, slot{idx: i, frac: ideal - float64(base)})
	}
	sort.SliceStable(slots, func(a, b int) bool { return slots[a].frac > slots[b].frac })
	for k := 0; assigned < total; k++ {
		counts[sm.Species[slots[k%len(slots)].idx].ID]++
		assigned++
	}
	return counts
}

// EndGeneration ages every species and drops the stagnant ones. Call once
// per generation, after reproduction has used the member lists.
func (sm *SpeciesManager) EndGeneration() {
	sm.generation++
	for _, sp := range sm.Species {
		sp.Age++
		sp.Staleness++
	}
	sm.removeStale()
}

// removeStale drops species that went DropOffAge generations without
// improvement. The best species always survives, so stagnation can never
// empty the population of its fittest line.
func (sm *SpeciesManager) removeStale() {
	if len(sm.Species) == 0 {
		return
	}
	bestIdx := 0
	for i, sp := range sm.Species {
		if sp.BestFitness > sm.Species[bestIdx].BestFitness {
			bestIdx = i
		}
	}
	active := sm.Species[:0]
	for i, sp := range sm.Species {
		if i == bestIdx || sp.Staleness < sm.opts.DropOffAge {
			active = append(active, sp)
		}
	}
	sm.Species = active
}
