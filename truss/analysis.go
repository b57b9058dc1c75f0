package truss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxFactorOfSafety caps the reported factor of safety. Unstressed
// structures report the cap instead of infinity so fitness stays bounded.
const MaxFactorOfSafety = 100.0

// forceEpsilon is the axial force below which a member counts as unloaded.
const forceEpsilon = 1e-9

// Analysis is the solved response of a truss under self-weight plus any
// added point loads.
type Analysis struct {
	// Displacements holds two entries per joint, x then y, in meters.
	Displacements []float64
	// Forces holds one axial force per member in newtons, tension positive.
	Forces []float64
}

// MaxDisplacement returns the largest joint displacement magnitude.
func (a *Analysis) MaxDisplacement() float64 {
	maxDisp := 0.0
	for i := 0; i+1 < len(a.Displacements); i += 2 {
		d := math.Hypot(a.Displacements[i], a.Displacements[i+1])
		if d > maxDisp {
			maxDisp = d
		}
	}
	return maxDisp
}

// Analyze solves the truss with the direct stiffness method. It returns an
// error when the structure has no supports or is a mechanism.
func (t *Truss) Analyze() (*Analysis, error) {
	numJoints := len(t.Joints)

	supports := 0
	for _, j := range t.Joints {
		if j.Fixed {
			supports++
		}
	}
	if supports == 0 {
		return nil, fmt.Errorf("truss: no supports on the foundation row")
	}

	// Number the free degrees of freedom.
	dofIndex := make([]int, 2*numJoints)
	nFree := 0
	for i, j := range t.Joints {
		if j.Fixed {
			dofIndex[2*i] = -1
			dofIndex[2*i+1] = -1
		} else {
			dofIndex[2*i] = nFree
			dofIndex[2*i+1] = nFree + 1
			nFree += 2
		}
	}

	// Self-weight splits evenly between a member's end joints; extra point
	// loads add on top.
	loads := make([]float64, 2*numJoints)
	for _, m := range t.Members {
		w := t.material.Density * t.material.Area * m.Length * Gravity
		loads[2*m.I+1] -= w / 2
		loads[2*m.J+1] -= w / 2
	}
	for joint, extra := range t.loads {
		loads[2*joint] += extra[0]
		loads[2*joint+1] += extra[1]
	}

	analysis := &Analysis{
		Displacements: make([]float64, 2*numJoints),
		Forces:        make([]float64, len(t.Members)),
	}

	// Everything fixed: the foundation carries the loads directly and no
	// member strains.
	if nFree == 0 {
		return analysis, nil
	}

	stiffness := mat.NewSymDense(nFree, nil)
	for _, m := range t.Members {
		c := (t.Joints[m.J].X - t.Joints[m.I].X) / m.Length
		s := (t.Joints[m.J].Y - t.Joints[m.I].Y) / m.Length
		k := t.material.E * t.material.Area / m.Length

		// K_e = k * T T^t with T the axial direction per DOF slot.
		T := [4]float64{-c, -s, c, s}
		dofs := [4]int{dofIndex[2*m.I], dofIndex[2*m.I+1], dofIndex[2*m.J], dofIndex[2*m.J+1]}

		for p := 0; p < 4; p++ {
			for q := 0; q < 4; q++ {
				gp, gq := dofs[p], dofs[q]
				if gp < 0 || gq < 0 || gp > gq {
					continue
				}
				stiffness.SetSym(gp, gq, stiffness.At(gp, gq)+k*T[p]*T[q])
			}
		}
	}

	force := mat.NewVecDense(nFree, nil)
	for i := 0; i < numJoints; i++ {
		for axis := 0; axis < 2; axis++ {
			if g := dofIndex[2*i+axis]; g >= 0 {
				force.SetVec(g, loads[2*i+axis])
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(stiffness); !ok {
		return nil, fmt.Errorf("truss: structure is a mechanism (singular stiffness matrix)")
	}

	disp := mat.NewVecDense(nFree, nil)
	if err := chol.SolveVecTo(disp, force); err != nil {
		return nil, fmt.Errorf("truss: solving displacements: %w", err)
	}

	for i := 0; i < 2*numJoints; i++ {
		if g := dofIndex[i]; g >= 0 {
			analysis.Displacements[i] = disp.AtVec(g)
		}
	}

	for idx, m := range t.Members {
		c := (t.Joints[m.J].X - t.Joints[m.I].X) / m.Length
		s := (t.Joints[m.J].Y - t.Joints[m.I].Y) / m.Length
		k := t.material.E * t.material.Area / m.Length

		elongation := (analysis.Displacements[2*m.J]-analysis.Displacements[2*m.I])*c +
			(analysis.Displacements[2*m.J+1]-analysis.Displacements[2*m.I+1])*s
		analysis.Forces[idx] = k * elongation
	}

	return analysis, nil
}

// FactorOfSafety returns the governing member factor of safety for an
// analysis produced by this truss: the yield margin for all members, and
// additionally the Euler buckling margin of a pinned round bar for members
// in compression. Capped at MaxFactorOfSafety.
func (t *Truss) FactorOfSafety(a *Analysis) float64 {
	fos := MaxFactorOfSafety
	for i, m := range t.Members {
		n := a.Forces[i]
		if math.Abs(n) < forceEpsilon {
			continue
		}

		stress := math.Abs(n) / t.material.Area
		memberFoS := t.material.Yield / stress

		if n < 0 {
			inertia := t.material.Area * t.material.Area / (4 * math.Pi)
			critical := math.Pi * math.Pi * t.material.E * inertia / (m.Length * m.Length)
			if b := critical / -n; b < memberFoS {
				memberFoS = b
			}
		}

		if memberFoS < fos {
			fos = memberFoS
		}
	}
	return fos
}

// Evaluate analyzes the truss and returns its factor of safety and total
// self-weight in one call.
func (t *Truss) Evaluate() (fos, weight float64, err error) {
	analysis, err := t.Analyze()
	if err != nil {
		return 0, 0, err
	}
	return t.FactorOfSafety(analysis), t.Weight(), nil
}
