package expr

import (
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// RotateEuclidean3 computes y = R·x. The convention required by spec.md
// §4.2 holds here: d(R·x)/dδ_R = -R·skew(x) (the right-perturbation
// model R⊞δ = R·exp(δ^)).
type RotateEuclidean3 struct {
	R Rotation3Node
	X Euclidean3Node
}

func (o *RotateEuclidean3) Evaluate() [3]float64 {
	return o.R.Evaluate().RotateVec(o.X.Evaluate())
}

func (o *RotateEuclidean3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.R.CollectDesignVariables(set)
	o.X.CollectDesignVariables(set)
}

func (o *RotateEuclidean3) EvaluateJacobians(c *jac.Container) error {
	q := o.R.Evaluate()
	x := o.X.Evaluate()
	Rmat := q.RotMat()
	dydR := negFlat(matMulRotSkew(Rmat, x))
	if err := pushE3AndRecurse(c, o.R, dydR); err != nil {
		return err
	}
	dydX := flat(Rmat)
	return pushE3AndRecurse(c, o.X, dydX)
}

// matMulRotSkew returns R·skew(x) flattened to a [3][3]float64.
func matMulRotSkew(R [3][3]float64, x [3]float64) [3][3]float64 {
	S := dvar.Skew(x)
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = R[i][0]*S[0][j] + R[i][1]*S[1][j] + R[i][2]*S[2][j]
		}
	}
	return out
}

// RotateRotation composes y = R1·R2 (Rotation3Node). Using the right
// perturbation model on both factors, δy = R2ᵀ·δ1 + δ2 (spec.md §4.2).
type RotateRotation struct {
	R1, R2 Rotation3Node
}

func (o *RotateRotation) Evaluate() dvar.Quat { return o.R1.Evaluate().Mul(o.R2.Evaluate()) }

func (o *RotateRotation) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.R1.CollectDesignVariables(set)
	o.R2.CollectDesignVariables(set)
}

func (o *RotateRotation) EvaluateJacobians(c *jac.Container) error {
	r2 := o.R2.Evaluate().RotMat()
	r2t := transpose3(r2)
	if err := pushE3AndRecurse3x3(c, o.R1, flat(r2t)); err != nil {
		return err
	}
	return pushE3AndRecurse3x3(c, o.R2, identity(3))
}

// RotationInverse computes y = R⁻¹ = Rᵀ. δy = -R·δ (spec.md §4.2 extended
// to the inverse operator, derived from R⊞δ = R·exp(δ^)).
type RotationInverse struct{ R Rotation3Node }

func (o *RotationInverse) Evaluate() dvar.Quat { return o.R.Evaluate().Conjugate() }

func (o *RotationInverse) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.R.CollectDesignVariables(set)
}

func (o *RotationInverse) EvaluateJacobians(c *jac.Container) error {
	R := o.R.Evaluate().RotMat()
	return pushE3AndRecurse3x3(c, o.R, negFlat(R))
}

func transpose3(m [3][3]float64) [3][3]float64 {
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// pushE3AndRecurse3x3 pushes a 3x3 local Jacobian and recurses into a
// rotation-valued child (rotation tangent spaces are 3-dimensional too, so
// the same chain-rule stack machinery used for Euclidean3 children applies
// unchanged).
func pushE3AndRecurse3x3(c *jac.Container, child Node, M []float64) error {
	guard, err := c.Apply(M, 3)
	if err != nil {
		return err
	}
	defer guard()
	return child.EvaluateJacobians(c)
}
