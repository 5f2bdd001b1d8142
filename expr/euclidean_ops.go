package expr

import (
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// AddEuclidean3 computes y = a + b.
type AddEuclidean3 struct{ A, B Euclidean3Node }

func (o *AddEuclidean3) Evaluate() [3]float64 {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
func (o *AddEuclidean3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *AddEuclidean3) EvaluateJacobians(c *jac.Container) error {
	if err := pushE3AndRecurse(c, o.A, identity(3)); err != nil {
		return err
	}
	return pushE3AndRecurse(c, o.B, identity(3))
}

// SubEuclidean3 computes y = a - b.
type SubEuclidean3 struct{ A, B Euclidean3Node }

func (o *SubEuclidean3) Evaluate() [3]float64 {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
func (o *SubEuclidean3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *SubEuclidean3) EvaluateJacobians(c *jac.Container) error {
	if err := pushE3AndRecurse(c, o.A, identity(3)); err != nil {
		return err
	}
	negI := []float64{-1, 0, 0, 0, -1, 0, 0, 0, -1}
	return pushE3AndRecurse(c, o.B, negI)
}

// CrossEuclidean3 computes y = a × b.
type CrossEuclidean3 struct{ A, B Euclidean3Node }

func (o *CrossEuclidean3) Evaluate() [3]float64 {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	return crossRaw(a, b)
}

func crossRaw(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (o *CrossEuclidean3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}

// d(a×b)/da = -skew(b); d(a×b)/db = skew(a)
func (o *CrossEuclidean3) EvaluateJacobians(c *jac.Container) error {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	negSkewB := negFlat(dvar.Skew(b))
	if err := pushE3AndRecurse(c, o.A, negSkewB); err != nil {
		return err
	}
	skewA := flat(dvar.Skew(a))
	return pushE3AndRecurse(c, o.B, skewA)
}

func flat(m [3][3]float64) []float64 {
	return []float64{m[0][0], m[0][1], m[0][2], m[1][0], m[1][1], m[1][2], m[2][0], m[2][1], m[2][2]}
}

func negFlat(m [3][3]float64) []float64 {
	f := flat(m)
	for i := range f {
		f[i] = -f[i]
	}
	return f
}

// pushE3AndRecurse pushes a 3x3 local Jacobian onto c's chain-rule stack,
// recurses into child, and pops before returning.
func pushE3AndRecurse(c *jac.Container, child Euclidean3Node, M []float64) error {
	guard, err := c.Apply(M, 3)
	if err != nil {
		return err
	}
	defer guard()
	return child.EvaluateJacobians(c)
}
