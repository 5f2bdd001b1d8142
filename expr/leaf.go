package expr

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// identity returns the n x n identity matrix, row-major.
func identity(n int) []float64 {
	m := make([]float64, n*n)
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
	return m
}

// LeafScalar wraps a *dvar.Scalar as a ScalarNode.
type LeafScalar struct {
	DV *dvar.Scalar
}

func (o *LeafScalar) Evaluate() float64 { return o.DV.Value() }

func (o *LeafScalar) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	if o.DV.Active() {
		set[o.DV] = true
	}
}

func (o *LeafScalar) EvaluateJacobians(c *jac.Container) error {
	return c.Add(o.DV, []float64{1}, 1, 1)
}

// vectorSource is satisfied by design variables whose ambient value is a
// plain vector: *dvar.Euclidean and *dvar.MappedEuclidean.
type vectorSource interface {
	dvar.DesignVariable
	Value() la.Vector
}

// LeafVector wraps a vector-valued design variable as a VectorNode of
// dimension dv.MinimalDim().
type LeafVector struct {
	DV vectorSource
}

func (o *LeafVector) Evaluate() []float64 { return o.DV.Value() }

func (o *LeafVector) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	if o.DV.Active() {
		set[o.DV] = true
	}
}

func (o *LeafVector) EvaluateJacobians(c *jac.Container) error {
	n := o.DV.MinimalDim()
	return c.Add(o.DV, identity(n), n, n)
}

// LeafEuclidean3 wraps a vector-valued design variable of exactly 3
// dimensions as an Euclidean3Node.
type LeafEuclidean3 struct {
	DV vectorSource
}

// NewLeafEuclidean3 validates that dv has minimal dimension 3.
func NewLeafEuclidean3(dv vectorSource) *LeafEuclidean3 {
	if dv.MinimalDim() != 3 {
		chk.Panic("expr.NewLeafEuclidean3: design variable has minimal dimension %d, want 3", dv.MinimalDim())
	}
	return &LeafEuclidean3{DV: dv}
}

func (o *LeafEuclidean3) Evaluate() [3]float64 {
	v := o.DV.Value()
	return [3]float64{v[0], v[1], v[2]}
}

func (o *LeafEuclidean3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	if o.DV.Active() {
		set[o.DV] = true
	}
}

func (o *LeafEuclidean3) EvaluateJacobians(c *jac.Container) error {
	return c.Add(o.DV, identity(3), 3, 3)
}

// rotationSource is satisfied by design variables whose ambient value is a
// unit quaternion: *dvar.Quaternion and *dvar.MappedQuaternion.
type rotationSource interface {
	dvar.DesignVariable
	Value() dvar.Quat
}

// LeafRotation3 wraps a rotation-valued design variable as a Rotation3Node.
type LeafRotation3 struct {
	DV rotationSource
}

func (o *LeafRotation3) Evaluate() dvar.Quat { return o.DV.Value() }

func (o *LeafRotation3) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	if o.DV.Active() {
		set[o.DV] = true
	}
}

func (o *LeafRotation3) EvaluateJacobians(c *jac.Container) error {
	return c.Add(o.DV, identity(3), 3, 3)
}

// LeafDirection wraps a *dvar.Direction (S², minimal dimension 2) as an
// Euclidean3Node whose local Jacobian is the basis-dependent
// magnitude·[-C[:,1], C[:,0]] derivative (dvar.Direction.TangentJacobian).
type LeafDirection struct {
	DV *dvar.Direction
}

func (o *LeafDirection) Evaluate() [3]float64 { return o.DV.ToEuclidean() }

func (o *LeafDirection) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	if o.DV.Active() {
		set[o.DV] = true
	}
}

func (o *LeafDirection) EvaluateJacobians(c *jac.Container) error {
	J := o.DV.TangentJacobian()
	flat := []float64{J[0][0], J[0][1], J[1][0], J[1][1], J[2][0], J[2][1]}
	return c.Add(o.DV, flat, 3, 2)
}
