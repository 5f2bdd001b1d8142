package expr

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

const fdStep = 1e-8
const fdTol = 1e-6

// numJacEuclidean3 computes a central finite-difference 3 x dv.MinimalDim()
// Jacobian of node w.r.t. dv by perturbing dv's minimal coordinates.
func numJacEuclidean3(tst *testing.T, node Euclidean3Node, dv dvar.DesignVariable) []float64 {
	n := dv.MinimalDim()
	J := make([]float64, 3*n)
	for k := 0; k < n; k++ {
		delta := la.Vector(make([]float64, n))
		delta[k] = fdStep
		if err := dv.BoxPlus(delta); err != nil {
			tst.Fatalf("BoxPlus failed: %v", err)
		}
		plus := node.Evaluate()
		dv.Revert()

		delta[k] = -fdStep
		if err := dv.BoxPlus(delta); err != nil {
			tst.Fatalf("BoxPlus failed: %v", err)
		}
		minus := node.Evaluate()
		dv.Revert()

		for r := 0; r < 3; r++ {
			J[r*n+k] = (plus[r] - minus[r]) / (2 * fdStep)
		}
	}
	return J
}

func checkClose(tst *testing.T, name string, ana, num []float64, tol float64) {
	for i := range ana {
		if math.Abs(ana[i]-num[i]) > tol*math.Max(1, math.Abs(num[i])) {
			tst.Fatalf("%s mismatch at %d: analytic=%g numeric=%g", name, i, ana[i], num[i])
		}
	}
}

func TestRotateEuclidean3JacobianMatchesFD(tst *testing.T) {
	chk.PrintTitle("expr: RotateEuclidean3 analytic Jacobian vs finite difference")
	q := dvar.NewQuaternion(dvar.Quat{W: 0.8, X: 0.1, Y: 0.2, Z: 0.3})
	x := dvar.NewEuclidean(la.Vector{1, -2, 0.5})
	rNode := &LeafRotation3{DV: q}
	xNode := NewLeafEuclidean3(x)
	rot := &RotateEuclidean3{R: rNode, X: xNode}

	c := jac.NewContainer(3)
	if err := rot.EvaluateJacobians(c); err != nil {
		tst.Fatalf("EvaluateJacobians failed: %v", err)
	}
	if !c.StackEmpty() {
		tst.Fatalf("chain-rule stack not balanced")
	}

	anaR, colsR, _ := c.Block(q)
	if colsR != 3 {
		tst.Fatalf("expected 3 cols for q block, got %d", colsR)
	}
	numR := numJacEuclidean3(tst, rot, q)
	checkClose(tst, "d(Rx)/dR", anaR, numR, fdTol)

	anaX, colsX, _ := c.Block(x)
	if colsX != 3 {
		tst.Fatalf("expected 3 cols for x block, got %d", colsX)
	}
	numX := numJacEuclidean3(tst, rot, x)
	checkClose(tst, "d(Rx)/dx", anaX, numX, fdTol)
}

func TestCrossEuclidean3JacobianMatchesFD(tst *testing.T) {
	chk.PrintTitle("expr: CrossEuclidean3 analytic Jacobian vs finite difference")
	a := dvar.NewEuclidean(la.Vector{1, 0, 0})
	b := dvar.NewEuclidean(la.Vector{0, 1, 0.3})
	aN := NewLeafEuclidean3(a)
	bN := NewLeafEuclidean3(b)
	crossNode := &CrossEuclidean3{A: aN, B: bN}

	c := jac.NewContainer(3)
	if err := crossNode.EvaluateJacobians(c); err != nil {
		tst.Fatalf("EvaluateJacobians failed: %v", err)
	}
	anaA, _, _ := c.Block(a)
	numA := numJacEuclidean3(tst, crossNode, a)
	checkClose(tst, "d(a x b)/da", anaA, numA, fdTol)

	anaB, _, _ := c.Block(b)
	numB := numJacEuclidean3(tst, crossNode, b)
	checkClose(tst, "d(a x b)/db", anaB, numB, fdTol)
}

func TestRotationCompositionAssociative(tst *testing.T) {
	chk.PrintTitle("expr: (C0*C1)*p == C0*(C1*p)")
	q0 := dvar.NewQuaternion(dvar.Quat{W: 0.9, X: 0.1, Y: 0.2, Z: -0.1})
	q1 := dvar.NewQuaternion(dvar.Quat{W: 0.7, X: -0.3, Y: 0.1, Z: 0.2})
	p := dvar.NewEuclidean(la.Vector{1, 2, 3})

	r0 := &LeafRotation3{DV: q0}
	r1 := &LeafRotation3{DV: q1}
	pNode := NewLeafEuclidean3(p)

	composed := &RotateRotation{R1: r0, R2: r1}
	lhs := &RotateEuclidean3{R: composed, X: pNode}

	rhsInner := &RotateEuclidean3{R: r1, X: pNode}
	rhs := &RotateEuclidean3{R: r0, X: rhsInner}

	lv := lhs.Evaluate()
	rv := rhs.Evaluate()
	for i := 0; i < 3; i++ {
		if math.Abs(lv[i]-rv[i]) > 1e-12 {
			tst.Fatalf("associativity mismatch at %d: lhs=%g rhs=%g", i, lv[i], rv[i])
		}
	}
}

func TestRotationRoundTripInverse(tst *testing.T) {
	chk.PrintTitle("expr: R ⊗ R⁻¹ == identity")
	q := dvar.NewQuaternion(dvar.Quat{W: 0.6, X: 0.4, Y: -0.5, Z: 0.2})
	r := &LeafRotation3{DV: q}
	inv := &RotationInverse{R: r}
	id := r.Evaluate().Mul(inv.Evaluate())
	chk.Scalar(tst, "w", 1e-14, id.W, 1)
	chk.Scalar(tst, "x", 1e-14, id.X, 0)
	chk.Scalar(tst, "y", 1e-14, id.Y, 0)
	chk.Scalar(tst, "z", 1e-14, id.Z, 0)
}

func TestInactiveDesignVariableDiscardedFromDAG(tst *testing.T) {
	chk.PrintTitle("expr: inactive design variable contributes no column")
	a := dvar.NewEuclidean(la.Vector{1, 2, 3})
	b := dvar.NewEuclidean(la.Vector{4, 5, 6})
	b.SetActive(false)
	sum := &AddEuclidean3{A: NewLeafEuclidean3(a), B: NewLeafEuclidean3(b)}

	c := jac.NewContainer(3)
	if err := sum.EvaluateJacobians(c); err != nil {
		tst.Fatalf("EvaluateJacobians failed: %v", err)
	}
	if _, _, ok := c.Block(b); ok {
		tst.Fatalf("expected no block for inactive design variable b")
	}
	if _, _, ok := c.Block(a); !ok {
		tst.Fatalf("expected a block for active design variable a")
	}
}
