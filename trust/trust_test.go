package trust

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
	"github.com/cpmech/optigraph/expr"
	"github.com/cpmech/optigraph/linsys"
)

// newToySolver returns a DenseQR solver assembled from a single Euclidean
// point pinned to an observed point by a squared error term, with dx
// applied through boxplus/revert exactly as optimizer.Optimizer would.
func newToySolver(tst *testing.T, start la.Vector, observed [3]float64) (*dvar.Euclidean, linsys.Solver, Evaluator) {
	p := dvar.NewEuclidean(start)
	p.SetColumnBase(0)
	residual := &expr.SubEuclidean3{A: expr.NewLeafEuclidean3(p), B: expr.ConstantEuclidean3(observed)}
	term := eterm.NewSquaredErrorTerm(eterm.AsVectorNode(residual), nil, nil)
	term.SetRowBase(0)

	solver := &linsys.DenseQR{}
	if err := solver.InitMatrixStructure([]dvar.DesignVariable{p}, []eterm.ErrorTerm{term}, true); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := solver.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}

	eval := func(dx la.Vector) (float64, error) {
		if err := p.BoxPlus(dx); err != nil {
			return 0, err
		}
		if err := solver.BuildSystem(1, false); err != nil {
			return 0, err
		}
		return solver.Cost(), nil
	}
	return p, solver, eval
}

func TestGaussNewtonAcceptsAndConvergesInOneStep(tst *testing.T) {
	chk.PrintTitle("trust: GaussNewton converges to the observed point in one step")
	p, solver, eval := newToySolver(tst, la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	prevCost := solver.Cost()

	gn := &GaussNewton{}
	if err := gn.Configure(solver); err != nil {
		tst.Fatalf("Configure failed: %v", err)
	}
	_, accept, _, _, err := gn.Step(prevCost, eval)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if !accept {
		tst.Fatalf("expected Gauss-Newton to always accept")
	}
	chk.Scalar(tst, "p[0]", 1e-10, p.Value()[0], 1)
	chk.Scalar(tst, "p[1]", 1e-10, p.Value()[1], 2)
	chk.Scalar(tst, "p[2]", 1e-10, p.Value()[2], 3)
}

// TestLevenbergMarquardtRejectedStepFullyRevertsAndRaisesLambda is spec.md
// §8 invariant 5: when ρ ≤ 0 the DV state fully reverts and λ strictly
// increases by factor ≥ 2.
func TestLevenbergMarquardtRejectedStepFullyRevertsAndRaisesLambda(tst *testing.T) {
	chk.PrintTitle("trust: LM rejected step reverts DVs and raises λ (S4)")
	p, solver, _ := newToySolver(tst, la.Vector{0, 0, 0}, [3]float64{1, 2, 3})

	lm := &LevenbergMarquardt{InitialLambda: 1e-3}
	if err := lm.Configure(solver); err != nil {
		tst.Fatalf("Configure failed: %v", err)
	}
	lambdaBefore := lm.Lambda()

	// An eval that always reports a worse cost forces ρ ≤ 0 regardless of
	// dx, exercising the rejection branch deterministically.
	rejecting := func(dx la.Vector) (float64, error) {
		if err := p.BoxPlus(dx); err != nil {
			return 0, err
		}
		p.Revert() // the optimizer reverts on rejection; emulate that here
		return solver.Cost() + 1e6, nil
	}

	_, accept, _, info, err := lm.Step(solver.Cost(), rejecting)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if accept {
		tst.Fatalf("expected the step to be rejected")
	}
	if info.GainRatio > 0 {
		tst.Fatalf("expected a non-positive gain ratio, got %g", info.GainRatio)
	}
	if lm.Lambda() < 2*lambdaBefore {
		tst.Fatalf("expected λ to at least double: before=%g after=%g", lambdaBefore, lm.Lambda())
	}
	chk.Scalar(tst, "p[0] after revert", 1e-14, p.Value()[0], 0)
	chk.Scalar(tst, "p[1] after revert", 1e-14, p.Value()[1], 0)
	chk.Scalar(tst, "p[2] after revert", 1e-14, p.Value()[2], 0)
}

func TestLevenbergMarquardtAcceptedStepShrinksLambda(tst *testing.T) {
	chk.PrintTitle("trust: LM accepted step shrinks λ")
	_, solver, eval := newToySolver(tst, la.Vector{0, 0, 0}, [3]float64{1, 2, 3})

	lm := &LevenbergMarquardt{InitialLambda: 1e-3}
	if err := lm.Configure(solver); err != nil {
		tst.Fatalf("Configure failed: %v", err)
	}
	lambdaBefore := lm.Lambda()
	_, accept, _, info, err := lm.Step(solver.Cost(), eval)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if !accept {
		tst.Fatalf("expected the step to be accepted, info=%+v", info)
	}
	if lm.Lambda() >= lambdaBefore {
		tst.Fatalf("expected λ to shrink on acceptance: before=%g after=%g", lambdaBefore, lm.Lambda())
	}
}

func TestDoglegTakesGaussNewtonPointWithinRadius(tst *testing.T) {
	chk.PrintTitle("trust: Dogleg takes the Gauss-Newton point when it is within the radius")
	p, solver, eval := newToySolver(tst, la.Vector{0, 0, 0}, [3]float64{0.1, 0.1, 0.1})

	dl := &Dogleg{InitialRadius: 10}
	if err := dl.Configure(solver); err != nil {
		tst.Fatalf("Configure failed: %v", err)
	}
	_, accept, _, _, err := dl.Step(solver.Cost(), eval)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if !accept {
		tst.Fatalf("expected the step to be accepted")
	}
	chk.Scalar(tst, "p[0]", 1e-8, p.Value()[0], 0.1)
}

func TestDoglegClipsStepToRadiusWhenGNPointIsFar(tst *testing.T) {
	chk.PrintTitle("trust: Dogleg clips the step to the trust radius")
	_, solver, eval := newToySolver(tst, la.Vector{0, 0, 0}, [3]float64{100, 100, 100})

	dl := &Dogleg{InitialRadius: 1}
	if err := dl.Configure(solver); err != nil {
		tst.Fatalf("Configure failed: %v", err)
	}
	dx, _, _, _, err := dl.Step(solver.Cost(), eval)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if dx.Norm() > 1+1e-8 {
		tst.Fatalf("expected the step norm to respect the trust radius: got %g", dx.Norm())
	}
}
