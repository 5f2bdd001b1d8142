package linsys

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
	"github.com/cpmech/optigraph/expr"
)

// buildToyProblem returns a single Euclidean point p with a single squared
// error term pinning it to an observed point, column/row bases assigned as
// problem.Problem.InitStructure would.
func buildToyProblem(start la.Vector, observed [3]float64) (*dvar.Euclidean, eterm.ErrorTerm) {
	p := dvar.NewEuclidean(start)
	p.SetColumnBase(0)
	residual := &expr.SubEuclidean3{A: expr.NewLeafEuclidean3(p), B: expr.ConstantEuclidean3(observed)}
	term := eterm.NewSquaredErrorTerm(eterm.AsVectorNode(residual), nil, nil)
	term.SetRowBase(0)
	return p, term
}

func TestDenseQRSolvesExactlyAtZeroDamping(tst *testing.T) {
	chk.PrintTitle("linsys: DenseQR solves the undamped normal equations")
	p, term := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})

	solver := &DenseQR{}
	if err := solver.InitMatrixStructure([]dvar.DesignVariable{p}, []eterm.ErrorTerm{term}, false); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := solver.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dx := la.NewVector(3)
	ok, err := solver.SolveSystem(0, dx)
	if err != nil {
		tst.Fatalf("SolveSystem failed: %v", err)
	}
	if !ok {
		tst.Fatalf("expected SolveSystem to succeed")
	}
	// H = I (identity Jacobian), g = -(observed - p) = p - observed, so
	// dx = -g = observed - p exactly in one Gauss-Newton step.
	chk.Scalar(tst, "dx[0]", 1e-12, dx[0], 1)
	chk.Scalar(tst, "dx[1]", 1e-12, dx[1], 2)
	chk.Scalar(tst, "dx[2]", 1e-12, dx[2], 3)
}

func TestDenseQRDampingShrinksStepTowardZero(tst *testing.T) {
	chk.PrintTitle("linsys: DenseQR step norm shrinks as λ grows (Tikhonov damping)")
	p, term := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})

	solver := &DenseQR{}
	if err := solver.InitMatrixStructure([]dvar.DesignVariable{p}, []eterm.ErrorTerm{term}, true); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := solver.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dxSmall := la.NewVector(3)
	if ok, err := solver.SolveSystem(0.01, dxSmall); !ok || err != nil {
		tst.Fatalf("SolveSystem(0.01) failed: ok=%v err=%v", ok, err)
	}
	dxLarge := la.NewVector(3)
	if ok, err := solver.SolveSystem(1000, dxLarge); !ok || err != nil {
		tst.Fatalf("SolveSystem(1000) failed: ok=%v err=%v", ok, err)
	}
	if dxLarge.Norm() >= dxSmall.Norm() {
		tst.Fatalf("expected heavier damping to shrink the step: |dxSmall|=%g |dxLarge|=%g", dxSmall.Norm(), dxLarge.Norm())
	}
}

// TestDenseQRDetectsRankDeficiencyAtZeroDamping exercises the genuine QR
// path's rank-deficiency detection (houseQRSolve's zero-pivot check): a
// design variable with no error term referencing it leaves a structurally
// zero column in J, which an undamped (λ=0) solve cannot resolve, the same
// NumericFailure spec.md §7 requires the outer loop to propagate as
// Status.Failure rather than a false convergence.
func TestDenseQRDetectsRankDeficiencyAtZeroDamping(tst *testing.T) {
	chk.PrintTitle("linsys: DenseQR reports rank deficiency on a structurally singular column")
	p, term := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	unused := dvar.NewScalar(0) // never referenced by any residual

	unused.SetColumnBase(3)
	solver := &DenseQR{}
	if err := solver.InitMatrixStructure([]dvar.DesignVariable{p, unused}, []eterm.ErrorTerm{term}, false); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := solver.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dx := la.NewVector(4)
	ok, err := solver.SolveSystem(0, dx)
	if err != nil {
		tst.Fatalf("SolveSystem returned an error instead of ok=false: %v", err)
	}
	if ok {
		tst.Fatalf("expected SolveSystem to report rank deficiency (ok=false) for a structurally zero column")
	}
}

func TestSparseCholeskyMatchesDenseQROnToyProblem(tst *testing.T) {
	chk.PrintTitle("linsys: SparseCholesky agrees with DenseQR on a toy problem")
	p1, term1 := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	dense := &DenseQR{}
	dense.InitMatrixStructure([]dvar.DesignVariable{p1}, []eterm.ErrorTerm{term1}, false)
	dense.BuildSystem(1, false)
	dxDense := la.NewVector(3)
	dense.SolveSystem(0, dxDense)

	p2, term2 := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	sparse := &SparseCholesky{}
	if err := sparse.InitMatrixStructure([]dvar.DesignVariable{p2}, []eterm.ErrorTerm{term2}, false); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := sparse.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dxSparse := la.NewVector(3)
	ok, err := sparse.SolveSystem(0, dxSparse)
	if err != nil || !ok {
		tst.Fatalf("SparseCholesky.SolveSystem failed: ok=%v err=%v", ok, err)
	}
	for i := 0; i < 3; i++ {
		chk.Scalar(tst, "dx", 1e-8, dxSparse[i], dxDense[i])
	}
}

func TestBlockCGConvergesToSameStepAsDenseQR(tst *testing.T) {
	chk.PrintTitle("linsys: BlockCG converges to the same step as DenseQR")
	p1, term1 := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	dense := &DenseQR{}
	dense.InitMatrixStructure([]dvar.DesignVariable{p1}, []eterm.ErrorTerm{term1}, true)
	dense.BuildSystem(1, false)
	dxDense := la.NewVector(3)
	dense.SolveSystem(0.5, dxDense)

	p2, term2 := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})
	cg := &BlockCG{}
	if err := cg.InitMatrixStructure([]dvar.DesignVariable{p2}, []eterm.ErrorTerm{term2}, true); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := cg.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dxCG := la.NewVector(3)
	ok, err := cg.SolveSystem(0.5, dxCG)
	if err != nil || !ok {
		tst.Fatalf("BlockCG.SolveSystem failed: ok=%v err=%v", ok, err)
	}
	for i := 0; i < 3; i++ {
		chk.Scalar(tst, "dx", 1e-6, dxCG[i], dxDense[i])
	}
}

// TestDiagonalConditionerAugmentsDampedSystem is scenario S6 of spec.md §8:
// with useDiagonalConditioner enabled, the damped diagonal is H_ii + λ·cond_i
// rather than H_ii + λ, so an explicit non-uniform conditioner changes the
// relative shrinkage across coordinates.
func TestDiagonalConditionerAugmentsDampedSystem(tst *testing.T) {
	chk.PrintTitle("linsys: explicit diagonal conditioner scales damping per coordinate (S6)")
	p, term := buildToyProblem(la.Vector{0, 0, 0}, [3]float64{1, 2, 3})

	solver := &DenseQR{ConditionerMode: ConditionerExplicit, Conditioner: la.Vector{1, 1, 100}}
	if err := solver.InitMatrixStructure([]dvar.DesignVariable{p}, []eterm.ErrorTerm{term}, true); err != nil {
		tst.Fatalf("InitMatrixStructure failed: %v", err)
	}
	if err := solver.BuildSystem(1, false); err != nil {
		tst.Fatalf("BuildSystem failed: %v", err)
	}
	dx := la.NewVector(3)
	ok, err := solver.SolveSystem(10, dx)
	if err != nil || !ok {
		tst.Fatalf("SolveSystem failed: ok=%v err=%v", ok, err)
	}
	// coordinate 2 is damped 100x harder than coordinates 0/1, so its
	// fractional shrinkage from the undamped step (observed[2]=3) must be
	// much larger than coordinate 0's (observed[0]=1).
	shrink0 := math.Abs(1-dx[0]) / 1
	shrink2 := math.Abs(3-dx[2]) / 3
	if shrink2 <= shrink0 {
		tst.Fatalf("expected the heavily-conditioned coordinate to shrink more: shrink0=%g shrink2=%g", shrink0, shrink2)
	}
}
