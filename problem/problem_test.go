package problem

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
	"github.com/cpmech/optigraph/expr"
)

func TestInitStructureAssignsColumnAndRowBasesInBlockOrder(tst *testing.T) {
	chk.PrintTitle("problem: InitStructure assigns column/row bases by block_index")
	p := dvar.NewEuclidean(la.Vector{0, 0, 0})
	q := dvar.NewQuaternion(dvar.Quat{W: 1})
	p.SetBlockIndex(1)
	q.SetBlockIndex(0)

	prob := New()
	prob.AddDesignVariable(p)
	prob.AddDesignVariable(q)

	residual1 := &expr.SubEuclidean3{A: expr.NewLeafEuclidean3(p), B: expr.ConstantEuclidean3{1, 2, 3}}
	term1 := eterm.NewSquaredErrorTerm(eterm.AsVectorNode(residual1), nil, nil)
	scalarNode := &expr.LeafScalar{DV: dvar.NewScalar(0)}
	term2 := eterm.NewScalarNonSquaredErrorTerm(scalarNode, nil)
	prob.AddErrorTerm(term1)
	prob.AddErrorTerm(term2)

	prob.InitStructure()

	chk.IntAssert(q.ColumnBase(), 0)
	chk.IntAssert(p.ColumnBase(), 3)
	chk.IntAssert(prob.NumCols(), 6)

	chk.IntAssert(term1.RowBase(), 0)
	chk.IntAssert(term2.RowBase(), 3)
	chk.IntAssert(prob.NumRows(), 4)
}

func TestCheckSetupPassesOnWellPosedProblem(tst *testing.T) {
	chk.PrintTitle("problem: CheckSetup passes when Jacobians match finite differences")
	p := dvar.NewEuclidean(la.Vector{0.3, -0.2, 1.1})
	residual := &expr.SubEuclidean3{A: expr.NewLeafEuclidean3(p), B: expr.ConstantEuclidean3{1, 2, 3}}
	term := eterm.NewSquaredErrorTerm(eterm.AsVectorNode(residual), nil, nil)

	prob := New()
	prob.AddDesignVariable(p)
	prob.AddErrorTerm(term)
	prob.InitStructure()

	report := prob.CheckSetup()
	if !report.OK() {
		tst.Fatalf("expected a clean report, got issues: %v", report.Issues)
	}
}

func TestCheckSetupFlagsErrorTermWithNoActiveDesignVariable(tst *testing.T) {
	chk.PrintTitle("problem: CheckSetup flags an error term with no active design variable")
	p := dvar.NewEuclidean(la.Vector{0, 0, 0})
	p.SetActive(false)
	residual := &expr.SubEuclidean3{A: expr.NewLeafEuclidean3(p), B: expr.ConstantEuclidean3{1, 2, 3}}
	term := eterm.NewSquaredErrorTerm(eterm.AsVectorNode(residual), nil, nil)

	prob := New()
	prob.AddDesignVariable(p)
	prob.AddErrorTerm(term)
	prob.InitStructure()

	report := prob.CheckSetup()
	if report.OK() {
		tst.Fatalf("expected CheckSetup to flag the inactive-only error term")
	}
}
