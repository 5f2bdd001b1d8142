package jac

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
)

func TestContainerDirectAdd(tst *testing.T) {
	chk.PrintTitle("Container: direct add with empty chain-rule stack")
	c := NewContainer(3)
	dv := dvar.NewEuclidean(la.Vector{0, 0, 0})
	id := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	err := c.Add(dv, id, 3, 3)
	if err != nil {
		tst.Fatalf("Add failed: %v", err)
	}
	data, cols, ok := c.Block(dv)
	if !ok || cols != 3 {
		tst.Fatalf("expected a 3-col block, got cols=%d ok=%v", cols, ok)
	}
	chk.Vector(tst, "block", 1e-15, la.Vector(data), la.Vector(id))
}

func TestContainerChainedPushPop(tst *testing.T) {
	chk.PrintTitle("Container: chained push/pop composes correctly")
	c := NewContainer(2)
	dv := dvar.NewEuclidean(la.Vector{0, 0, 0})

	// outer: 2x2, inner: 2x3 -> composed 2x3
	outer := []float64{2, 0, 0, 2}
	guard, err := c.Apply(outer, 2)
	if err != nil {
		tst.Fatalf("Apply failed: %v", err)
	}
	defer guard()

	local := []float64{1, 0, 0, 0, 1, 0} // 2x3, identity-like picking first two rows... actually 2x3
	err = c.Add(dv, local, 2, 3)
	if err != nil {
		tst.Fatalf("Add failed: %v", err)
	}
	if c.StackEmpty() {
		tst.Fatalf("stack should not be empty before guard runs")
	}
	data, cols, ok := c.Block(dv)
	if !ok || cols != 3 {
		tst.Fatalf("expected a 3-col block")
	}
	want := []float64{2, 0, 0, 0, 2, 0}
	chk.Vector(tst, "composed block", 1e-15, la.Vector(data), la.Vector(want))
}

func TestContainerStackBalancedAfterGuards(tst *testing.T) {
	chk.PrintTitle("Container: stack empty after all guards run")
	c := NewContainer(2)
	func() {
		guard, err := c.Apply([]float64{1, 0, 0, 1}, 2)
		if err != nil {
			tst.Fatalf("Apply failed: %v", err)
		}
		defer guard()
		func() {
			guard2, err := c.Apply([]float64{1, 0, 0, 1}, 2)
			if err != nil {
				tst.Fatalf("Apply failed: %v", err)
			}
			defer guard2()
		}()
	}()
	if !c.StackEmpty() {
		tst.Fatalf("expected stack to be empty after all scope guards ran")
	}
}

func TestContainerInactiveDvDiscarded(tst *testing.T) {
	chk.PrintTitle("Container: inactive design variable contributes nothing")
	c := NewContainer(3)
	dv := dvar.NewEuclidean(la.Vector{0, 0, 0})
	dv.SetActive(false)
	err := c.Add(dv, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, 3, 3)
	if err != nil {
		tst.Fatalf("Add failed: %v", err)
	}
	if _, _, ok := c.Block(dv); ok {
		tst.Fatalf("expected no block for inactive design variable")
	}
}

func TestContainerAsDenseMatrixOrdersByColumnBase(tst *testing.T) {
	chk.PrintTitle("Container: AsDenseMatrix orders blocks by ColumnBase")
	c := NewContainer(1)
	a := dvar.NewScalar(0)
	b := dvar.NewScalar(0)
	a.SetColumnBase(1)
	b.SetColumnBase(0)
	if err := c.Add(a, []float64{5}, 1, 1); err != nil {
		tst.Fatalf("Add a failed: %v", err)
	}
	if err := c.Add(b, []float64{7}, 1, 1); err != nil {
		tst.Fatalf("Add b failed: %v", err)
	}
	dense, cols := c.AsDenseMatrix()
	if cols != 2 {
		tst.Fatalf("expected 2 cols, got %d", cols)
	}
	chk.Vector(tst, "dense", 1e-15, la.Vector(dense), la.Vector{7, 5})
}
