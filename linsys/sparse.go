// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linsys

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
)

// SparseCholesky is the block-sparse LinearSystemSolver backend. It
// accumulates H = JᵀJ and g = Jᵀe into an la.Triplet exactly as gofem's
// fem/domain.go accumulates the global tangent stiffness (`Kb.Put(I, J,
// val)`, relying on la.Triplet's automatic summation of duplicate (I,J)
// entries for overlapping design-variable blocks), then factors and solves
// the damped system with la.Umfpack, the sparse solver other_examples/...
// nlsolver.go selects behind the same Init/Fact/Solve/Free sequence
// gofem's `la.GetSolver(name)` seam exposes for "umfpack".
type SparseCholesky struct {
	ConditionerMode DiagonalConditionerMode
	Conditioner     la.Vector

	dvs   []dvar.DesignVariable
	terms []eterm.ErrorTerm
	ncols int

	tri  la.Triplet
	lis  la.Umfpack
	g    la.Vector
	cond la.Vector
	cost float64

	factored bool
}

var _ Solver = (*SparseCholesky)(nil)

// InitMatrixStructure implements Solver.
func (o *SparseCholesky) InitMatrixStructure(dvs []dvar.DesignVariable, terms []eterm.ErrorTerm, useDiagonalConditioner bool) error {
	asm, err := newAssembly(dvs, terms)
	if err != nil {
		return err
	}
	o.dvs, o.terms, o.ncols = dvs, terms, asm.ncols
	if !useDiagonalConditioner {
		o.ConditionerMode = ConditionerExplicit
		o.Conditioner = la.NewVector(asm.ncols)
	}
	// maxnnz overestimates by assuming every term's blocks fully overlap;
	// la.Triplet tolerates (and sums) the resulting duplicate Put calls.
	maxnnz := 0
	for _, t := range terms {
		n := 0
		for _, dv := range t.UpstreamDesignVariables() {
			if dv.Active() {
				n += dv.MinimalDim()
			}
		}
		maxnnz += n * n
	}
	// Reserve ncols extra capacity so SolveSystem can append the damped
	// diagonal (λ·cond) entries on top of the normal-equation entries
	// without exceeding the triplet's preallocated capacity.
	maxnnz += o.ncols
	if maxnnz == 0 {
		maxnnz = 1
	}
	o.tri.Init(o.ncols, o.ncols, maxnnz)
	return nil
}

// BuildSystem implements Solver.
func (o *SparseCholesky) BuildSystem(nThreads int, useMEstimator bool) error {
	if o.ncols == 0 && len(o.dvs) == 0 {
		return chk.Err("linsys: SparseCholesky.BuildSystem called before InitMatrixStructure")
	}
	o.tri.Start()
	o.g = la.NewVector(o.ncols)
	o.cost = 0
	for _, t := range o.terms {
		if err := t.EvaluateJacobians(); err != nil {
			return err
		}
		blocks, err := t.WeightedBlocks(useMEstimator)
		if err != nil {
			return err
		}
		residual, err := t.WeightedResidual(useMEstimator)
		if err != nil {
			return err
		}
		errVal, err := t.EvaluateError()
		if err != nil {
			return err
		}
		o.cost += errVal

		for dvI, blockI := range blocks {
			if !dvI.Active() {
				continue
			}
			baseI := dvI.ColumnBase()
			for r := 0; r < t.Dim(); r++ {
				for ci := 0; ci < blockI.Cols; ci++ {
					o.g[baseI+ci] += blockI.Data[r*blockI.Cols+ci] * residual[r]
				}
			}
			for dvJ, blockJ := range blocks {
				if !dvJ.Active() {
					continue
				}
				baseJ := dvJ.ColumnBase()
				for ci := 0; ci < blockI.Cols; ci++ {
					for cj := 0; cj < blockJ.Cols; cj++ {
						var sum float64
						for r := 0; r < t.Dim(); r++ {
							sum += blockI.Data[r*blockI.Cols+ci] * blockJ.Data[r*blockJ.Cols+cj]
						}
						o.tri.Put(baseI+ci, baseJ+cj, sum)
					}
				}
			}
		}
	}
	o.cond = conditionerFromTriplet(&o.tri, o.ncols, o.ConditionerMode, o.Conditioner)
	o.factored = false
	return nil
}

// SolveSystem implements Solver. It augments the triplet's diagonal with
// λ·cond by appending extra (i, i, λ·cond[i]) entries — la.Triplet sums
// duplicates at the same (row, col), so this is equivalent to adding to
// the existing diagonal term without rebuilding it — then factors and
// solves with la.Umfpack, mirroring other_examples/...nlsolver.go's sparse
// branch (`lis.Init`, `.Fact()`, `.Solve(dx, rhs, sumToRoot)`).
func (o *SparseCholesky) SolveSystem(lambda float64, dx la.Vector) (ok bool, err error) {
	damped := o.tri
	for i := 0; i < o.ncols; i++ {
		damped.Put(i, i, lambda*o.cond[i])
	}
	o.lis.Init(&damped, &la.SpArgs{Symmetric: false, Verbose: false})
	defer o.lis.Free()
	o.lis.Fact()
	neg := la.NewVector(o.ncols)
	for i := range o.g {
		neg[i] = -o.g[i]
	}
	o.lis.Solve(dx, neg, false)
	for i := 0; i < o.ncols; i++ {
		if isNonFinite(dx[i]) {
			return false, nil
		}
	}
	return true, nil
}

// Cost implements Solver.
func (o *SparseCholesky) Cost() float64 { return o.cost }

// Gradient implements Solver.
func (o *SparseCholesky) Gradient() la.Vector { return o.g }

// NumCols implements Solver.
func (o *SparseCholesky) NumCols() int { return o.ncols }

// Diag implements Solver.
func (o *SparseCholesky) Diag() la.Vector {
	dense := o.tri.ToDense()
	d := la.NewVector(o.ncols)
	for i := 0; i < o.ncols; i++ {
		d[i] = dense.Get(i, i)
	}
	return d
}

// MatVec implements Solver.
func (o *SparseCholesky) MatVec(dst, v la.Vector) {
	la.SpTriMatTrVecMul(dst, &o.tri, v)
}

// ComputeCovariances is not implemented for the sparse backend: inverting a
// sparse factorization densely defeats the purpose of choosing this
// backend; callers wanting covariances should use DenseQR.
func (o *SparseCholesky) ComputeCovariances() (*la.Matrix, error) {
	return nil, chk.Err("linsys: SparseCholesky does not support ComputeCovariances; use DenseQR")
}

func conditionerFromTriplet(tri *la.Triplet, ncols int, mode DiagonalConditionerMode, explicit la.Vector) la.Vector {
	d := la.NewVector(ncols)
	if mode == ConditionerExplicit && explicit != nil {
		copy(d, explicit)
		return d
	}
	dense := tri.ToDense()
	for i := 0; i < ncols; i++ {
		v := dense.Get(i, i)
		if v < 1e-12 {
			v = 1e-12
		}
		d[i] = v
	}
	return d
}

func isNonFinite(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
