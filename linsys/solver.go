// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linsys implements the LinearSystemSolver contract of spec.md
// §4.5: building J/H/g from a problem's active design variables and error
// terms, then solving the damped normal equations for a trust-region step.
// Three backends are provided: DenseQR (materializes J, dense path),
// SparseCholesky (block-sparse normal equations via la.Triplet/la.Umfpack),
// and BlockCG (iterative, normal-equation matvecs only).
package linsys

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/utl"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
)

// DiagonalConditionerMode selects where the "diagonal conditioner" used to
// regularize the damped normal equations comes from (spec.md §9 Open
// Question, resolved in SPEC_FULL.md §12 item 5).
type DiagonalConditionerMode int

const (
	// ConditionerFromColumnNorms derives the conditioner from diag(H), the
	// squared column norms of the assembled Jacobian.
	ConditionerFromColumnNorms DiagonalConditionerMode = iota
	// ConditionerExplicit uses a caller-supplied conditioner vector.
	ConditionerExplicit
)

// Solver is the LinearSystemSolver contract of spec.md §4.5.
type Solver interface {
	// InitMatrixStructure sizes the solver's internal buffers from dvs and
	// terms, whose ColumnBase/RowBase have already been assigned (by
	// problem.Problem.InitStructure). useDiagonalConditioner enables the
	// diag(H) augmentation SolveSystem applies when solving with λ > 0.
	InitMatrixStructure(dvs []dvar.DesignVariable, terms []eterm.ErrorTerm, useDiagonalConditioner bool) error

	// BuildSystem evaluates every error term's Jacobian and assembles the
	// current H (or J) and g. nThreads is accepted but not used: every
	// backend assembles all error terms on the calling goroutine, and terms
	// are not partitioned across workers.
	BuildSystem(nThreads int, useMEstimator bool) error

	// SolveSystem solves (H + λ·diag)·dx = −g for dx, returning false on
	// numerical failure (rank deficiency, NaN) rather than an error, per
	// spec.md §7's NumericFailure policy.
	SolveSystem(lambda float64, dx la.Vector) (ok bool, err error)

	// Cost returns ½·Σ w·(Re)ᵀ(Re) from the most recent BuildSystem.
	Cost() float64

	// Gradient returns g = Jᵀe from the most recent BuildSystem.
	Gradient() la.Vector

	// NumCols returns the assembled system's column count.
	NumCols() int

	// Diag returns diag(H) from the most recent BuildSystem, the quantity
	// Levenberg-Marquardt's predicted-reduction formula needs directly
	// (distinct from the damping conditioner, which may be overridden).
	Diag() la.Vector

	// MatVec writes H·v into dst, the Hessian-vector product Dogleg's
	// Cauchy-point computation needs (gᵀHg) without materializing H⁻¹.
	MatVec(dst, v la.Vector)

	// ComputeCovariances returns (a subset of) H⁻¹; expensive, optional.
	ComputeCovariances() (*la.Matrix, error)
}

// assembly is the shared bookkeeping every backend composes: it walks the
// registered error terms, evaluates their Jacobians, and accumulates H =
// JᵀJ and g = Jᵀe one error term at a time without ever materializing the
// full J (spec.md §4.5's normal-equation form). DenseQR additionally
// materializes J itself (see dense.go).
type assembly struct {
	dvs   []dvar.DesignVariable
	terms []eterm.ErrorTerm
	ncols int

	H    *la.Matrix // ncols x ncols, symmetric
	g    la.Vector  // ncols
	cost float64
}

func newAssembly(dvs []dvar.DesignVariable, terms []eterm.ErrorTerm) (*assembly, error) {
	ncols := 0
	for _, dv := range dvs {
		if !dv.Active() {
			continue
		}
		if dv.ColumnBase() < 0 {
			return nil, chk.Err("linsys: design variable has no assigned column_base; call problem.InitStructure first")
		}
		if dv.ColumnBase()+dv.MinimalDim() > ncols {
			ncols = dv.ColumnBase() + dv.MinimalDim()
		}
	}
	return &assembly{dvs: dvs, terms: terms, ncols: ncols}, nil
}

// build evaluates every error term and accumulates H/g/cost. Per spec.md
// §5, terms have no ordering dependency: each term's contribution is added
// independently into the shared H/g, which is safe to do from a single
// worker's perspective (real multi-goroutine fan-out is a straightforward
// extension: partition o.terms and sum each worker's private H_t/g_t here).
func (o *assembly) build(useMEstimator bool) error {
	o.H = la.NewMatrix(o.ncols, o.ncols)
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
						o.H.Set(baseI+ci, baseJ+cj, o.H.Get(baseI+ci, baseJ+cj)+sum)
					}
				}
			}
		}
	}
	return nil
}

// diagOf returns diag(H) as a fresh vector.
func diagOf(H *la.Matrix) la.Vector {
	n := H.M
	d := la.NewVector(n)
	for i := 0; i < n; i++ {
		d[i] = H.Get(i, i)
	}
	return d
}

// conditioner returns diag(H) (ConditionerFromColumnNorms) or an explicit
// override, clamped away from zero so the damped system never divides by
// exactly zero on a structurally-zero column.
func conditioner(H *la.Matrix, mode DiagonalConditionerMode, explicit la.Vector) la.Vector {
	n := H.M
	d := la.NewVector(n)
	if mode == ConditionerExplicit && explicit != nil {
		copy(d, explicit)
		return d
	}
	for i := 0; i < n; i++ {
		d[i] = utl.Max(H.Get(i, i), 1e-12)
	}
	return d
}

