// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linsys

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
)

// BlockCG is an iterative LinearSystemSolver backend: it assembles the same
// block-structured H = JᵀJ, g = Jᵀe as DenseQR, then solves the damped
// system by the linear conjugate-gradient method instead of a direct
// factorization, for problems where forming H is affordable but inverting
// it is not. Field naming (MaxIt/Gtol/NumIter) and the dot-product/vector-
// update idiom (la.VecDot, la.VecAdd) follow opt.ConjGrad's statistics-
// struct shape in other_examples/...opt-conjgrad.go; unlike ConjGrad (which
// minimizes a general nonlinear f via repeated line search), the damped
// normal equations here are a single symmetric positive-(semi)definite
// linear solve, so BlockCG runs the textbook linear-CG recurrence directly
// rather than Fletcher-Reeves-Polak-Ribiere line minimization.
type BlockCG struct {
	ConditionerMode DiagonalConditionerMode
	Conditioner     la.Vector

	MaxIt int     // max CG iterations, default 2*NumCols+10
	Gtol  float64 // residual-norm convergence tolerance

	// statistics from the most recent SolveSystem call
	NumIter int

	asm  *assembly
	cond la.Vector
}

var _ Solver = (*BlockCG)(nil)

// InitMatrixStructure implements Solver.
func (o *BlockCG) InitMatrixStructure(dvs []dvar.DesignVariable, terms []eterm.ErrorTerm, useDiagonalConditioner bool) error {
	asm, err := newAssembly(dvs, terms)
	if err != nil {
		return err
	}
	o.asm = asm
	if o.Gtol <= 0 {
		o.Gtol = 1e-10
	}
	if o.MaxIt <= 0 {
		o.MaxIt = 2*asm.ncols + 10
	}
	if !useDiagonalConditioner {
		o.ConditionerMode = ConditionerExplicit
		o.Conditioner = la.NewVector(asm.ncols)
	}
	return nil
}

// BuildSystem implements Solver.
func (o *BlockCG) BuildSystem(nThreads int, useMEstimator bool) error {
	if o.asm == nil {
		return chk.Err("linsys: BlockCG.BuildSystem called before InitMatrixStructure")
	}
	if err := o.asm.build(useMEstimator); err != nil {
		return err
	}
	o.cond = conditioner(o.asm.H, o.ConditionerMode, o.Conditioner)
	return nil
}

// SolveSystem implements Solver. It runs linear conjugate-gradient on
// (H + λ·diag(cond))·dx = −g starting from dx = 0, returning false if the
// iteration fails to bring the residual below Gtol within MaxIt steps —
// treated as a NumericFailure (spec.md §7) rather than a panic, since a
// damped H can be ill-conditioned near a saddle without being singular.
func (o *BlockCG) SolveSystem(lambda float64, dx la.Vector) (ok bool, err error) {
	if o.asm == nil || o.asm.H == nil {
		return false, chk.Err("linsys: BlockCG.SolveSystem called before BuildSystem")
	}
	n := o.asm.ncols
	matvec := func(dst, v la.Vector) {
		for i := 0; i < n; i++ {
			sum := lambda * o.cond[i] * v[i]
			for j := 0; j < n; j++ {
				sum += o.asm.H.Get(i, j) * v[j]
			}
			dst[i] = sum
		}
	}

	for i := range dx {
		dx[i] = 0
	}
	r := la.NewVector(n)
	for i := 0; i < n; i++ {
		r[i] = -o.asm.g[i]
	}
	p := la.NewVector(n)
	copy(p, r)
	rsOld := la.VecDot(r, r)
	if math.Sqrt(rsOld) < o.Gtol {
		o.NumIter = 0
		return true, nil
	}

	Hp := la.NewVector(n)
	for o.NumIter = 0; o.NumIter < o.MaxIt; o.NumIter++ {
		matvec(Hp, p)
		denom := la.VecDot(p, Hp)
		if math.Abs(denom) < 1e-300 {
			return false, nil
		}
		alpha := rsOld / denom
		la.VecAdd(dx, 1, dx, alpha, p)
		la.VecAdd(r, 1, r, -alpha, Hp)
		rsNew := la.VecDot(r, r)
		if math.Sqrt(rsNew) < o.Gtol {
			for i := 0; i < n; i++ {
				if isNonFinite(dx[i]) {
					return false, nil
				}
			}
			return true, nil
		}
		beta := rsNew / rsOld
		la.VecAdd(p, 1, r, beta, p)
		rsOld = rsNew
	}
	return false, nil
}

// Cost implements Solver.
func (o *BlockCG) Cost() float64 { return o.asm.cost }

// Gradient implements Solver.
func (o *BlockCG) Gradient() la.Vector { return o.asm.g }

// NumCols implements Solver.
func (o *BlockCG) NumCols() int { return o.asm.ncols }

// Diag implements Solver.
func (o *BlockCG) Diag() la.Vector { return diagOf(o.asm.H) }

// MatVec implements Solver.
func (o *BlockCG) MatVec(dst, v la.Vector) { la.MatVecMul(dst, 1, o.asm.H, v) }

// ComputeCovariances is not implemented for BlockCG: a direct H⁻¹ defeats
// the point of choosing an iterative backend; use DenseQR instead.
func (o *BlockCG) ComputeCovariances() (*la.Matrix, error) {
	return nil, chk.Err("linsys: BlockCG does not support ComputeCovariances; use DenseQR")
}
