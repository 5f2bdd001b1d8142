// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"

	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/utl"
	"github.com/cpmech/optigraph/linsys"
)

// LevenbergMarquardt implements spec.md §4.6's LM variant with Nielsen
// damping: on accept, λ shrinks by max(1/3, 1 − (2ρ−1)³) and ν resets to 2;
// on reject, λ grows by ν and ν doubles, and the tentative step is
// discarded (the caller's Evaluator is responsible for reverting DVs).
type LevenbergMarquardt struct {
	InitialLambda float64 // λ₀, default 1e-3
	LambdaUpper   float64 // upper bound on λ, default +Inf (no bound)

	ConvergenceDeltaX      float64 // ε_x, default 1e-10
	ConvergenceGradNormInf float64 // ε_g, default 1e-8
	ConvergenceDeltaJ      float64 // relative ΔJ tolerance, default 1e-12

	lambda float64
	nu     float64
	solver linsys.Solver
}

var _ Policy = (*LevenbergMarquardt)(nil)

// Configure implements Policy.
func (o *LevenbergMarquardt) Configure(solver linsys.Solver) error {
	if err := checkConfigured(solver); err != nil {
		return err
	}
	o.solver = solver
	if o.InitialLambda <= 0 {
		o.InitialLambda = 1e-3
	}
	if o.LambdaUpper <= 0 {
		o.LambdaUpper = math.Inf(1)
	}
	if o.ConvergenceDeltaX <= 0 {
		o.ConvergenceDeltaX = 1e-10
	}
	if o.ConvergenceGradNormInf <= 0 {
		o.ConvergenceGradNormInf = 1e-8
	}
	if o.ConvergenceDeltaJ <= 0 {
		o.ConvergenceDeltaJ = 1e-12
	}
	o.lambda = o.InitialLambda
	o.nu = 2
	return nil
}

// Step implements Policy.
func (o *LevenbergMarquardt) Step(prevCost float64, eval Evaluator) (dx la.Vector, accept bool, stop bool, info StepInfo, err error) {
	dx = la.NewVector(o.solver.NumCols())
	ok, err := o.solver.SolveSystem(o.lambda, dx)
	if err != nil {
		return dx, false, false, info, err
	}
	info.Lambda = o.lambda
	if !ok {
		// Numerical failure at this damping: treat as a rejection and
		// raise damping exactly as the ρ≤0 path does, rather than stopping
		// outright — a larger λ often restores a solvable system.
		o.reject()
		return dx, false, false, info, nil
	}

	g := o.solver.Gradient()
	diag := o.solver.Diag()
	predicted := predictedReductionLM(diag, g, dx, o.lambda)

	newCost, err := eval(dx)
	if err != nil {
		return dx, false, false, info, err
	}
	actual := prevCost - newCost
	info.ActualReduction = actual
	info.PredictedReduction = predicted
	ratio := gainRatio(prevCost, newCost, predicted)
	info.GainRatio = ratio

	if ratio <= 0 {
		o.reject()
		return dx, false, false, info, nil
	}

	o.lambda *= utl.Max(1.0/3.0, 1-math.Pow(2*ratio-1, 3))
	if o.lambda < 1e-16 {
		o.lambda = 1e-16
	}
	if o.lambda > o.LambdaUpper {
		o.lambda = o.LambdaUpper
	}
	o.nu = 2

	relDeltaJ := math.Abs(actual) / utl.Max(1, math.Abs(prevCost))
	stop = infNorm(dx) < o.ConvergenceDeltaX ||
		infNorm(g) < o.ConvergenceGradNormInf ||
		relDeltaJ < o.ConvergenceDeltaJ
	return dx, true, stop, info, nil
}

// reject applies Nielsen's rejection update: λ ← λ·ν, ν ← 2ν.
func (o *LevenbergMarquardt) reject() {
	o.lambda *= o.nu
	if o.lambda > o.LambdaUpper {
		o.lambda = o.LambdaUpper
	}
	o.nu *= 2
}

// Lambda returns the policy's current damping value, mostly useful in tests.
func (o *LevenbergMarquardt) Lambda() float64 { return o.lambda }
