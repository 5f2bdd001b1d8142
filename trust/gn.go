// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"

	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/linsys"
)

// GaussNewton implements spec.md §4.6's Gauss-Newton variant: fixed λ = 0,
// every step is accepted, and the policy stops once the step or the
// gradient is small.
type GaussNewton struct {
	ConvergenceDeltaX      float64 // ε_x, default 1e-10
	ConvergenceGradNormInf float64 // ε_g, default 1e-8

	solver linsys.Solver
}

var _ Policy = (*GaussNewton)(nil)

// Configure implements Policy.
func (o *GaussNewton) Configure(solver linsys.Solver) error {
	if err := checkConfigured(solver); err != nil {
		return err
	}
	o.solver = solver
	if o.ConvergenceDeltaX <= 0 {
		o.ConvergenceDeltaX = 1e-10
	}
	if o.ConvergenceGradNormInf <= 0 {
		o.ConvergenceGradNormInf = 1e-8
	}
	return nil
}

// Step implements Policy.
func (o *GaussNewton) Step(prevCost float64, eval Evaluator) (dx la.Vector, accept bool, stop bool, info StepInfo, err error) {
	dx = la.NewVector(o.solver.NumCols())
	ok, err := o.solver.SolveSystem(0, dx)
	if err != nil {
		return dx, false, false, info, err
	}
	if !ok {
		info.NumericFailure = true
		return dx, false, true, info, nil // stop, but Optimize must map this to Status.Failure
	}
	newCost, err := eval(dx)
	if err != nil {
		return dx, false, false, info, err
	}
	info.ActualReduction = prevCost - newCost
	info.PredictedReduction = info.ActualReduction
	info.GainRatio = 1

	g := o.solver.Gradient()
	stop = infNorm(dx) < o.ConvergenceDeltaX || infNorm(g) < o.ConvergenceGradNormInf
	return dx, true, stop, info, nil
}

func infNorm(v la.Vector) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
