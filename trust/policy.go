// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trust implements TrustRegionPolicy (spec.md §4.6): GaussNewton,
// LevenbergMarquardt with Nielsen damping, and Dogleg. Each variant
// proposes a step from the linear system assembled by linsys.Solver,
// judges it via a gain-ratio test, and updates its internal
// radius/damping state, mirroring the statistics-struct + NumIter/NumFeval
// bookkeeping idiom of other_examples/...opt-conjgrad.go's ConjGrad.
package trust

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/linsys"
)

// Evaluator is the callback a Policy uses to apply a tentative step and
// measure its effect, kept deliberately ignorant of dvar/problem: the
// optimizer package owns boxplus/revert and passes a closure over it here,
// matching spec.md §4.7's "apply dx via boxplus, evaluate, accept or
// revert" sequencing without trust depending on dvar.
type Evaluator func(dx la.Vector) (newCost float64, err error)

// StepInfo reports diagnostic detail about one Step call, surfaced to the
// optimizer's CostUpdated/StepAccepted/StepRejected callbacks.
type StepInfo struct {
	GainRatio          float64
	PredictedReduction float64
	ActualReduction    float64
	Lambda             float64 // LM's current damping, 0 for GN
	Radius             float64 // Dogleg's current radius, 0 for GN/LM

	// NumericFailure is true when stop=true was forced by the linear
	// solver reporting a non-finite or unsolvable system (SolveSystem's
	// ok=false), rather than by genuine convergence. Optimizer.Optimize
	// checks this to map the stop into Status.Failure instead of
	// Status.Converged, per spec.md's NumericFailure → Status::Failure
	// contract.
	NumericFailure bool
}

// Policy is the TrustRegionPolicy contract of spec.md §4.6.
type Policy interface {
	// Configure binds the policy to the solver whose H/g (and, for Dogleg,
	// whose NumCols) the policy will request solves against.
	Configure(solver linsys.Solver) error

	// Step requests a solve at the current radius/damping, applies the
	// tentative dx via eval, computes the gain ratio, and updates the
	// policy's internal state. stop is true once the policy judges the
	// iteration has converged (small step, small gradient, or small ΔJ).
	Step(prevCost float64, eval Evaluator) (dx la.Vector, accept bool, stop bool, info StepInfo, err error)
}

// gainRatio computes ρ = (J_prev − J_new) / predicted_reduction, per
// spec.md §4.6 step 3. A non-positive or non-finite predicted reduction is
// treated as "no ratio" (ρ = 0), which every variant below rejects.
func gainRatio(prevCost, newCost, predictedReduction float64) float64 {
	if predictedReduction <= 0 || predictedReduction != predictedReduction {
		return 0
	}
	return (prevCost - newCost) / predictedReduction
}

// predictedReductionLM computes ½ dxᵀ(λ·diag(H)·dx − g), spec.md §4.6's
// Levenberg-Marquardt predicted-reduction formula.
func predictedReductionLM(diag, g, dx la.Vector, lambda float64) float64 {
	n := len(dx)
	var sum float64
	for i := 0; i < n; i++ {
		sum += dx[i] * (lambda*diag[i]*dx[i] - g[i])
	}
	return 0.5 * sum
}

func checkConfigured(solver linsys.Solver) error {
	if solver == nil {
		return chk.Err("trust: Configure called with a nil solver")
	}
	return nil
}
