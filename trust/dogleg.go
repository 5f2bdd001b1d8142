// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"github.com/cpmech/gosl/fun"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"
	"github.com/cpmech/gosl/utl"
	"github.com/cpmech/optigraph/linsys"
)

// Dogleg implements spec.md §4.6's Dogleg variant: the step is chosen along
// the Cauchy-point/Gauss-Newton-point piecewise-linear path, clipped to the
// current trust radius; the radius updates mirror LM's ρ-test. The 1-D
// interpolation to the radius boundary on the segment reuses
// num.NewLineSolver's Brent-style root finder, the same one-dimensional
// solver other_examples/...opt-conjgrad.go wraps for its Brent line search.
type Dogleg struct {
	InitialRadius float64 // Δ₀, default 1
	MaxRadius     float64 // upper bound on Δ, default 1e6

	ConvergenceDeltaX      float64 // ε_x, default 1e-10
	ConvergenceGradNormInf float64 // ε_g, default 1e-8

	radius float64
	solver linsys.Solver
}

var _ Policy = (*Dogleg)(nil)

// Configure implements Policy.
func (o *Dogleg) Configure(solver linsys.Solver) error {
	if err := checkConfigured(solver); err != nil {
		return err
	}
	o.solver = solver
	if o.InitialRadius <= 0 {
		o.InitialRadius = 1
	}
	if o.MaxRadius <= 0 {
		o.MaxRadius = 1e6
	}
	if o.ConvergenceDeltaX <= 0 {
		o.ConvergenceDeltaX = 1e-10
	}
	if o.ConvergenceGradNormInf <= 0 {
		o.ConvergenceGradNormInf = 1e-8
	}
	o.radius = o.InitialRadius
	return nil
}

// Step implements Policy.
func (o *Dogleg) Step(prevCost float64, eval Evaluator) (dx la.Vector, accept bool, stop bool, info StepInfo, err error) {
	n := o.solver.NumCols()
	g := o.solver.Gradient()
	info.Radius = o.radius

	// Gauss-Newton point: dx_gn = -H^-1 g, via the undamped solve.
	dxGN := la.NewVector(n)
	gnOK, err := o.solver.SolveSystem(0, dxGN)
	if err != nil {
		return dxGN, false, false, info, err
	}

	// Cauchy point: dx_c = -(g.g / g.Hg) g
	Hg := la.NewVector(n)
	o.solver.MatVec(Hg, g)
	gg := la.VecDot(g, g)
	gHg := la.VecDot(g, Hg)
	dxC := la.NewVector(n)
	if gHg > 0 && gg > 0 {
		alpha := gg / gHg
		for i := range dxC {
			dxC[i] = -alpha * g[i]
		}
	}

	dx = la.NewVector(n)
	normGN := dxGN.Norm()
	normC := dxC.Norm()
	switch {
	case gnOK && normGN <= o.radius:
		copy(dx, dxGN)
	case normC >= o.radius:
		if normC > 0 {
			scale := o.radius / normC
			for i := range dx {
				dx[i] = dxC[i] * scale
			}
		}
	default:
		dx = interpolateToRadius(dxC, dxGN, o.radius)
	}

	diag := o.solver.Diag()
	predicted := predictedReductionLM(diag, g, dx, 0) // λ=0: ½dxᵀ(-g) for the dogleg path

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
		o.radius *= 0.5
		return dx, false, false, info, nil
	}
	if ratio > 0.75 {
		o.radius = utl.Min(2*o.radius, o.MaxRadius)
	}

	stop = infNorm(dx) < o.ConvergenceDeltaX || infNorm(g) < o.ConvergenceGradNormInf
	return dx, true, stop, info, nil
}

// Radius returns the policy's current trust radius, mostly useful in tests.
func (o *Dogleg) Radius() float64 { return o.radius }

// interpolateToRadius finds τ ∈ [0,1] such that
// ‖dxC + τ(dxGN − dxC)‖ = radius, by minimizing g(τ) = f(τ)² along the
// scalar axis with num.NewLineSolver — the same 1-D Brent-style minimizer
// other_examples/...opt-conjgrad.go wraps as `lineb` for its line search,
// here minimizing the squared boundary residual instead of a general
// nonlinear objective, which drives it to f(τ) = 0 since f is monotone
// increasing in τ over the bracketed dogleg segment (‖dxC‖ < radius ≤
// ‖dxGN‖ guarantees f(0) < 0 < f(1)).
func interpolateToRadius(dxC, dxGN la.Vector, radius float64) la.Vector {
	n := len(dxC)
	diff := la.NewVector(n)
	la.VecAdd(diff, 1, dxGN, -1, dxC)

	f := func(tau float64) float64 {
		var sum float64
		for i := 0; i < n; i++ {
			v := dxC[i] + tau*diff[i]
			sum += v * v
		}
		return sum - radius*radius
	}
	fPrime := func(tau float64) float64 {
		var sum float64
		for i := 0; i < n; i++ {
			sum += diff[i] * (dxC[i] + tau*diff[i])
		}
		return 2 * sum
	}

	ffcn := fun.Sv(func(x la.Vector) float64 { v := f(x[0]); return v * v })
	jfcn := fun.Vv(func(g, x la.Vector) { g[0] = 2 * f(x[0]) * fPrime(x[0]) })
	lineSolver := num.NewLineSolver(1, ffcn, jfcn)
	x := la.Vector{0.5}
	u := la.Vector{1}
	lineSolver.MinUpdateX(x, u)
	tau := x[0]
	if tau < 0 {
		tau = 0
	}
	if tau > 1 {
		tau = 1
	}

	dx := la.NewVector(n)
	for i := 0; i < n; i++ {
		dx[i] = dxC[i] + tau*diff[i]
	}
	return dx
}
