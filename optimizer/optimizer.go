// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import (
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/linsys"
	"github.com/cpmech/optigraph/problem"
	"github.com/cpmech/optigraph/trust"
)

// Optimizer orchestrates the spec.md §4.7 outer loop: assemble → solve →
// step → evaluate → accept/revert → stop, always returning a Status and
// never leaving design variables mid-update (spec.md §7). Verbose progress
// uses github.com/cpmech/gosl/io the way gofem/fem/testing.go and
// fem/main.go print iteration progress with io.Pforan.
type Optimizer struct {
	Options   Options
	Callbacks Callbacks

	problem *problem.Problem
	solver  linsys.Solver
	policy  trust.Policy
}

// New returns an Optimizer bound to p, with opts used exactly as given:
// New does not substitute DefaultOptions() values for fields left at their
// zero value.
func New(p *problem.Problem, opts Options) *Optimizer {
	return &Optimizer{Options: opts, problem: p}
}

// buildSolver installs the linsys.Solver backend named by o.Options.
func (o *Optimizer) buildSolver() (linsys.Solver, error) {
	switch o.Options.LinearSolver {
	case SparseCholeskySolver:
		return &linsys.SparseCholesky{}, nil
	case BlockCGSolver:
		cg := &linsys.BlockCG{}
		if o.Options.BlockCGMaxIterations > 0 {
			cg.MaxIt = o.Options.BlockCGMaxIterations
		}
		if o.Options.BlockCGTolerance > 0 {
			cg.Gtol = o.Options.BlockCGTolerance
		}
		return cg, nil
	case DenseQRSolver:
		return &linsys.DenseQR{}, nil
	default:
		return nil, chk.Err("optimizer: unrecognized LinearSolver kind %d", o.Options.LinearSolver)
	}
}

// buildPolicy installs the trust.Policy variant named by
// o.Options.TrustRegionPolicy.
func (o *Optimizer) buildPolicy() (trust.Policy, error) {
	switch o.Options.TrustRegionPolicy {
	case GaussNewtonPolicy:
		return &trust.GaussNewton{
			ConvergenceDeltaX:      o.Options.ConvergenceDeltaX,
			ConvergenceGradNormInf: o.Options.ConvergenceGradientNorm,
		}, nil
	case LevenbergMarquardtPolicy:
		return &trust.LevenbergMarquardt{
			InitialLambda:          o.Options.InitialLambda,
			LambdaUpper:            o.Options.LambdaUpperBound,
			ConvergenceDeltaX:      o.Options.ConvergenceDeltaX,
			ConvergenceGradNormInf: o.Options.ConvergenceGradientNorm,
			ConvergenceDeltaJ:      o.Options.ConvergenceDeltaJ,
		}, nil
	case DoglegPolicy:
		return &trust.Dogleg{
			InitialRadius:          o.Options.InitialRadius,
			MaxRadius:              o.Options.MaxRadius,
			ConvergenceDeltaX:      o.Options.ConvergenceDeltaX,
			ConvergenceGradNormInf: o.Options.ConvergenceGradientNorm,
		}, nil
	default:
		return nil, chk.Err("optimizer: unrecognized TrustRegionPolicy kind %d", o.Options.TrustRegionPolicy)
	}
}

// Optimize is the Optimizer::optimize() entry point of spec.md §6. It
// always returns a Status; on NumericFailure it undoes any tentative step of
// that iteration, leaving the design variables at the last accepted state,
// and terminates with Failure, and on a callback-requested stop it
// terminates with UserTerminated, per spec.md §7.
func (o *Optimizer) Optimize() Status {
	start := time.Now()
	o.problem.InitStructure()

	solver, err := o.buildSolver()
	if err != nil {
		return Status{Code: Failure, FailureMessage: err.Error(), SolverTime: time.Since(start)}
	}
	o.solver = solver
	policy, err := o.buildPolicy()
	if err != nil {
		return Status{Code: Failure, FailureMessage: err.Error(), SolverTime: time.Since(start)}
	}
	o.policy = policy

	dvs := o.problem.ActiveDesignVariables()
	terms := o.problem.ErrorTerms()
	if err := o.solver.InitMatrixStructure(dvs, terms, o.Options.UseDiagonalConditioner); err != nil {
		return Status{Code: Failure, FailureMessage: err.Error(), SolverTime: time.Since(start)}
	}
	if err := o.policy.Configure(o.solver); err != nil {
		return Status{Code: Failure, FailureMessage: err.Error(), SolverTime: time.Since(start)}
	}

	if o.Options.Verbose {
		io.Pforan("optimizer: initialized with %d active design variables, %d error terms\n", len(dvs), len(terms))
	}
	o.Callbacks.emit(OptimizationInitialized, EventInfo{})

	if err := o.solver.BuildSystem(o.Options.NumThreads, o.Options.UseMEstimators); err != nil {
		return Status{Code: Failure, FailureMessage: err.Error(), SolverTime: time.Since(start)}
	}
	prevCost := o.solver.Cost()

	status := Status{Code: MaxIterations, FinalCost: prevCost}
	for iter := 0; iter < o.Options.MaxIterations; iter++ {
		status.Iterations = iter + 1
		if o.Callbacks.emit(IterationStart, EventInfo{Iteration: iter, Cost: prevCost}) {
			status.Code = UserTerminated
			break
		}

		applied := false
		eval := func(dx la.Vector) (float64, error) {
			applied = true
			if err := applyBoxPlus(dvs, dx); err != nil {
				return 0, err
			}
			if err := o.solver.BuildSystem(o.Options.NumThreads, o.Options.UseMEstimators); err != nil {
				return 0, err
			}
			return o.solver.Cost(), nil
		}

		dx, accept, stop, info, err := o.policy.Step(prevCost, eval)
		if err != nil {
			if applied {
				revertAll(dvs)
			}
			status.Code = Failure
			status.FailureMessage = err.Error()
			status.FinalCost = prevCost
			break
		}
		if info.NumericFailure {
			if applied {
				revertAll(dvs)
			}
			status.Code = Failure
			status.FailureMessage = "trust: linear solver reported a numeric failure (non-finite or unsolvable system)"
			status.FinalCost = prevCost
			break
		}
		_ = dx

		o.Callbacks.emit(LinearSystemSolved, EventInfo{Iteration: iter, Cost: prevCost, Lambda: info.Lambda, Radius: info.Radius})

		if accept {
			status.AcceptedSteps++
			prevCost = o.solver.Cost()
			if o.Callbacks.emit(StepAccepted, EventInfo{Iteration: iter, Cost: prevCost, GainRatio: info.GainRatio, Lambda: info.Lambda, Radius: info.Radius}) {
				status.Code = UserTerminated
				break
			}
		} else {
			status.RejectedSteps++
			if applied {
				revertAll(dvs)
			}
			// BuildSystem must be re-run so solver.Cost()/Gradient() reflect
			// the reverted state for the next iteration's eval closures.
			if err := o.solver.BuildSystem(o.Options.NumThreads, o.Options.UseMEstimators); err != nil {
				status.Code = Failure
				status.FailureMessage = err.Error()
				status.FinalCost = prevCost
				break
			}
			if o.Callbacks.emit(StepRejected, EventInfo{Iteration: iter, Cost: prevCost, GainRatio: info.GainRatio, Lambda: info.Lambda, Radius: info.Radius}) {
				status.Code = UserTerminated
				break
			}
		}

		o.Callbacks.emit(CostUpdated, EventInfo{Iteration: iter, Cost: prevCost})
		if o.Options.Verbose {
			io.Pf("optimizer: iter=%d cost=%g accept=%v ratio=%g\n", iter, prevCost, accept, info.GainRatio)
		}

		if stop {
			status.Code = Converged
			break
		}
	}
	status.FinalCost = prevCost
	status.SolverTime = time.Since(start)

	if status.Code == Failure {
		o.Callbacks.emit(OptimizationFailed, EventInfo{Iteration: status.Iterations, Cost: status.FinalCost})
	} else {
		o.Callbacks.emit(OptimizationComplete, EventInfo{Iteration: status.Iterations, Cost: status.FinalCost})
	}
	return status
}

// applyBoxPlus slices dx into each active DV's minimal_dim-sized block
// starting at column_base and applies BoxPlus, per spec.md §4.7 step 3.
func applyBoxPlus(dvs []dvar.DesignVariable, dx la.Vector) error {
	for _, dv := range dvs {
		n := dv.MinimalDim()
		base := dv.ColumnBase()
		local := la.Vector(dx[base : base+n])
		if err := dv.BoxPlus(local); err != nil {
			return err
		}
	}
	return nil
}

// revertAll calls Revert on every DV, per spec.md §4.7 step 4's rejection
// path: "if rejected, call revert() on every DV."
func revertAll(dvs []dvar.DesignVariable) {
	for _, dv := range dvs {
		dv.Revert()
	}
}
