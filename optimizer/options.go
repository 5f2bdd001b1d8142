// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optimizer implements Optimizer (spec.md §4.7, §6, §7): the
// options struct, the run status, the synchronous callback registry, and
// the outer assemble → solve → step → evaluate → accept/revert loop.
package optimizer

// LinearSolverKind selects a linsys.Solver backend, spec.md §6's
// `linear_solver: variant{DenseQR, SparseCholesky, BlockCG}`.
type LinearSolverKind int

const (
	DenseQRSolver LinearSolverKind = iota
	SparseCholeskySolver
	BlockCGSolver
)

// TrustRegionKind selects a trust.Policy variant, spec.md §6's
// `trust_region_policy: variant{GN, LM, Dogleg}`.
type TrustRegionKind int

const (
	GaussNewtonPolicy TrustRegionKind = iota
	LevenbergMarquardtPolicy
	DoglegPolicy
)

// Options is the recognized configuration of spec.md §6, laid out as a
// plain json-tagged struct (field, same-line comment) the way
// gofem/inp/sim.go's LinSolData and time-integration structs are, so
// options remain serializable for checkpoint/restore even though
// persistence itself is out of scope (spec.md §1).
type Options struct {
	MaxIterations int `json:"max_iterations"` // hard iteration cap

	ConvergenceDeltaX       float64 `json:"convergence_delta_x"`       // ε_x: stop when ‖dx‖_∞ falls below this
	ConvergenceDeltaJ       float64 `json:"convergence_delta_j"`       // relative ΔJ (LM policy only): stop when |J_prev-J_new|/max(1,|J_prev|) falls below this
	ConvergenceGradientNorm float64 `json:"convergence_gradient_norm"` // ε_g: stop when ‖g‖_∞ falls below this

	NumThreads                    int  `json:"num_threads"`                       // passed to build_system; assembly always runs on one goroutine
	DoSchurComplementIfApplicable bool `json:"do_schur_complement_if_applicable"` // reserved: Schur-complement reduction hint for block-sparse solves
	Verbose                       bool `json:"verbose"`                           // gate io.Pf-style progress printing

	TrustRegionPolicy TrustRegionKind `json:"trust_region_policy"` // GN | LM | Dogleg
	InitialLambda     float64         `json:"initial_lambda"`      // LM's λ₀
	LambdaUpperBound  float64         `json:"lambda_upper_bound"`  // LM's λ cap, 0 == unbounded
	InitialRadius     float64         `json:"initial_radius"`      // Dogleg's Δ₀
	MaxRadius         float64         `json:"max_radius"`          // Dogleg's Δ cap

	LinearSolver           LinearSolverKind `json:"linear_solver"`            // DenseQR | SparseCholesky | BlockCG
	UseDiagonalConditioner bool             `json:"use_diagonal_conditioner"` // DenseQR/SparseCholesky/BlockCG damping augmentation
	BlockCGMaxIterations   int              `json:"block_cg_max_iterations"`  // BlockCG's max_iter
	BlockCGTolerance       float64          `json:"block_cg_tolerance"`       // BlockCG's ε

	UseMEstimators bool `json:"use_m_estimators"` // whether error terms apply their configured M-estimator
}

// DefaultOptions returns a recommended set of termination/damping Options.
// Neither New nor Optimize fills zero-valued fields from it: a zero
// MaxIterations, for example, runs no iterations.
func DefaultOptions() Options {
	return Options{
		MaxIterations:           100,
		ConvergenceDeltaX:       1e-10,
		ConvergenceDeltaJ:       1e-12,
		ConvergenceGradientNorm: 1e-8,
		NumThreads:              1,
		TrustRegionPolicy:       LevenbergMarquardtPolicy,
		InitialLambda:           1e-3,
		InitialRadius:           1,
		MaxRadius:               1e6,
		LinearSolver:            DenseQRSolver,
		UseDiagonalConditioner:  true,
		BlockCGMaxIterations:    0, // 0 == linsys.BlockCG's own default
		BlockCGTolerance:        1e-10,
		UseMEstimators:          true,
	}
}
