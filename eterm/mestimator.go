// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eterm implements ErrorTerm (spec.md §4.4): user-facing residuals
// with an M-estimator, a square-root information weighting, and a
// Jacobian evaluator wired through an expr.Node DAG.
package eterm

import "math"

// MEstimator is a robustifying weight strategy: weight(r²) → w, where r²
// is the squared (possibly already R-weighted) residual norm. Concrete
// policies mirror the ones named in spec.md §4.4: Trivial, Huber, Cauchy,
// Fair, Blake–Zisserman.
type MEstimator interface {
	Weight(squaredResidual float64) float64
}

// Trivial is the M-estimator ≡ 1 (no downweighting).
type Trivial struct{}

func (Trivial) Weight(float64) float64 { return 1 }

// Huber downweights residuals beyond Threshold by Threshold/|r|.
type Huber struct {
	Threshold float64
}

func (o Huber) Weight(squaredResidual float64) float64 {
	r := math.Sqrt(squaredResidual)
	if r <= o.Threshold || r == 0 {
		return 1
	}
	return o.Threshold / r
}

// Cauchy (Lorentzian) weight: w = 1 / (1 + r²/c²).
type Cauchy struct {
	C float64
}

func (o Cauchy) Weight(squaredResidual float64) float64 {
	return 1 / (1 + squaredResidual/(o.C*o.C))
}

// Fair weight: w = 1 / (1 + |r|/c).
type Fair struct {
	C float64
}

func (o Fair) Weight(squaredResidual float64) float64 {
	r := math.Sqrt(squaredResidual)
	return 1 / (1 + r/o.C)
}

// BlakeZisserman weight: w = exp(-r²/(2c²)).
type BlakeZisserman struct {
	C float64
}

func (o BlakeZisserman) Weight(squaredResidual float64) float64 {
	return math.Exp(-squaredResidual / (2 * o.C * o.C))
}

// cachingEstimator wraps an MEstimator and remembers the last weight it
// computed, mirroring ErrorTerm's CurrentWeight cache (spec.md §4.4). Per
// spec.md §5, this cache is written only by the thread evaluating the
// owning error term, so it is safe as a plain field (no locking) as long
// as each worker owns disjoint error terms during assembly.
type cachingEstimator struct {
	inner   MEstimator
	current float64
}

func newCachingEstimator(m MEstimator) *cachingEstimator {
	if m == nil {
		m = Trivial{}
	}
	return &cachingEstimator{inner: m, current: 1}
}

func (c *cachingEstimator) weight(squaredResidual float64) float64 {
	c.current = c.inner.Weight(squaredResidual)
	return c.current
}
