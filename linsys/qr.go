// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linsys

import (
	"math"

	"github.com/cpmech/gosl/la"
)

// houseQRSolve solves the linear least-squares problem min ‖A·x − b‖ for a
// tall A (m x n, m >= n) via Householder QR reduction with implicit Q
// (Golub & Van Loan, "Matrix Computations", Algorithm 5.1.1): A is reduced
// in place to upper-triangular R by n Householder reflections, each
// applied to both the trailing columns of A and to b, and x is recovered
// by back-substitution against R.
//
// None of the corpus's visible call sites exercise a QR factorization
// directly (gofem's shp/algos.go uses la.MatInv for its Jacobian inverse,
// and NlSolver's dense path is Gauss-Jordan via la.MatInv too), so this is
// a from-scratch implementation rather than an adapted library call; see
// DESIGN.md's linsys entry for the justification. ok is false when a pivot
// column is (numerically) rank-deficient or the solution contains a
// non-finite entry.
func houseQRSolve(A *la.Matrix, b la.Vector, x la.Vector) (ok bool) {
	m, n := A.M, A.N
	R := la.NewMatrix(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			R.Set(i, j, A.Get(i, j))
		}
	}
	rhs := make(la.Vector, m)
	copy(rhs, b)

	for k := 0; k < n; k++ {
		// Build the Householder vector for column k, rows k..m-1.
		var sigma float64
		for i := k + 1; i < m; i++ {
			sigma += R.Get(i, k) * R.Get(i, k)
		}
		alpha0 := R.Get(k, k)
		if sigma == 0 {
			if alpha0 >= 0 {
				continue // this column is already triangular; zero reflector
			}
			// x(1)<0, beta=-2 case: the reflector is e_1 so only row k
			// changes, by a pure sign flip across its remaining columns.
			for j := k; j < n; j++ {
				R.Set(k, j, -R.Get(k, j))
			}
			rhs[k] = -rhs[k]
			continue
		}
		mu := math.Sqrt(alpha0*alpha0 + sigma)
		var v0 float64
		if alpha0 <= 0 {
			v0 = alpha0 - mu
		} else {
			v0 = -sigma / (alpha0 + mu)
		}
		beta := 2 * v0 * v0 / (sigma + v0*v0)
		v := make([]float64, m-k)
		v[0] = 1
		for i := k + 1; i < m; i++ {
			v[i-k] = R.Get(i, k) / v0
		}

		// Apply (I - beta*v*vᵀ) to R's trailing columns and to rhs.
		for j := k; j < n; j++ {
			var dot float64
			for i := k; i < m; i++ {
				dot += v[i-k] * R.Get(i, j)
			}
			coef := beta * dot
			for i := k; i < m; i++ {
				R.Set(i, j, R.Get(i, j)-coef*v[i-k])
			}
		}
		var dotB float64
		for i := k; i < m; i++ {
			dotB += v[i-k] * rhs[i]
		}
		coefB := beta * dotB
		for i := k; i < m; i++ {
			rhs[i] -= coefB * v[i-k]
		}
	}

	// Back-substitute R[0:n,0:n]·x = rhs[0:n].
	const rankTol = 1e-13
	for i := n - 1; i >= 0; i-- {
		diag := R.Get(i, i)
		if math.Abs(diag) < rankTol {
			return false
		}
		sum := rhs[i]
		for j := i + 1; j < n; j++ {
			sum -= R.Get(i, j) * x[j]
		}
		x[i] = sum / diag
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return false
		}
	}
	return true
}
