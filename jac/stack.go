// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jac implements the JacobianContainer and its chain-rule stack:
// the accumulator that composite expr.Node values push local Jacobians
// into while differentiating a DAG in reverse mode (spec.md §4.3).
package jac

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
)

// entry is one level of the chain-rule stack: a dense `rows x cols`
// matrix, where rows is fixed for the whole container (the output
// dimension of the root expression) and cols is the tangent dimension of
// the node at this depth (varies along the path: 1 for a Scalar, D for a
// Vector<D>, 3 for Euclidean3/Rotation3's so(3) tangent, 6 for a
// Transformation's se(3) tangent).
type entry struct {
	mat *la.Matrix // rows x cols
}

// chainStack is a stack of chain-rule matrices (slots reserved up front,
// matrices allocated per push) with a top-of-stack index. Pushing M (k x n,
// k == current top's cols, or k == rows if the stack is empty) composes the
// new top as
// (old top) · M via la.MatMul, the same dense matrix-product routine
// PaddySchmidt-gofem/shp/shp.go:212 uses for its dS/dx = dS/dR · dR/dx
// chain rule; popping restores the previous top. Modeled directly on
// original_source's JacobianContainer.hpp: "a concrete data structure, not
// hidden call-stack state" (spec.md §9).
type chainStack struct {
	rows int
	es   []entry
	top  int // index of current top, -1 when empty
}

func newChainStack(rows, capacity int) *chainStack {
	if capacity < 1 {
		capacity = 1
	}
	return &chainStack{rows: rows, es: make([]entry, capacity), top: -1}
}

func (s *chainStack) empty() bool { return s.top < 0 }

func (s *chainStack) ensure(depth int) {
	for len(s.es) <= depth {
		s.es = append(s.es, entry{})
	}
}

// push composes M (rows-of-M x cols, row-major) onto the stack. If the
// stack is empty, M must already be `rows x cols` (the identity chain rule
// is conceptual, never materialized) and becomes the new top verbatim. If
// non-empty, M must have exactly `currentCols` rows, and the new top is
// `topMatrix (rows x currentCols) · M (currentCols x newCols)`.
func (s *chainStack) push(M []float64, newCols int) error {
	if s.empty() {
		if len(M) != s.rows*newCols {
			return chk.Err("chainStack.push: matrix has %d entries, want %d (rows=%d, cols=%d)", len(M), s.rows*newCols, s.rows, newCols)
		}
		s.top++
		s.ensure(s.top)
		s.es[s.top] = entry{mat: flatToMatrix(M, s.rows, newCols)}
		return nil
	}
	prev := s.es[s.top]
	prevCols := prev.mat.N
	if len(M) != prevCols*newCols {
		return chk.Err("chainStack.push: matrix has %d entries, want %d (currentCols=%d, newCols=%d)", len(M), prevCols*newCols, prevCols, newCols)
	}
	next := la.NewMatrix(s.rows, newCols)
	la.MatMul(next, 1, prev.mat, flatToMatrix(M, prevCols, newCols))
	s.top++
	s.ensure(s.top)
	s.es[s.top] = entry{mat: next}
	return nil
}

// pop removes the most recent push.
func (s *chainStack) pop() {
	if s.top < 0 {
		chk.Panic("chainStack.pop: stack is already empty")
	}
	s.top--
}

// topMatrix returns the current composed chain-rule matrix (rows x cols)
// and its column count, or (nil, 0) if the stack is empty (meaning:
// conceptually the `rows x rows` identity).
func (s *chainStack) topMatrix() (*la.Matrix, int) {
	if s.empty() {
		return nil, 0
	}
	e := s.es[s.top]
	return e.mat, e.mat.N
}

// flatToMatrix copies a row-major flat slice into a freshly allocated
// la.Matrix, the adapter expr.Node operations need since they build local
// Jacobians as plain []float64 (identity(3), skew(), etc.) rather than
// la.Matrix values directly.
func flatToMatrix(data []float64, rows, cols int) *la.Matrix {
	m := la.NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, data[i*cols+j])
		}
	}
	return m
}

// matrixToFlat copies an la.Matrix back into a row-major flat slice.
func matrixToFlat(m *la.Matrix) []float64 {
	out := make([]float64, m.M*m.N)
	for i := 0; i < m.M; i++ {
		for j := 0; j < m.N; j++ {
			out[i*m.N+j] = m.Get(i, j)
		}
	}
	return out
}
