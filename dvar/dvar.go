// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dvar implements the design-variable abstraction: manifold-valued
// optimization parameters with a boxplus update, a one-level checkpoint for
// revert, and the bookkeeping (active flag, column base, block index) the
// linear-system assembler needs to lay out the Jacobian.
package dvar

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
)

// DesignVariable is an optimizable parameter living on a possibly
// non-Euclidean manifold. Concrete kinds (Euclidean, Quaternion, Direction,
// Scalar, and their Mapped variants) each interpret BoxPlus according to
// their own manifold.
type DesignVariable interface {
	MinimalDim() int
	Active() bool
	SetActive(active bool)
	ColumnBase() int
	SetColumnBase(col int)
	BlockIndex() int
	SetBlockIndex(idx int)

	// BoxPlus updates the ambient value by the tangent-space perturbation
	// delta, after storing the pre-update state as the checkpoint.
	BoxPlus(delta la.Vector) error

	// Revert restores the ambient value from the checkpoint captured by
	// the most recent BoxPlus. Idempotent after one call.
	Revert()

	// GetParameters returns a copy of the ambient value flattened to a
	// vector (not necessarily of length MinimalDim; e.g. a quaternion's
	// ambient value has 4 components but MinimalDim()==3).
	GetParameters() la.Vector

	// SetParameters overwrites the ambient value; len(p) must match what
	// GetParameters returns.
	SetParameters(p la.Vector) error
}

// Base holds the bookkeeping shared by every DesignVariable kind: the
// active flag and the column-base/block-index assigned by problem.Problem
// during initialization. Concrete kinds embed Base and add their own
// ambient value, checkpoint, and manifold-specific BoxPlus/Revert.
type Base struct {
	active     bool
	columnBase int
	blockIndex int
}

// NewBase returns a Base that starts out active.
func NewBase() Base {
	return Base{active: true, columnBase: -1, blockIndex: -1}
}

func (b *Base) Active() bool            { return b.active }
func (b *Base) SetActive(active bool)   { b.active = active }
func (b *Base) ColumnBase() int         { return b.columnBase }
func (b *Base) SetColumnBase(col int)   { b.columnBase = col }
func (b *Base) BlockIndex() int         { return b.blockIndex }
func (b *Base) SetBlockIndex(idx int)   { b.blockIndex = idx }

// checkDim returns an InvalidArgument-style error if delta's length does
// not match the expected minimal dimension. Every manifold's BoxPlus calls
// this first, mirroring the dimension checks gofem performs before adding
// an element's local stiffness block into the global Jacobian (e.g.
// ele/element.go's AddToKb contract).
func checkDim(kind string, want, got int) error {
	if want != got {
		return chk.Err("%s.BoxPlus: perturbation has wrong dimension: want %d, got %d", kind, want, got)
	}
	return nil
}
