// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr implements the expression-node DAG (spec.md §4.2): a lazy
// evaluation tree over scalar, vector, Euclidean(3), rotation(SO(3)), and
// transformation(SE(3)) values, differentiated in reverse mode through a
// jac.Container. Nodes are shared (a DAG, not a tree) and reference
// children via ordinary Go pointers/interfaces — the graph is acyclic by
// construction, so garbage collection plays the role original_source's
// shared-ownership handles play in a systems language (spec.md §9).
package expr

import (
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// Node is the capability every expression-node kind shares: discovering
// the design variables it transitively depends on, and pushing its
// contribution to a JacobianContainer during a reverse-mode traversal.
// Concrete kinds additionally implement one of ScalarNode, VectorNode,
// Euclidean3Node, Rotation3Node, or TransformationNode below, which add
// the kind-specific Evaluate().
type Node interface {
	// CollectDesignVariables adds every active design variable this node
	// (or any of its children) transitively depends on to set.
	CollectDesignVariables(set map[dvar.DesignVariable]bool)

	// EvaluateJacobians accumulates this node's contribution into c,
	// composed with c's current chain-rule matrix, and recurses into
	// children. Callers at the root pass a freshly built Container (empty
	// stack); after the call returns, c.StackEmpty() must hold.
	EvaluateJacobians(c *jac.Container) error
}

// ScalarNode is an expression node producing a scalar value.
type ScalarNode interface {
	Node
	Evaluate() float64
}

// VectorNode is an expression node producing a fixed-D vector value.
type VectorNode interface {
	Node
	Evaluate() []float64
}

// Euclidean3Node is an expression node producing a 3-vector in Euclidean
// space (as distinct from a general Vector<D> node: cross products and
// rotation application are only defined for this fixed dimension).
type Euclidean3Node interface {
	Node
	Evaluate() [3]float64
}

// Rotation3Node is an expression node producing a unit-quaternion rotation.
type Rotation3Node interface {
	Node
	Evaluate() dvar.Quat
}

// Transformation is an SE(3) value: a rotation plus a translation.
type Transformation struct {
	R dvar.Quat
	T [3]float64
}

// Apply transforms the point p by this transformation: R·p + T.
func (tr Transformation) Apply(p [3]float64) [3]float64 {
	rp := tr.R.RotateVec(p)
	return [3]float64{rp[0] + tr.T[0], rp[1] + tr.T[1], rp[2] + tr.T[2]}
}

// ApplyDirection transforms the direction p by this transformation's
// rotation only (homogeneous coordinate w=0): R·p.
func (tr Transformation) ApplyDirection(p [3]float64) [3]float64 {
	return tr.R.RotateVec(p)
}

// TransformationNode is an expression node producing an SE(3) value.
type TransformationNode interface {
	Node
	Evaluate() Transformation
}
