package jac

import (
	"math"
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/optigraph/dvar"
)

// defaultStackCapacity is the number of chain-rule stack slots reserved up
// front (100); the stack grows past this if a DAG is deeper. Only the slots
// are reserved: each push allocates its own rows x cols matrix, so no element
// storage is preallocated.
const defaultStackCapacity = 100

type block struct {
	cols int
	data []float64 // rows x cols, row-major
}

// Container is the JacobianContainer of spec.md §4.3: a map from
// DesignVariable to its accumulated Jacobian block, plus the per-container
// chain-rule matrix stack used while traversing an expr.Node DAG in
// reverse mode.
type Container struct {
	rows   int
	stack  *chainStack
	blocks map[dvar.DesignVariable]*block
	order  []dvar.DesignVariable // first-insertion order, re-sorted by ColumnBase in AsDenseMatrix
}

// NewContainer returns a Container that accumulates Jacobian blocks for an
// expression whose root output has the given number of rows.
func NewContainer(rows int) *Container {
	return &Container{
		rows:   rows,
		stack:  newChainStack(rows, defaultStackCapacity),
		blocks: make(map[dvar.DesignVariable]*block),
	}
}

// Rows returns the output dimensionality of the root expression.
func (c *Container) Rows() int { return c.rows }

// Apply pushes M (rows-of-M x newCols) onto the chain-rule stack and
// returns a scope-guard closure that pops it; callers MUST defer the
// guard immediately so the pop happens on every exit path, mirroring the
// RAII guard in original_source's JacobianContainer.hpp (spec.md §9).
func (c *Container) Apply(M []float64, newCols int) (guard func(), err error) {
	if err = c.stack.push(M, newCols); err != nil {
		return func() {}, err
	}
	return c.stack.pop, nil
}

// Add accumulates local_J (localRows x localCols, row-major) into dv's
// block, composed with the container's current chain-rule matrix:
//
//	value += top() · local_J     if the stack is non-empty
//	value += local_J             if the stack is empty (identity chain rule)
//
// A no-op if dv is nil or inactive (spec.md §4.3: "values for inactive
// design variables are silently discarded").
func (c *Container) Add(dv dvar.DesignVariable, localJ []float64, localRows, localCols int) error {
	if dv == nil || !dv.Active() {
		return nil
	}
	if localCols != dv.MinimalDim() {
		return chk.Err("jac.Container.Add: local Jacobian has %d columns, dv.MinimalDim()==%d", localCols, dv.MinimalDim())
	}
	top, topCols := c.stack.topMatrix()
	var contrib []float64
	if top == nil {
		if localRows != c.rows {
			return chk.Err("jac.Container.Add: local Jacobian has %d rows, container has %d rows (empty chain-rule stack)", localRows, c.rows)
		}
		contrib = make([]float64, len(localJ))
		copy(contrib, localJ)
	} else {
		if localRows != topCols {
			return chk.Err("jac.Container.Add: local Jacobian has %d rows, chain-rule top has %d columns", localRows, topCols)
		}
		localMat := flatToMatrix(localJ, localRows, localCols)
		contribMat := la.NewMatrix(c.rows, localCols)
		la.MatMul(contribMat, 1, top, localMat)
		contrib = matrixToFlat(contribMat)
	}
	b, ok := c.blocks[dv]
	if !ok {
		b = &block{cols: localCols, data: make([]float64, c.rows*localCols)}
		c.blocks[dv] = b
		c.order = append(c.order, dv)
	}
	for i := range b.data {
		b.data[i] += contrib[i]
	}
	return nil
}

// StackEmpty reports whether the chain-rule stack is balanced (every push
// matched by a pop), the invariant spec.md §4.3/§8 requires after a full
// EvaluateJacobians traversal.
func (c *Container) StackEmpty() bool { return c.stack.empty() }

// Block returns the accumulated rows x cols block for dv, or (nil, false)
// if dv never contributed (e.g. it is inactive, or outside the DAG).
func (c *Container) Block(dv dvar.DesignVariable) (data []float64, cols int, ok bool) {
	b, found := c.blocks[dv]
	if !found {
		return nil, 0, false
	}
	return b.data, b.cols, true
}

// DesignVariables returns every design variable with a non-empty block,
// in first-insertion order.
func (c *Container) DesignVariables() []dvar.DesignVariable {
	out := make([]dvar.DesignVariable, len(c.order))
	copy(out, c.order)
	return out
}

// IsFinite reports whether every entry of dv's block is a finite float.
func (c *Container) IsFinite(dv dvar.DesignVariable) bool {
	b, ok := c.blocks[dv]
	if !ok {
		return true
	}
	for _, x := range b.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// AsDenseMatrix returns the concatenation of per-DV blocks ordered by DV
// ColumnBase, as a rows x totalCols row-major dense matrix. Design
// variables without an assigned ColumnBase (< 0) are skipped.
func (c *Container) AsDenseMatrix() (dense []float64, totalCols int) {
	dvs := append([]dvar.DesignVariable{}, c.order...)
	sort.Slice(dvs, func(i, j int) bool { return dvs[i].ColumnBase() < dvs[j].ColumnBase() })

	totalCols = 0
	for _, dv := range dvs {
		if dv.ColumnBase() < 0 {
			continue
		}
		b := c.blocks[dv]
		if dv.ColumnBase()+b.cols > totalCols {
			totalCols = dv.ColumnBase() + b.cols
		}
	}
	dense = make([]float64, c.rows*totalCols)
	for _, dv := range dvs {
		if dv.ColumnBase() < 0 {
			continue
		}
		b := c.blocks[dv]
		base := dv.ColumnBase()
		for r := 0; r < c.rows; r++ {
			for cc := 0; cc < b.cols; cc++ {
				dense[r*totalCols+base+cc] = b.data[r*b.cols+cc]
			}
		}
	}
	return dense, totalCols
}
