// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package problem implements OptimizationProblem (spec.md §3, §4.7): the
// registry of active design variables and error terms, column/row base
// assignment in block-index order, and a finite-difference Jacobian check.
package problem

import (
	"fmt"
	"sort"

	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/eterm"
)

// Problem is the OptimizationProblem of spec.md §3: lists of registered
// design variables and error terms, plus the column/row base assignment
// `InitStructure` performs before each solver build.
type Problem struct {
	dvs   []dvar.DesignVariable
	terms []eterm.ErrorTerm

	numCols int
	numRows int
}

// New returns an empty Problem.
func New() *Problem { return &Problem{} }

// AddDesignVariable registers dv. Registration order does not matter;
// InitStructure re-orders active variables by BlockIndex before assigning
// column bases.
func (p *Problem) AddDesignVariable(dv dvar.DesignVariable) { p.dvs = append(p.dvs, dv) }

// AddErrorTerm registers an error term, in the order row bases are later
// assigned (spec.md §5: "no ordering" is required across terms during
// assembly, but row_base assignment itself is deterministic by
// registration order, mirroring gofem's equation-numbering pass).
func (p *Problem) AddErrorTerm(t eterm.ErrorTerm) { p.terms = append(p.terms, t) }

// DesignVariables returns every registered design variable (active or not).
func (p *Problem) DesignVariables() []dvar.DesignVariable { return p.dvs }

// ErrorTerms returns every registered error term.
func (p *Problem) ErrorTerms() []eterm.ErrorTerm { return p.terms }

// NumActiveDV returns the number of active design variables.
func (p *Problem) NumActiveDV() int {
	n := 0
	for _, dv := range p.dvs {
		if dv.Active() {
			n++
		}
	}
	return n
}

// NumErrorTerms returns the number of registered error terms.
func (p *Problem) NumErrorTerms() int { return len(p.terms) }

// ActiveDesignVariables returns the active design variables ordered by
// ascending BlockIndex, the stable DV iteration order spec.md §5 requires.
func (p *Problem) ActiveDesignVariables() []dvar.DesignVariable {
	active := make([]dvar.DesignVariable, 0, len(p.dvs))
	for _, dv := range p.dvs {
		if dv.Active() {
			active = append(active, dv)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].BlockIndex() < active[j].BlockIndex() })
	return active
}

// NumCols returns the total assembled Jacobian column count after the most
// recent InitStructure call.
func (p *Problem) NumCols() int { return p.numCols }

// NumRows returns the total assembled Jacobian row count after the most
// recent InitStructure call.
func (p *Problem) NumRows() int { return p.numRows }

// InitStructure assigns column_base to every active design variable (in
// ascending BlockIndex order) and row_base to every error term (in
// registration order), sizing _JCols = Σ active_dvs.minimal_dim and
// _JRows = Σ errors.dim (spec.md §4.5's init_matrix_structure).
func (p *Problem) InitStructure() {
	col := 0
	for _, dv := range p.ActiveDesignVariables() {
		dv.SetColumnBase(col)
		col += dv.MinimalDim()
	}
	p.numCols = col

	row := 0
	for _, t := range p.terms {
		t.SetRowBase(row)
		row += t.Dim()
	}
	p.numRows = row
}

// SetupReport is the SetupCheckFailed diagnostic of spec.md §7: a report
// value, never a panic, listing every mismatch CheckSetup found.
type SetupReport struct {
	Issues []string
}

// OK reports whether the problem passed every check.
func (r SetupReport) OK() bool { return len(r.Issues) == 0 }

const (
	// fdStep is num.DerivCen5's step size: larger than the naive 2-point
	// formula's 1e-8 because the 5-point stencil's truncation error is
	// O(h^4), so a looser step trades less round-off noise for the same
	// accuracy (mirrors NlSolver.CheckJ's use of num.Deriv-style checks).
	fdStep = 1e-4
	fdTol  = 1e-6
)

// CheckSetup implements spec.md §4.7's check_problem_setup: every error
// term must reference at least one active design variable, and its
// analytic Jacobian (from EvaluateJacobians/WeightedBlocks) must match a
// central finite-difference estimate to fdTol relative tolerance on every
// active minimal dimension (spec.md §8, invariant 1).
func (p *Problem) CheckSetup() SetupReport {
	var report SetupReport
	if len(p.terms) == 0 {
		report.Issues = append(report.Issues, "problem has no registered error terms")
	}
	for ti, t := range p.terms {
		upstream := t.UpstreamDesignVariables()
		activeUpstream := 0
		for _, dv := range upstream {
			if dv.Active() {
				activeUpstream++
			}
		}
		if activeUpstream == 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("error term %d: references no active design variable", ti))
			continue
		}
		if err := t.EvaluateJacobians(); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("error term %d: EvaluateJacobians failed: %v", ti, err))
			continue
		}
		ana, err := t.WeightedBlocks(false)
		if err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("error term %d: WeightedBlocks failed: %v", ti, err))
			continue
		}
		for _, dv := range upstream {
			if !dv.Active() {
				continue
			}
			block, ok := ana[dv]
			if !ok {
				continue
			}
			numJac, err := numericJacobian(t, dv, t.Dim())
			if err != nil {
				report.Issues = append(report.Issues, fmt.Sprintf("error term %d: finite-difference probe failed: %v", ti, err))
				continue
			}
			if mismatch := compareBlocks(block.Data, numJac, t.Dim(), block.Cols); mismatch != "" {
				report.Issues = append(report.Issues, fmt.Sprintf("error term %d, design variable block_index=%d: %s", ti, dv.BlockIndex(), mismatch))
			}
		}
	}
	return report
}

// numericJacobian computes a Dim() x dv.MinimalDim() Jacobian of t's
// weighted residual R·e (M-estimator off) w.r.t. dv, using gosl/num's five-point central
// difference (num.DerivCen5) on each (row, minimal-coordinate) pair —
// the same style NlSolver's CheckJ uses to cross-check an analytic
// Jacobian, generalized here from a scalar function of one coordinate to
// a residual row that also depends on the other rows of dv through
// BoxPlus/Revert.
func numericJacobian(t eterm.ErrorTerm, dv dvar.DesignVariable, rows int) ([]float64, error) {
	n := dv.MinimalDim()
	J := make([]float64, rows*n)
	var probeErr error
	probe := func(k int, d float64) []float64 {
		delta := la.Vector(make([]float64, n))
		delta[k] = d
		if err := dv.BoxPlus(delta); err != nil {
			probeErr = err
			return make([]float64, rows)
		}
		res, err := t.WeightedResidual(false)
		dv.Revert()
		if err != nil {
			probeErr = err
			return make([]float64, rows)
		}
		return res
	}
	for k := 0; k < n; k++ {
		for r := 0; r < rows; r++ {
			J[r*n+k] = num.DerivCen5(0, fdStep, func(d float64) float64 { return probe(k, d)[r] })
			if probeErr != nil {
				return nil, probeErr
			}
		}
	}
	return J, nil
}

func compareBlocks(ana, numeric []float64, rows, cols int) string {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			a := ana[r*cols+c]
			n := numeric[r*cols+c]
			tol := fdTol * maxAbs(1, n)
			if absFloat(a-n) > tol {
				return fmt.Sprintf("Jacobian mismatch at (%d,%d): analytic=%g numeric=%g", r, c, a, n)
			}
		}
	}
	return ""
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxAbs(a, b float64) float64 {
	ab := absFloat(b)
	if ab > a {
		return ab
	}
	return a
}
