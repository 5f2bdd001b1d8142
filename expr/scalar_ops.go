package expr

import (
	"math"

	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// Negate computes y = -a.
type Negate struct{ A ScalarNode }

func (o *Negate) Evaluate() float64 { return -o.A.Evaluate() }
func (o *Negate) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
}
func (o *Negate) EvaluateJacobians(c *jac.Container) error {
	return pushScalarAndRecurse(c, o.A, -1)
}

// Sum computes y = a + b.
type Sum struct{ A, B ScalarNode }

func (o *Sum) Evaluate() float64 { return o.A.Evaluate() + o.B.Evaluate() }
func (o *Sum) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *Sum) EvaluateJacobians(c *jac.Container) error {
	if err := pushScalarAndRecurse(c, o.A, 1); err != nil {
		return err
	}
	return pushScalarAndRecurse(c, o.B, 1)
}

// Diff computes y = a - b.
type Diff struct{ A, B ScalarNode }

func (o *Diff) Evaluate() float64 { return o.A.Evaluate() - o.B.Evaluate() }
func (o *Diff) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *Diff) EvaluateJacobians(c *jac.Container) error {
	if err := pushScalarAndRecurse(c, o.A, 1); err != nil {
		return err
	}
	return pushScalarAndRecurse(c, o.B, -1)
}

// Product computes y = a * b.
type Product struct{ A, B ScalarNode }

func (o *Product) Evaluate() float64 { return o.A.Evaluate() * o.B.Evaluate() }
func (o *Product) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *Product) EvaluateJacobians(c *jac.Container) error {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	if err := pushScalarAndRecurse(c, o.A, b); err != nil {
		return err
	}
	return pushScalarAndRecurse(c, o.B, a)
}

// Quotient computes y = a / b.
type Quotient struct{ A, B ScalarNode }

func (o *Quotient) Evaluate() float64 { return o.A.Evaluate() / o.B.Evaluate() }
func (o *Quotient) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
	o.B.CollectDesignVariables(set)
}
func (o *Quotient) EvaluateJacobians(c *jac.Container) error {
	a, b := o.A.Evaluate(), o.B.Evaluate()
	if err := pushScalarAndRecurse(c, o.A, 1/b); err != nil {
		return err
	}
	return pushScalarAndRecurse(c, o.B, -a/(b*b))
}

// Sqrt computes y = sqrt(a).
type Sqrt struct{ A ScalarNode }

func (o *Sqrt) Evaluate() float64 { return math.Sqrt(o.A.Evaluate()) }
func (o *Sqrt) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
}
func (o *Sqrt) EvaluateJacobians(c *jac.Container) error {
	y := math.Sqrt(o.A.Evaluate())
	return pushScalarAndRecurse(c, o.A, 1/(2*y))
}

// Log computes y = ln(a).
type Log struct{ A ScalarNode }

func (o *Log) Evaluate() float64 { return math.Log(o.A.Evaluate()) }
func (o *Log) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.A.CollectDesignVariables(set)
}
func (o *Log) EvaluateJacobians(c *jac.Container) error {
	return pushScalarAndRecurse(c, o.A, 1/o.A.Evaluate())
}

// pushScalarAndRecurse pushes the 1x1 local Jacobian [d] onto c's
// chain-rule stack, recurses into child, and pops before returning.
func pushScalarAndRecurse(c *jac.Container, child ScalarNode, d float64) error {
	guard, err := c.Apply([]float64{d}, 1)
	if err != nil {
		return err
	}
	defer guard()
	return child.EvaluateJacobians(c)
}
