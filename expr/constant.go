package expr

import (
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// ConstantScalar is a fixed observation: no design variables, no Jacobian.
type ConstantScalar float64

func (o ConstantScalar) Evaluate() float64                                  { return float64(o) }
func (o ConstantScalar) CollectDesignVariables(map[dvar.DesignVariable]bool) {}
func (o ConstantScalar) EvaluateJacobians(*jac.Container) error             { return nil }

// ConstantEuclidean3 is a fixed 3-vector observation.
type ConstantEuclidean3 [3]float64

func (o ConstantEuclidean3) Evaluate() [3]float64                            { return [3]float64(o) }
func (o ConstantEuclidean3) CollectDesignVariables(map[dvar.DesignVariable]bool) {}
func (o ConstantEuclidean3) EvaluateJacobians(*jac.Container) error          { return nil }

// ConstantRotation3 is a fixed rotation observation.
type ConstantRotation3 dvar.Quat

func (o ConstantRotation3) Evaluate() dvar.Quat                             { return dvar.Quat(o) }
func (o ConstantRotation3) CollectDesignVariables(map[dvar.DesignVariable]bool) {}
func (o ConstantRotation3) EvaluateJacobians(*jac.Container) error          { return nil }

var (
	_ ScalarNode      = ConstantScalar(0)
	_ Euclidean3Node  = ConstantEuclidean3{}
	_ Rotation3Node   = ConstantRotation3{}
)
