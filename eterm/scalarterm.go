package eterm

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/expr"
	"github.com/cpmech/optigraph/jac"
)

// ScalarNonSquaredErrorTerm is the scalar variant of spec.md §4.4. Unlike
// SquaredErrorTerm, the cost contributed to the objective is the signed
// weighted scalar itself, w·s, not its square: original_source's
// ScalarNonSquaredErrorTerm.cpp evaluates error() as the raw weighted
// scalar and leaves squaring to the caller that assembles the scalar
// terms into the global residual vector, so the sign of s is preserved
// here rather than collapsed to |s|.
type ScalarNonSquaredErrorTerm struct {
	Scalar    expr.ScalarNode
	estimator *cachingEstimator
	rowBase   int
	upstream  []dvar.DesignVariable
	container *jac.Container
}

// NewScalarNonSquaredErrorTerm returns a scalar error term over the given
// scalar expression. m may be nil for no M-estimator (equivalent to
// Trivial{}).
func NewScalarNonSquaredErrorTerm(scalar expr.ScalarNode, m MEstimator) *ScalarNonSquaredErrorTerm {
	set := make(map[dvar.DesignVariable]bool)
	scalar.CollectDesignVariables(set)
	upstream := make([]dvar.DesignVariable, 0, len(set))
	for dv := range set {
		upstream = append(upstream, dv)
	}
	return &ScalarNonSquaredErrorTerm{
		Scalar:    scalar,
		estimator: newCachingEstimator(m),
		rowBase:   -1,
		upstream:  upstream,
	}
}

func (o *ScalarNonSquaredErrorTerm) Dim() int                                  { return 1 }
func (o *ScalarNonSquaredErrorTerm) RowBase() int                              { return o.rowBase }
func (o *ScalarNonSquaredErrorTerm) SetRowBase(row int)                        { o.rowBase = row }
func (o *ScalarNonSquaredErrorTerm) UpstreamDesignVariables() []dvar.DesignVariable {
	return o.upstream
}

// EvaluateError returns w·s, signed, per the Open Question resolution
// above (not w·s² and not w·|s|).
func (o *ScalarNonSquaredErrorTerm) EvaluateError() (float64, error) {
	s := o.Scalar.Evaluate()
	w := o.estimator.weight(s * s)
	return w * s, nil
}

func (o *ScalarNonSquaredErrorTerm) EvaluateJacobians() error {
	o.container = jac.NewContainer(1)
	if err := o.Scalar.EvaluateJacobians(o.container); err != nil {
		return err
	}
	if !o.container.StackEmpty() {
		chk.Panic("eterm.ScalarNonSquaredErrorTerm.EvaluateJacobians: chain-rule stack not balanced after traversal")
	}
	return nil
}

func (o *ScalarNonSquaredErrorTerm) WeightedBlocks(useMEstimator bool) (map[dvar.DesignVariable]WeightedBlock, error) {
	if o.container == nil {
		if err := o.EvaluateJacobians(); err != nil {
			return nil, err
		}
	}
	s := o.Scalar.Evaluate()
	w := 1.0
	if useMEstimator {
		w = o.estimator.weight(s * s)
	}
	sw := math.Sqrt(math.Abs(w)) * sign(w)
	out := make(map[dvar.DesignVariable]WeightedBlock, len(o.upstream))
	for _, dv := range o.container.DesignVariables() {
		data, cols, ok := o.container.Block(dv)
		if !ok {
			continue
		}
		weighted := make([]float64, len(data))
		for i, v := range data {
			weighted[i] = sw * v
		}
		out[dv] = WeightedBlock{Data: weighted, Cols: cols}
	}
	return out, nil
}

func (o *ScalarNonSquaredErrorTerm) WeightedResidual(useMEstimator bool) ([]float64, error) {
	s := o.Scalar.Evaluate()
	w := 1.0
	if useMEstimator {
		w = o.estimator.weight(s * s)
	}
	return []float64{w * s}, nil
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

var _ ErrorTerm = (*ScalarNonSquaredErrorTerm)(nil)
