package eterm

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/expr"
	"github.com/cpmech/optigraph/jac"
)

// ErrorTerm is the common contract spec.md §4.4 describes for both the
// squared and scalar non-squared variants: a weighted residual, a
// Jacobian evaluator, and the row/DV bookkeeping the assembler needs.
type ErrorTerm interface {
	Dim() int // output dimension k (1 for the scalar variant)
	RowBase() int
	SetRowBase(row int)
	UpstreamDesignVariables() []dvar.DesignVariable

	// EvaluateError returns the scalar objective contribution of this term
	// (½·w·(Re)ᵀ(Re) for the squared variant, w·s for the scalar variant).
	EvaluateError() (float64, error)

	// EvaluateJacobians (re)computes this term's private JacobianContainer
	// from the current design-variable values.
	EvaluateJacobians() error

	// WeightedBlocks returns, for every upstream active design variable,
	// the weighted local Jacobian block (√w·R · local_J for the squared
	// variant), ready to be placed at this term's RowBase by the
	// assembler. useMEstimator selects whether w comes from the
	// M-estimator or is fixed at 1.
	WeightedBlocks(useMEstimator bool) (map[dvar.DesignVariable]WeightedBlock, error)

	// WeightedResidual returns √w·R·e (or w·s for the scalar variant),
	// the right-hand-side contribution at this term's RowBase.
	WeightedResidual(useMEstimator bool) ([]float64, error)
}

// WeightedBlock is a dense, row-major Jacobian block after M-estimator and
// square-root-information weighting has been applied.
type WeightedBlock struct {
	Data []float64
	Cols int
}

// vectorResidualNode adapts an expr.Euclidean3Node or expr.VectorNode into
// the uniform []float64-returning shape SquaredErrorTerm needs.
type vectorResidualNode interface {
	expr.Node
	Evaluate() []float64
}

// euclidean3Adapter lifts an expr.Euclidean3Node to vectorResidualNode.
type euclidean3Adapter struct{ node expr.Euclidean3Node }

// AsVectorNode adapts a fixed 3-dimensional residual expression to the
// generic vector-residual shape SquaredErrorTerm consumes.
func AsVectorNode(n expr.Euclidean3Node) vectorResidualNode { return euclidean3Adapter{n} }

func (a euclidean3Adapter) Evaluate() []float64 {
	v := a.node.Evaluate()
	return []float64{v[0], v[1], v[2]}
}
func (a euclidean3Adapter) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	a.node.CollectDesignVariables(set)
}
func (a euclidean3Adapter) EvaluateJacobians(c *jac.Container) error {
	return a.node.EvaluateJacobians(c)
}

// SquaredErrorTerm is the squared variant of spec.md §4.4: output
// dimension k, an optional square-root inverse-covariance weighting R
// (k x k, row-major; nil means identity), and an optional M-estimator.
type SquaredErrorTerm struct {
	Residual  vectorResidualNode
	R         []float64 // k x k row-major, nil == identity
	estimator *cachingEstimator
	rowBase   int
	upstream  []dvar.DesignVariable
	container *jac.Container
	dim       int
}

// NewSquaredErrorTerm returns a squared error term over the given residual
// expression. R (k x k row-major) may be nil for an unweighted (identity)
// term. m may be nil for no M-estimator (equivalent to Trivial{}).
func NewSquaredErrorTerm(residual vectorResidualNode, R []float64, m MEstimator) *SquaredErrorTerm {
	set := make(map[dvar.DesignVariable]bool)
	residual.CollectDesignVariables(set)
	upstream := make([]dvar.DesignVariable, 0, len(set))
	for dv := range set {
		upstream = append(upstream, dv)
	}
	probe := residual.Evaluate()
	return &SquaredErrorTerm{
		Residual:  residual,
		R:         R,
		estimator: newCachingEstimator(m),
		rowBase:   -1,
		upstream:  upstream,
		dim:       len(probe),
	}
}

func (o *SquaredErrorTerm) Dim() int                                  { return o.dim }
func (o *SquaredErrorTerm) RowBase() int                              { return o.rowBase }
func (o *SquaredErrorTerm) SetRowBase(row int)                        { o.rowBase = row }
func (o *SquaredErrorTerm) UpstreamDesignVariables() []dvar.DesignVariable { return o.upstream }

// weightedResidualVec returns (√w·R·e, e, w).
func (o *SquaredErrorTerm) weightedResidualVec(useMEstimator bool) ([]float64, []float64, float64, error) {
	e := o.Residual.Evaluate()
	re := applySqrtInfo(o.R, e)
	sq := dot(re, re)
	w := 1.0
	if useMEstimator {
		w = o.estimator.weight(sq)
	}
	sw := math.Sqrt(w)
	scaled := make([]float64, len(re))
	for i, v := range re {
		scaled[i] = sw * v
	}
	return scaled, e, w, nil
}

func (o *SquaredErrorTerm) EvaluateError() (float64, error) {
	_, e, w, err := o.weightedResidualVec(true)
	if err != nil {
		return 0, err
	}
	re := applySqrtInfo(o.R, e)
	return 0.5 * w * dot(re, re), nil
}

func (o *SquaredErrorTerm) EvaluateJacobians() error {
	o.container = jac.NewContainer(o.dim)
	if err := o.Residual.EvaluateJacobians(o.container); err != nil {
		return err
	}
	if !o.container.StackEmpty() {
		chk.Panic("eterm.SquaredErrorTerm.EvaluateJacobians: chain-rule stack not balanced after traversal")
	}
	return nil
}

func (o *SquaredErrorTerm) WeightedBlocks(useMEstimator bool) (map[dvar.DesignVariable]WeightedBlock, error) {
	if o.container == nil {
		if err := o.EvaluateJacobians(); err != nil {
			return nil, err
		}
	}
	_, e, w, err := o.weightedResidualVec(useMEstimator)
	if err != nil {
		return nil, err
	}
	sw := math.Sqrt(w)
	_ = e
	out := make(map[dvar.DesignVariable]WeightedBlock, len(o.upstream))
	for _, dv := range o.container.DesignVariables() {
		data, cols, ok := o.container.Block(dv)
		if !ok {
			continue
		}
		weighted := applySqrtInfoToBlock(o.R, data, o.dim, cols)
		for i := range weighted {
			weighted[i] *= sw
		}
		out[dv] = WeightedBlock{Data: weighted, Cols: cols}
	}
	return out, nil
}

func (o *SquaredErrorTerm) WeightedResidual(useMEstimator bool) ([]float64, error) {
	scaled, _, _, err := o.weightedResidualVec(useMEstimator)
	return scaled, err
}

func applySqrtInfo(R []float64, e []float64) []float64 {
	if R == nil {
		return append([]float64{}, e...)
	}
	k := len(e)
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		var sum float64
		for j := 0; j < k; j++ {
			sum += R[i*k+j] * e[j]
		}
		out[i] = sum
	}
	return out
}

func applySqrtInfoToBlock(R []float64, block []float64, rows, cols int) []float64 {
	if R == nil {
		return append([]float64{}, block...)
	}
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for c := 0; c < cols; c++ {
			var sum float64
			for j := 0; j < rows; j++ {
				sum += R[i*rows+j] * block[j*cols+c]
			}
			out[i*cols+c] = sum
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

var _ ErrorTerm = (*SquaredErrorTerm)(nil)
