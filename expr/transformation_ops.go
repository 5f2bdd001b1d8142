package expr

import (
	"github.com/cpmech/optigraph/dvar"
	"github.com/cpmech/optigraph/jac"
)

// ComposeTransformation builds an SE(3) TransformationNode from a
// rotation and a translation. The transformation's tangent space has
// dimension 6: the first 3 components perturb the rotation (right
// perturbation, as in RotateEuclidean3), the last 3 perturb the
// translation additively.
type ComposeTransformation struct {
	R Rotation3Node
	T Euclidean3Node
}

func (o *ComposeTransformation) Evaluate() Transformation {
	return Transformation{R: o.R.Evaluate(), T: o.T.Evaluate()}
}

func (o *ComposeTransformation) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.R.CollectDesignVariables(set)
	o.T.CollectDesignVariables(set)
}

func (o *ComposeTransformation) EvaluateJacobians(c *jac.Container) error {
	// identity passthrough: a ComposeTransformation node itself is never a
	// leaf's direct chain-rule target; TransformPoint/TransformDirection
	// below push the 6-wide local Jacobian and call back into this node's
	// children directly, splitting the 6 columns 3-and-3.
	return nil
}

// TransformPoint computes y = Tr · p = R·p + T (an affine point transform).
type TransformPoint struct {
	Tr TransformationNode
	P  Euclidean3Node
}

func (o *TransformPoint) Evaluate() [3]float64 { return o.Tr.Evaluate().Apply(o.P.Evaluate()) }

func (o *TransformPoint) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.Tr.CollectDesignVariables(set)
	o.P.CollectDesignVariables(set)
}

func (o *TransformPoint) EvaluateJacobians(c *jac.Container) error {
	tr := o.Tr.Evaluate()
	p := o.P.Evaluate()
	Rmat := tr.R.RotMat()

	// d(R·p+T)/dδ_R = -R·skew(p), d(R·p+T)/dδ_T = I3: a 3x6 local Jacobian
	// split across the ComposeTransformation's two children.
	if ct, ok := o.Tr.(*ComposeTransformation); ok {
		dydR := negFlat(matMulRotSkew(Rmat, p))
		if err := pushE3AndRecurse3x3(c, ct.R, dydR); err != nil {
			return err
		}
		dydT := identity(3)
		if err := pushE3AndRecurse(c, ct.T, dydT); err != nil {
			return err
		}
	}
	dydP := flat(Rmat)
	return pushE3AndRecurse(c, o.P, dydP)
}

// TransformDirection computes y = Tr · d = R·d (a linear direction
// transform; the homogeneous-coordinate w=0 case, so the translation
// contributes nothing).
type TransformDirection struct {
	Tr TransformationNode
	D  Euclidean3Node
}

func (o *TransformDirection) Evaluate() [3]float64 {
	return o.Tr.Evaluate().ApplyDirection(o.D.Evaluate())
}

func (o *TransformDirection) CollectDesignVariables(set map[dvar.DesignVariable]bool) {
	o.Tr.CollectDesignVariables(set)
	o.D.CollectDesignVariables(set)
}

func (o *TransformDirection) EvaluateJacobians(c *jac.Container) error {
	tr := o.Tr.Evaluate()
	d := o.D.Evaluate()
	Rmat := tr.R.RotMat()

	if ct, ok := o.Tr.(*ComposeTransformation); ok {
		dydR := negFlat(matMulRotSkew(Rmat, d))
		if err := pushE3AndRecurse3x3(c, ct.R, dydR); err != nil {
			return err
		}
		// translation does not affect a direction transform: no push.
	}
	dydD := flat(Rmat)
	return pushE3AndRecurse(c, o.D, dydD)
}
