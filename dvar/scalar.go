package dvar

import "github.com/cpmech/gosl/la"

// Scalar is a one-dimensional real-valued design variable, e.g. a focal
// length or a time offset. BoxPlus is ordinary addition.
type Scalar struct {
	Base
	value      float64
	checkpoint float64
	haveCkpt   bool
}

// NewScalar returns a Scalar design variable initialized to v.
func NewScalar(v float64) *Scalar {
	return &Scalar{Base: NewBase(), value: v}
}

func (o *Scalar) MinimalDim() int { return 1 }

func (o *Scalar) BoxPlus(delta la.Vector) error {
	if err := checkDim("Scalar", 1, len(delta)); err != nil {
		return err
	}
	o.checkpoint, o.haveCkpt = o.value, true
	o.value += delta[0]
	return nil
}

func (o *Scalar) Revert() {
	if !o.haveCkpt {
		return
	}
	o.value = o.checkpoint
}

func (o *Scalar) GetParameters() la.Vector { return la.Vector{o.value} }

func (o *Scalar) SetParameters(p la.Vector) error {
	if err := checkDim("Scalar", 1, len(p)); err != nil {
		return err
	}
	o.value = p[0]
	return nil
}

// Value returns the current scalar value.
func (o *Scalar) Value() float64 { return o.value }
