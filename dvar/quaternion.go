package dvar

import "github.com/cpmech/gosl/la"

// Quaternion is a unit-quaternion design variable on SO(3). BoxPlus follows
// the right-perturbation convention required by spec.md §4.2:
// q ← q ⊗ exp(½δ), δ ∈ ℝ³. MinimalDim() == 3.
type Quaternion struct {
	Base
	value      Quat
	checkpoint Quat
	haveCkpt   bool
}

// NewQuaternion returns a Quaternion design variable initialized to q
// (renormalized to unit length).
func NewQuaternion(q Quat) *Quaternion {
	return &Quaternion{Base: NewBase(), value: q.Normalize()}
}

func (o *Quaternion) MinimalDim() int { return 3 }

func (o *Quaternion) BoxPlus(delta la.Vector) error {
	if err := checkDim("Quaternion", 3, len(delta)); err != nil {
		return err
	}
	o.checkpoint, o.haveCkpt = o.value, true
	o.value = o.value.Mul(ExpHalf([3]float64{delta[0], delta[1], delta[2]})).Normalize()
	return nil
}

func (o *Quaternion) Revert() {
	if !o.haveCkpt {
		return
	}
	o.value = o.checkpoint
}

// GetParameters returns the ambient (w,x,y,z) quaternion components.
func (o *Quaternion) GetParameters() la.Vector {
	return la.Vector{o.value.W, o.value.X, o.value.Y, o.value.Z}
}

func (o *Quaternion) SetParameters(p la.Vector) error {
	if err := checkDim("Quaternion", 4, len(p)); err != nil {
		return err
	}
	o.value = Quat{W: p[0], X: p[1], Y: p[2], Z: p[3]}.Normalize()
	return nil
}

// Value returns the current unit quaternion.
func (o *Quaternion) Value() Quat { return o.value }
