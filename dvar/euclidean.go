package dvar

import "github.com/cpmech/gosl/la"

// Euclidean is a design variable living in ℝ^D: BoxPlus is plain vector
// addition, v ← v + δ, and MinimalDim() == D.
type Euclidean struct {
	Base
	value      la.Vector
	checkpoint la.Vector
}

// NewEuclidean returns a Euclidean design variable initialized to v (copied).
func NewEuclidean(v la.Vector) *Euclidean {
	o := &Euclidean{Base: NewBase(), value: make(la.Vector, len(v))}
	copy(o.value, v)
	return o
}

func (o *Euclidean) MinimalDim() int { return len(o.value) }

func (o *Euclidean) BoxPlus(delta la.Vector) error {
	if err := checkDim("Euclidean", len(o.value), len(delta)); err != nil {
		return err
	}
	o.checkpoint = append(la.Vector{}, o.value...)
	for i := range o.value {
		o.value[i] += delta[i]
	}
	return nil
}

func (o *Euclidean) Revert() {
	if o.checkpoint == nil {
		return
	}
	copy(o.value, o.checkpoint)
}

func (o *Euclidean) GetParameters() la.Vector { return append(la.Vector{}, o.value...) }

func (o *Euclidean) SetParameters(p la.Vector) error {
	if err := checkDim("Euclidean", len(o.value), len(p)); err != nil {
		return err
	}
	copy(o.value, p)
	return nil
}

// Value returns the current ambient vector (read-only view during assembly,
// per the concurrency model in spec.md §5).
func (o *Euclidean) Value() la.Vector { return o.value }
