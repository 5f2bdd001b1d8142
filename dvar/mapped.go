package dvar

import "github.com/cpmech/gosl/la"

// MappedEuclidean is a design variable whose storage is an externally
// allocated buffer rather than one owned by the variable itself. Ported
// from original_source's DesignVariableMappedVector: the caller passes in
// a *la.Vector and the design variable reads and writes through that
// pointer. The referenced buffer MUST outlive the MappedEuclidean; callers
// that free or reallocate it while the optimizer holds a MappedEuclidean
// invoke undefined behavior on the next BoxPlus/Revert.
type MappedEuclidean struct {
	Base
	ref        *la.Vector
	checkpoint la.Vector
}

// NewMappedEuclidean returns a design variable backed by ref. ref must
// remain valid (non-nil, correctly sized) for the lifetime of the returned
// variable.
func NewMappedEuclidean(ref *la.Vector) *MappedEuclidean {
	return &MappedEuclidean{Base: NewBase(), ref: ref}
}

func (o *MappedEuclidean) MinimalDim() int { return len(*o.ref) }

func (o *MappedEuclidean) BoxPlus(delta la.Vector) error {
	if err := checkDim("MappedEuclidean", len(*o.ref), len(delta)); err != nil {
		return err
	}
	o.checkpoint = append(la.Vector{}, (*o.ref)...)
	for i := range *o.ref {
		(*o.ref)[i] += delta[i]
	}
	return nil
}

func (o *MappedEuclidean) Revert() {
	if o.checkpoint == nil {
		return
	}
	copy(*o.ref, o.checkpoint)
}

func (o *MappedEuclidean) GetParameters() la.Vector { return append(la.Vector{}, (*o.ref)...) }

func (o *MappedEuclidean) SetParameters(p la.Vector) error {
	if err := checkDim("MappedEuclidean", len(*o.ref), len(p)); err != nil {
		return err
	}
	copy(*o.ref, p)
	return nil
}

// Remap retargets this design variable at a different externally-owned
// buffer, without altering its active flag, column base, or block index.
func (o *MappedEuclidean) Remap(ref *la.Vector) { o.ref = ref }

// Value returns the current value of the referenced buffer.
func (o *MappedEuclidean) Value() la.Vector { return *o.ref }

// MappedQuaternion is the quaternion analog of MappedEuclidean: ambient
// storage is a caller-owned *Quat. Ported from original_source's
// MappedRotationQuaternion.
type MappedQuaternion struct {
	Base
	ref        *Quat
	checkpoint Quat
	haveCkpt   bool
}

// NewMappedQuaternion returns a design variable backed by ref, which must
// outlive the returned variable.
func NewMappedQuaternion(ref *Quat) *MappedQuaternion {
	*ref = ref.Normalize()
	return &MappedQuaternion{Base: NewBase(), ref: ref}
}

func (o *MappedQuaternion) MinimalDim() int { return 3 }

func (o *MappedQuaternion) BoxPlus(delta la.Vector) error {
	if err := checkDim("MappedQuaternion", 3, len(delta)); err != nil {
		return err
	}
	o.checkpoint, o.haveCkpt = *o.ref, true
	*o.ref = o.ref.Mul(ExpHalf([3]float64{delta[0], delta[1], delta[2]})).Normalize()
	return nil
}

func (o *MappedQuaternion) Revert() {
	if !o.haveCkpt {
		return
	}
	*o.ref = o.checkpoint
}

func (o *MappedQuaternion) GetParameters() la.Vector {
	return la.Vector{o.ref.W, o.ref.X, o.ref.Y, o.ref.Z}
}

func (o *MappedQuaternion) SetParameters(p la.Vector) error {
	if err := checkDim("MappedQuaternion", 4, len(p)); err != nil {
		return err
	}
	*o.ref = Quat{W: p[0], X: p[1], Y: p[2], Z: p[3]}.Normalize()
	return nil
}

// Remap retargets this design variable at a different externally-owned
// quaternion.
func (o *MappedQuaternion) Remap(ref *Quat) { o.ref = ref }

// Value returns the current value of the referenced quaternion.
func (o *MappedQuaternion) Value() Quat { return *o.ref }
