package dvar

import "math"

// Quat is a unit quaternion (w, x, y, z) representing a rotation in SO(3).
// All expression-node rotation math (expr package) and this design
// variable's BoxPlus share this type so the right-perturbation convention
// required by spec.md §4.2 stays consistent everywhere a rotation appears.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat { return Quat{W: 1} }

// Mul returns o ⊗ p (Hamilton product).
func (o Quat) Mul(p Quat) Quat {
	return Quat{
		W: o.W*p.W - o.X*p.X - o.Y*p.Y - o.Z*p.Z,
		X: o.W*p.X + o.X*p.W + o.Y*p.Z - o.Z*p.Y,
		Y: o.W*p.Y - o.X*p.Z + o.Y*p.W + o.Z*p.X,
		Z: o.W*p.Z + o.X*p.Y - o.Y*p.X + o.Z*p.W,
	}
}

// Conjugate returns o⁻¹ for a unit quaternion (q* = q⁻¹ when ‖q‖=1).
func (o Quat) Conjugate() Quat { return Quat{W: o.W, X: -o.X, Y: -o.Y, Z: -o.Z} }

// Normalize returns o scaled to unit norm.
func (o Quat) Normalize() Quat {
	n := math.Sqrt(o.W*o.W + o.X*o.X + o.Y*o.Y + o.Z*o.Z)
	if n == 0 {
		return IdentityQuat()
	}
	return Quat{W: o.W / n, X: o.X / n, Y: o.Y / n, Z: o.Z / n}
}

// ExpHalf returns exp(½·delta), the quaternion exponential of the pure
// quaternion (0, delta/2), used by the right-perturbation boxplus
// q ← q ⊗ exp(½δ).
func ExpHalf(delta [3]float64) Quat {
	ux, uy, uz := delta[0]/2, delta[1]/2, delta[2]/2
	theta := math.Sqrt(ux*ux + uy*uy + uz*uz)
	if theta < 1e-12 {
		// small-angle: exp(u) ≈ 1 + u, renormalized here.
		return Quat{W: 1, X: ux, Y: uy, Z: uz}.Normalize()
	}
	s := math.Sin(theta) / theta
	return Quat{W: math.Cos(theta), X: ux * s, Y: uy * s, Z: uz * s}
}

// RotMat returns the 3x3 rotation matrix equivalent to o (row-major, 9
// entries), for use by expr's rotation-valued composite nodes.
func (o Quat) RotMat() [3][3]float64 {
	w, x, y, z := o.W, o.X, o.Y, o.Z
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return [3][3]float64{
		{1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy)},
		{2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx)},
		{2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy)},
	}
}

// RotateVec applies o's rotation to v.
func (o Quat) RotateVec(v [3]float64) [3]float64 {
	R := o.RotMat()
	return [3]float64{
		R[0][0]*v[0] + R[0][1]*v[1] + R[0][2]*v[2],
		R[1][0]*v[0] + R[1][1]*v[1] + R[1][2]*v[2],
		R[2][0]*v[0] + R[2][1]*v[1] + R[2][2]*v[2],
	}
}

// Skew returns the skew-symmetric cross-product matrix of v, i.e. the
// matrix S such that S·u == v × u.
func Skew(v [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}
