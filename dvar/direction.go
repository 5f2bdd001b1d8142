package dvar

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
)

// mat3 is a 3x3 matrix indexed [row][col]; col(j) extracts column j, used
// for the "C's third column is the represented direction" convention
// spec.md §4.1 describes.
type mat3 [3][3]float64

func (m mat3) col(j int) [3]float64 { return [3]float64{m[0][j], m[1][j], m[2][j]} }

func matMul3(a, b mat3) mat3 {
	var c mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return c
}

// rodrigues returns the rotation matrix exp(w^) for an angle-axis vector w.
func rodrigues(w [3]float64) mat3 {
	theta := math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2])
	S := Skew(w)
	var Sm mat3 = mat3(S)
	if theta < 1e-12 {
		// I + S for small angles
		return mat3{
			{1 + Sm[0][0], Sm[0][1], Sm[0][2]},
			{Sm[1][0], 1 + Sm[1][1], Sm[1][2]},
			{Sm[2][0], Sm[2][1], 1 + Sm[2][2]},
		}
	}
	a := math.Sin(theta) / theta
	b := (1 - math.Cos(theta)) / (theta * theta)
	S2 := matMul3(Sm, Sm)
	var R mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			id := 0.0
			if i == j {
				id = 1
			}
			R[i][j] = id + a*Sm[i][j] + b*S2[i][j]
		}
	}
	return R
}

// orthonormalBasisFor builds a right-handed orthonormal basis whose third
// column is the unit vector u.
func orthonormalBasisFor(u [3]float64) mat3 {
	// pick the coordinate axis least aligned with u to seed the cross product
	var seed [3]float64
	if math.Abs(u[0]) <= math.Abs(u[1]) && math.Abs(u[0]) <= math.Abs(u[2]) {
		seed = [3]float64{1, 0, 0}
	} else if math.Abs(u[1]) <= math.Abs(u[2]) {
		seed = [3]float64{0, 1, 0}
	} else {
		seed = [3]float64{0, 0, 1}
	}
	e1 := cross(seed, u)
	e1 = normalize3(e1)
	e2 := cross(u, e1)
	return mat3{
		{e1[0], e2[0], u[0]},
		{e1[1], e2[1], u[1]},
		{e1[2], e2[2], u[2]},
	}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

// Direction is a design variable representing a 3-vector constrained to a
// fixed magnitude, i.e. a point on a sphere of radius `magnitude`. Its
// minimal dimension is 2: the tangent plane of S² at the current point.
// Ported from original_source's EuclideanDirection, which keeps the
// magnitude/basis split explicit rather than re-deriving it each update.
type Direction struct {
	Base
	basis      mat3
	checkpoint mat3
	haveCkpt   bool
	magnitude  float64
}

// NewDirection returns a Direction initialized from a 3-vector v; the
// magnitude is ‖v‖ and is fixed for the lifetime of the design variable.
func NewDirection(v [3]float64) *Direction {
	mag := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if mag == 0 {
		chk.Panic("dvar.NewDirection: cannot construct a direction from the zero vector")
	}
	u := normalize3([3]float64{v[0] / mag, v[1] / mag, v[2] / mag})
	return &Direction{Base: NewBase(), basis: orthonormalBasisFor(u), magnitude: mag}
}

func (o *Direction) MinimalDim() int { return 2 }

func (o *Direction) BoxPlus(delta la.Vector) error {
	if err := checkDim("Direction", 2, len(delta)); err != nil {
		return err
	}
	o.checkpoint, o.haveCkpt = o.basis, true
	R := rodrigues([3]float64{delta[0], delta[1], 0})
	o.basis = matMul3(o.basis, R)
	return nil
}

func (o *Direction) Revert() {
	if !o.haveCkpt {
		return
	}
	o.basis = o.checkpoint
}

// GetParameters returns the represented 3-vector magnitude·C[:,2].
func (o *Direction) GetParameters() la.Vector {
	u := o.basis.col(2)
	return la.Vector{o.magnitude * u[0], o.magnitude * u[1], o.magnitude * u[2]}
}

// SetParameters resets the basis from a 3-vector of the same magnitude as
// at construction (the magnitude itself cannot change via SetParameters;
// only its direction can, matching the fixed-at-construction invariant).
func (o *Direction) SetParameters(p la.Vector) error {
	if err := checkDim("Direction", 3, len(p)); err != nil {
		return err
	}
	n := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if n == 0 {
		return chk.Err("Direction.SetParameters: cannot set a zero direction")
	}
	u := normalize3([3]float64{p[0] / n, p[1] / n, p[2] / n})
	o.basis = orthonormalBasisFor(u)
	return nil
}

// ToEuclidean returns the represented 3-vector, satisfying the round-trip
// law EuclideanDirection(v).ToEuclidean() ≈ v (spec.md §8).
func (o *Direction) ToEuclidean() [3]float64 {
	u := o.basis.col(2)
	return [3]float64{o.magnitude * u[0], o.magnitude * u[1], o.magnitude * u[2]}
}

// Magnitude returns the fixed magnitude set at construction.
func (o *Direction) Magnitude() float64 { return o.magnitude }

// Basis returns the current orthonormal basis (columns e1, e2, u).
func (o *Direction) Basis() [3][3]float64 { return o.basis }

// TangentJacobian returns the 3x2 derivative of the represented 3-vector
// with respect to the (δ1, δ2) tangent perturbation, evaluated at the
// current basis: d(magnitude·C[:,2])/dδ = magnitude·[-C[:,1], C[:,0]].
// Expression leaf nodes wrapping a Direction use this directly as their
// local Jacobian (expr.LeafDirection), keeping the basis-dependent
// geometry co-located with the manifold it belongs to.
func (o *Direction) TangentJacobian() [3][2]float64 {
	e1, e2 := o.basis.col(0), o.basis.col(1)
	var J [3][2]float64
	for i := 0; i < 3; i++ {
		J[i][0] = -o.magnitude * e2[i]
		J[i][1] = o.magnitude * e1[i]
	}
	return J
}
