package dvar

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
)

func TestEuclideanCheckpointRevert(tst *testing.T) {
	chk.PrintTitle("Euclidean: checkpoint/revert identity")
	p := NewEuclidean(la.Vector{1, 2, 3})
	before := p.GetParameters()
	err := p.BoxPlus(la.Vector{0.1, -0.2, 0.3})
	if err != nil {
		tst.Fatalf("BoxPlus failed: %v", err)
	}
	p.Revert()
	chk.Vector(tst, "p reverted", 1e-15, p.GetParameters(), before)
}

func TestEuclideanBoxPlusWrongDim(tst *testing.T) {
	chk.PrintTitle("Euclidean: BoxPlus rejects wrong dimension")
	p := NewEuclidean(la.Vector{1, 2, 3})
	err := p.BoxPlus(la.Vector{1, 2})
	if err == nil {
		tst.Fatalf("expected dimension-mismatch error, got nil")
	}
}

func TestQuaternionRoundTrip(tst *testing.T) {
	chk.PrintTitle("Quaternion: q ⊗ q⁻¹ == identity")
	q := NewQuaternion(Quat{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5})
	id := q.Value().Mul(q.Value().Conjugate())
	chk.Scalar(tst, "w", 1e-14, id.W, 1)
	chk.Scalar(tst, "x", 1e-14, id.X, 0)
	chk.Scalar(tst, "y", 1e-14, id.Y, 0)
	chk.Scalar(tst, "z", 1e-14, id.Z, 0)
}

func TestQuaternionCheckpointRevert(tst *testing.T) {
	chk.PrintTitle("Quaternion: checkpoint/revert identity")
	q := NewQuaternion(IdentityQuat())
	before := q.GetParameters()
	err := q.BoxPlus(la.Vector{0.05, -0.1, 0.2})
	if err != nil {
		tst.Fatalf("BoxPlus failed: %v", err)
	}
	q.Revert()
	chk.Vector(tst, "q reverted", 1e-14, q.GetParameters(), before)
}

func TestDirectionRoundTrip(tst *testing.T) {
	chk.PrintTitle("Direction: ToEuclidean round trip and fixed magnitude")
	v := [3]float64{10, 0, 0}
	d := NewDirection(v)
	got := d.ToEuclidean()
	mag := math.Sqrt(got[0]*got[0] + got[1]*got[1] + got[2]*got[2])
	chk.Scalar(tst, "magnitude", 1e-12, mag, 10)
	chk.Scalar(tst, "minimal dim", 0, float64(d.MinimalDim()), 2)
	for i := range v {
		if math.Abs(v[i]-got[i]) > 1e-9 {
			tst.Fatalf("round trip mismatch at %d: want %g got %g", i, v[i], got[i])
		}
	}
}

func TestDirectionBoxPlusPreservesMagnitude(tst *testing.T) {
	chk.PrintTitle("Direction: BoxPlus preserves magnitude")
	d := NewDirection([3]float64{10, 0, 0})
	err := d.BoxPlus(la.Vector{0.3, -0.4})
	if err != nil {
		tst.Fatalf("BoxPlus failed: %v", err)
	}
	got := d.ToEuclidean()
	mag := math.Sqrt(got[0]*got[0] + got[1]*got[1] + got[2]*got[2])
	chk.Scalar(tst, "magnitude after boxplus", 1e-10, mag, 10)
}

func TestDirectionZeroVectorPanics(tst *testing.T) {
	chk.PrintTitle("Direction: zero vector is rejected")
	defer func() {
		if r := recover(); r == nil {
			tst.Fatalf("expected panic constructing a zero-magnitude direction")
		}
	}()
	NewDirection([3]float64{0, 0, 0})
}

func TestMappedEuclideanSharesStorage(tst *testing.T) {
	chk.PrintTitle("MappedEuclidean: writes go through to caller storage")
	buf := la.Vector{0, 0, 0}
	dv := NewMappedEuclidean(&buf)
	err := dv.BoxPlus(la.Vector{1, 2, 3})
	if err != nil {
		tst.Fatalf("BoxPlus failed: %v", err)
	}
	chk.Vector(tst, "buf", 1e-15, buf, la.Vector{1, 2, 3})
	dv.Revert()
	chk.Vector(tst, "buf reverted", 1e-15, buf, la.Vector{0, 0, 0})
}
