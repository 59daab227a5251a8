package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// UnitTolerance is how far a quaternion norm may drift from 1 and still be
// accepted as a body orientation.
const UnitTolerance = 1e-3

// Quat is a rotation quaternion. W is the scalar part.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the no-rotation quaternion {0,0,0,1}.
func Identity() Quat {
	return Quat{W: 1}
}

// FromAxisAngle returns the rotation of angle radians about the unit axis (ax, ay, az).
func FromAxisAngle(ax, ay, az, angle float64) Quat {
	s, c := math.Sincos(angle / 2)
	return Quat{X: ax * s, Y: ay * s, Z: az * s, W: c}
}

// RotationX returns a rotation about the X axis.
func RotationX(angle float64) Quat { return FromAxisAngle(1, 0, 0, angle) }

// RotationY returns a rotation about the Y axis.
func RotationY(angle float64) Quat { return FromAxisAngle(0, 1, 0, angle) }

// RotationZ returns a rotation about the Z axis.
func RotationZ(angle float64) Quat { return FromAxisAngle(0, 0, 1, angle) }

func (q Quat) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quat {
	return Quat{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Mul returns the Hamilton product q*other: other is applied first, then q.
func (q Quat) Mul(other Quat) Quat {
	return fromNumber(quat.Mul(q.number(), other.number()))
}

// Then returns the rotation that applies q followed by next.
func (q Quat) Then(next Quat) Quat {
	return next.Mul(q)
}

// Norm returns the Euclidean norm of q.
func (q Quat) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize returns q scaled to unit length. The zero quaternion maps to Identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

// IsFinite reports whether every component is a finite number.
func (q Quat) IsFinite() bool {
	for _, v := range [4]float64{q.X, q.Y, q.Z, q.W} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsUnit reports whether q is finite with norm within UnitTolerance of 1.
func (q Quat) IsUnit() bool {
	return q.IsFinite() && math.Abs(q.Norm()-1) <= UnitTolerance
}

// ApproxEqual reports whether all components differ by at most tol.
func (q Quat) ApproxEqual(other Quat, tol float64) bool {
	return math.Abs(q.X-other.X) <= tol &&
		math.Abs(q.Y-other.Y) <= tol &&
		math.Abs(q.Z-other.Z) <= tol &&
		math.Abs(q.W-other.W) <= tol
}
