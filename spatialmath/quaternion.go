package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// quaternion is a quaternion that satisfies the Orientation interface. It is a distinct type from
// quat.Number so that conversions between the two are explicit.
type quaternion quat.Number

// OrientationVectorRadians returns orientation as an orientation vector (in radians).
func (q *quaternion) OrientationVectorRadians() *OrientationVector {
	return QuatToOV(quat.Number(*q))
}

// OrientationVectorDegrees returns orientation as an orientation vector (in degrees).
func (q *quaternion) OrientationVectorDegrees() *OrientationVectorDegrees {
	return QuatToOVD(quat.Number(*q))
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(quat.Number(*q))
}

// Quaternion returns the orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// EulerAngles returns orientation in Euler angle representation.
func (q *quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(quat.Number(*q))
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (q *quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(quat.Number(*q))
}

// QuaternionAlmostEqual compares two quaternions, allowing for the sign ambiguity inherent to
// unit quaternions (q and -q represent the same rotation).
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	diffPos := math.Abs(a.Real-b.Real) + math.Abs(a.Imag-b.Imag) + math.Abs(a.Jmag-b.Jmag) + math.Abs(a.Kmag-b.Kmag)
	diffNeg := math.Abs(a.Real+b.Real) + math.Abs(a.Imag+b.Imag) + math.Abs(a.Jmag+b.Jmag) + math.Abs(a.Kmag+b.Kmag)
	return diffPos < tol || diffNeg < tol
}

// NewQuaternion wraps a gonum quat.Number as an Orientation.
func NewQuaternion(q quat.Number) Orientation {
	qq := quaternion(q)
	return &qq
}
