package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 rotation matrix stored row-major. It is the representation closest to
// the underlying SE(3) math used by the registration engine, which operates on rotation matrices
// directly and only drops to axis-angle at the Levenberg-Marquardt parameter boundary.
type RotationMatrix struct {
	data [9]float64
}

// NewRotationMatrix builds a RotationMatrix from nine row-major entries. The entries are not
// checked: a RotationMatrix is assumed throughout this package to represent a proper rotation,
// and a matrix that is not orthonormal with determinant +1 is accepted as given.
func NewRotationMatrix(data [9]float64) *RotationMatrix {
	rm := &RotationMatrix{data: data}
	return rm
}

// At returns the matrix entry at row r, column c (0-indexed).
func (rm *RotationMatrix) At(r, c int) float64 {
	return rm.data[r*3+c]
}

// Raw returns the nine row-major entries.
func (rm *RotationMatrix) Raw() [9]float64 {
	return rm.data
}

// Transpose returns the transpose of the matrix, which for a proper rotation matrix is also its inverse.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[c*3+r] = rm.data[r*3+c]
		}
	}
	return &RotationMatrix{data: out}
}

// MulRotationMatrix composes two rotation matrices, rm * other.
func (rm *RotationMatrix) MulRotationMatrix(other *RotationMatrix) *RotationMatrix {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.At(r, k) * other.At(k, c)
			}
			out[r*3+c] = sum
		}
	}
	return &RotationMatrix{data: out}
}

// OrientationVectorRadians converts to an OrientationVector.
func (rm *RotationMatrix) OrientationVectorRadians() *OrientationVector {
	return QuatToOV(rm.Quaternion())
}

// OrientationVectorDegrees converts to an OrientationVectorDegrees.
func (rm *RotationMatrix) OrientationVectorDegrees() *OrientationVectorDegrees {
	return QuatToOVD(rm.Quaternion())
}

// AxisAngles converts to an R4AA.
func (rm *RotationMatrix) AxisAngles() *R4AA {
	return QuatToR4AA(rm.Quaternion())
}

// EulerAngles converts to Euler angles.
func (rm *RotationMatrix) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(rm.Quaternion())
}

// RotationMatrix returns itself.
func (rm *RotationMatrix) RotationMatrix() *RotationMatrix { return rm }

// Quaternion converts a rotation matrix to a unit quaternion using Shepperd's method, which stays
// numerically stable regardless of which diagonal entry is largest.
func (rm *RotationMatrix) Quaternion() quat.Number {
	m00, m01, m02 := rm.At(0, 0), rm.At(0, 1), rm.At(0, 2)
	m10, m11, m12 := rm.At(1, 0), rm.At(1, 1), rm.At(1, 2)
	m20, m21, m22 := rm.At(2, 0), rm.At(2, 1), rm.At(2, 2)

	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		return quat.Number{
			Real: 0.25 / s,
			Imag: (m21 - m12) * s,
			Jmag: (m02 - m20) * s,
			Kmag: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		return quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		return quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		return quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}
}

// QuatToRotationMatrix converts a unit quaternion to its equivalent rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	n := w*w + x*x + y*y + z*z
	if n == 0 {
		return NewRotationMatrix([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	s := 2.0 / n
	wx, wy, wz := s*w*x, s*w*y, s*w*z
	xx, xy, xz := s*x*x, s*x*y, s*x*z
	yy, yz, zz := s*y*y, s*y*z, s*z*z

	return NewRotationMatrix([9]float64{
		1 - (yy + zz), xy - wz, xz + wy,
		xy + wz, 1 - (xx + zz), yz - wx,
		xz - wy, yz + wx, 1 - (xx + yy),
	})
}

// NewRotationMatrixFromAxisAngle builds a RotationMatrix from an R3 axis-angle vector, whose
// direction is the rotation axis and whose length is the rotation angle in radians.
func NewRotationMatrixFromAxisAngle(aa r3.Vector) *RotationMatrix {
	r4 := R4AA{Theta: aa.Norm(), RX: 1, RY: 0, RZ: 0}
	if r4.Theta > 1e-12 {
		r4.RX, r4.RY, r4.RZ = aa.X/r4.Theta, aa.Y/r4.Theta, aa.Z/r4.Theta
	}
	return QuatToRotationMatrix(r4.ToQuat())
}
