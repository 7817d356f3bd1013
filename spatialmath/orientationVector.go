package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// OrientationVector describes a rotation by the unit sphere point (OX, OY, OZ) that the local +Z axis is carried to,
// plus a rotation Theta (radians) about that point, rather than by a raw axis-angle 4-tuple. It is the representation most similar to
// how the underlying LidarSlam C++ code describes a pose's rotation in its logging output.
type OrientationVector struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// OrientationVectorDegrees is the same as OrientationVector except Theta is represented in degrees rather than radians.
type OrientationVectorDegrees struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// NewOrientationVector returns a zero-valued OrientationVector (no rotation, pole along +Z).
func NewOrientationVector() *OrientationVector {
	return &OrientationVector{Theta: 0, OX: 0, OY: 0, OZ: 1}
}

// NewOrientationVectorDegrees returns a zero-valued OrientationVectorDegrees (no rotation, pole along +Z).
func NewOrientationVectorDegrees() *OrientationVectorDegrees {
	return &OrientationVectorDegrees{Theta: 0, OX: 0, OY: 0, OZ: 1}
}

// Normalize scales OX, OY, OZ to lie on the unit sphere.
func (ov *OrientationVector) Normalize() {
	norm := math.Sqrt(ov.OX*ov.OX + ov.OY*ov.OY + ov.OZ*ov.OZ)
	if norm == 0 {
		ov.OZ = 1
		return
	}
	ov.OX /= norm
	ov.OY /= norm
	ov.OZ /= norm
}

// ToQuat converts an orientation vector into a quaternion, as the ZYZ Euler rotation
// (longitude, latitude, Theta) of the pole; on the +/-Z pole the longitude is taken as 0.
func (ov *OrientationVector) ToQuat() quat.Number {
	ov.Normalize()
	lat := math.Acos(ov.OZ)
	lon := 0.0
	if 1-math.Abs(ov.OZ) > angleEpsilon {
		lon = math.Atan2(ov.OY, ov.OX)
	}
	s1, c1 := math.Sincos(lon / 2)
	s2, c2 := math.Sincos(lat / 2)
	s3, c3 := math.Sincos(ov.Theta / 2)
	return quat.Number{Real: c1*c2*c3 - s1*c2*s3, Imag: c1*s2*s3 - s1*s2*c3,
		Jmag: c1*s2*c3 + s1*s2*s3, Kmag: s1*c2*c3 + c1*c2*s3}
}

// OrientationVectorRadians returns itself.
func (ov *OrientationVector) OrientationVectorRadians() *OrientationVector { return ov }

// OrientationVectorDegrees converts to the degree-valued representation.
func (ov *OrientationVector) OrientationVectorDegrees() *OrientationVectorDegrees {
	return &OrientationVectorDegrees{Theta: ov.Theta * radToDeg, OX: ov.OX, OY: ov.OY, OZ: ov.OZ}
}

// AxisAngles converts to R4AA.
func (ov *OrientationVector) AxisAngles() *R4AA {
	return QuatToR4AA(ov.ToQuat())
}

// Quaternion converts to a quat.Number.
func (ov *OrientationVector) Quaternion() quat.Number { return ov.ToQuat() }

// EulerAngles converts to Euler angles.
func (ov *OrientationVector) EulerAngles() *EulerAngles { return QuatToEulerAngles(ov.Quaternion()) }

// RotationMatrix converts to a rotation matrix.
func (ov *OrientationVector) RotationMatrix() *RotationMatrix { return QuatToRotationMatrix(ov.Quaternion()) }

// OrientationVectorRadians converts the degree representation to the radian representation.
func (ovd *OrientationVectorDegrees) OrientationVectorRadians() *OrientationVector {
	return &OrientationVector{Theta: ovd.Theta * degToRad, OX: ovd.OX, OY: ovd.OY, OZ: ovd.OZ}
}

// OrientationVectorDegrees returns itself.
func (ovd *OrientationVectorDegrees) OrientationVectorDegrees() *OrientationVectorDegrees { return ovd }

// AxisAngles converts to R4AA.
func (ovd *OrientationVectorDegrees) AxisAngles() *R4AA { return ovd.OrientationVectorRadians().AxisAngles() }

// Quaternion converts to a quat.Number.
func (ovd *OrientationVectorDegrees) Quaternion() quat.Number {
	return ovd.OrientationVectorRadians().Quaternion()
}

// EulerAngles converts to Euler angles.
func (ovd *OrientationVectorDegrees) EulerAngles() *EulerAngles {
	return ovd.OrientationVectorRadians().EulerAngles()
}

// RotationMatrix converts to a rotation matrix.
func (ovd *OrientationVectorDegrees) RotationMatrix() *RotationMatrix {
	return ovd.OrientationVectorRadians().RotationMatrix()
}

// QuatToR4AA converts a quaternion to an R4 axis angle in the same way the C++ Eigen library does:
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) *R4AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return &R4AA{angle, 0, 0, 1}
	}
	return &R4AA{angle, q.Imag / denom, q.Jmag / denom, q.Kmag / denom}
}

// Norm returns the norm of the imaginary part of a quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// QuatToOV converts a quaternion to an orientation vector using the local +Z axis as the pole,
// matching the convention used throughout this package's rotation representations.
func QuatToOV(q quat.Number) *OrientationVector {
	zAxis := quat.Number{Imag: 0, Jmag: 0, Kmag: 1}
	xAxis := quat.Number{Imag: -1, Jmag: 0, Kmag: 0}
	ov := &OrientationVector{}

	newZ := quat.Mul(quat.Mul(q, zAxis), quat.Conj(q))
	newX := quat.Mul(quat.Mul(q, xAxis), quat.Conj(q))
	ov.OX = newZ.Imag
	ov.OY = newZ.Jmag
	ov.OZ = newZ.Kmag

	if 1-math.Abs(newZ.Kmag) < angleEpsilon {
		ov.Theta = -math.Atan2(newX.Jmag, -newX.Imag)
		if newZ.Kmag < 0 {
			ov.Theta = -math.Atan2(newX.Jmag, newX.Imag)
		}
		return ov
	}

	v1 := r3.Vector{X: newZ.Imag, Y: newZ.Jmag, Z: newZ.Kmag}
	v2 := r3.Vector{X: newX.Imag, Y: newX.Jmag, Z: newX.Kmag}
	norm1 := v1.Cross(v2)
	norm2 := v1.Cross(r3.Vector{X: zAxis.Imag, Y: zAxis.Jmag, Z: zAxis.Kmag})

	cosTheta := norm1.Dot(norm2) / (norm1.Norm() * norm2.Norm())
	if cosTheta > 1 {
		cosTheta = 1
	}
	if cosTheta < -1 {
		cosTheta = -1
	}

	theta := math.Acos(cosTheta)
	if theta <= angleEpsilon {
		ov.Theta = 0
		return ov
	}

	aa := R4AA{Theta: -theta, RX: ov.OX, RY: ov.OY, RZ: ov.OZ}
	q2 := aa.ToQuat()
	testZ := quat.Mul(quat.Mul(q2, zAxis), quat.Conj(q2))
	norm3 := v1.Cross(r3.Vector{X: testZ.Imag, Y: testZ.Jmag, Z: testZ.Kmag})
	cosTest := norm1.Dot(norm3) / (norm1.Norm() * norm3.Norm())
	if 1-cosTest < angleEpsilon*angleEpsilon {
		ov.Theta = -theta
	} else {
		ov.Theta = theta
	}
	return ov
}

// QuatToOVD converts a quaternion directly to the degree-valued orientation vector.
func QuatToOVD(q quat.Number) *OrientationVectorDegrees {
	ov := QuatToOV(q)
	return ov.OrientationVectorDegrees()
}

const radToDeg = 180 / math.Pi
const degToRad = math.Pi / 180

// angleEpsilon is the tolerance used when deciding whether an orientation lies on the +/-Z pole,
// below which the otherwise ill-conditioned OrientationVector decomposition switches branches.
const angleEpsilon = 0.01
