package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerAngles are a representation of a rotation as a sequence of three rotations about the
// intrinsic axes, in radians. Euler angles are terrible, don't use them unless an external
// interface demands them.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAngles returns a zero-valued set of Euler angles.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// OrientationVectorRadians converts to an OrientationVector.
func (e *EulerAngles) OrientationVectorRadians() *OrientationVector { return QuatToOV(e.Quaternion()) }

// OrientationVectorDegrees converts to an OrientationVectorDegrees.
func (e *EulerAngles) OrientationVectorDegrees() *OrientationVectorDegrees {
	return QuatToOVD(e.Quaternion())
}

// AxisAngles converts to an R4AA.
func (e *EulerAngles) AxisAngles() *R4AA { return QuatToR4AA(e.Quaternion()) }

// Quaternion converts Euler angles (roll about X, then pitch about Y, then yaw about Z) to a quaternion.
func (e *EulerAngles) Quaternion() quat.Number {
	cr, sr := math.Cos(e.Roll*0.5), math.Sin(e.Roll*0.5)
	cp, sp := math.Cos(e.Pitch*0.5), math.Sin(e.Pitch*0.5)
	cy, sy := math.Cos(e.Yaw*0.5), math.Sin(e.Yaw*0.5)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// EulerAngles returns itself.
func (e *EulerAngles) EulerAngles() *EulerAngles { return e }

// RotationMatrix converts to a RotationMatrix.
func (e *EulerAngles) RotationMatrix() *RotationMatrix { return QuatToRotationMatrix(e.Quaternion()) }

// QuatToEulerAngles converts a rotation unit quaternion to Euler angles (radians), using the
// standard quaternion-to-Tait-Bryan conversion.
// https://en.wikipedia.org/wiki/Conversion_between_quaternions_and_Euler_angles
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return &EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}
