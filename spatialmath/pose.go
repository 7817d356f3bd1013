package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid SE(3) transform: a translation plus an orientation. It carries no
// frame-id or timestamp of its own.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation Orientation
}

// NewZeroPose returns the identity transform: zero translation, zero rotation.
func NewZeroPose() Pose {
	return &pose{point: r3.Vector{}, orientation: NewZeroOrientation()}
}

// NewPoseFromPoint returns a pose with the given translation and no rotation.
func NewPoseFromPoint(pt r3.Vector) Pose {
	return &pose{point: pt, orientation: NewZeroOrientation()}
}

// NewPoseFromOrientation returns a pose with the given translation and orientation.
func NewPoseFromOrientation(pt r3.Vector, o Orientation) Pose {
	return &pose{point: pt, orientation: o}
}

// NewPose composes a translation with a rotation matrix, the representation used internally by
// the registration engine for its (R, T) per-point predicted pose.
func NewPose(rot *RotationMatrix, t r3.Vector) Pose {
	return &pose{point: t, orientation: rot}
}

func (p *pose) Point() r3.Vector       { return p.point }
func (p *pose) Orientation() Orientation { return p.orientation }

// Compose returns the pose that results from applying `next` in the frame defined by `p`,
// i.e. p.Compose(next) == p * next in homogeneous-transform terms.
func Compose(p, next Pose) Pose {
	rm := p.Orientation().RotationMatrix()
	rotated := rm.rotateVector(next.Point())
	return &pose{
		point:       p.Point().Add(rotated),
		orientation: NewQuaternion(quat.Mul(p.Orientation().Quaternion(), next.Orientation().Quaternion())),
	}
}

// Invert returns the inverse of a pose: p.Compose(p.Invert()) is the identity pose.
func Invert(p Pose) Pose {
	rm := p.Orientation().RotationMatrix().Transpose()
	invTranslation := rm.rotateVector(p.Point()).Mul(-1)
	return &pose{
		point:       invTranslation,
		orientation: rm,
	}
}

// PoseBetween returns the pose that, composed onto `from`, yields `to`: from.Compose(PoseBetween(from, to)) == to.
func PoseBetween(from, to Pose) Pose {
	return Compose(Invert(from), to)
}

// PoseAlmostEqual compares the translation and orientation of two poses within the given linear
// tolerance (orientation is compared via QuaternionAlmostEqual at a fixed angular tolerance).
func PoseAlmostEqual(a, b Pose, linTol float64) bool {
	if a.Point().Sub(b.Point()).Norm() > linTol {
		return false
	}
	return OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// TransformPoint applies p's rotation and then its translation to v, i.e. returns R*v + T.
func TransformPoint(p Pose, v r3.Vector) r3.Vector {
	rm := p.Orientation().RotationMatrix()
	return rm.rotateVector(v).Add(p.Point())
}

func (rm *RotationMatrix) rotateVector(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.At(0, 0)*v.X + rm.At(0, 1)*v.Y + rm.At(0, 2)*v.Z,
		Y: rm.At(1, 0)*v.X + rm.At(1, 1)*v.Y + rm.At(1, 2)*v.Z,
		Z: rm.At(2, 0)*v.X + rm.At(2, 1)*v.Y + rm.At(2, 2)*v.Z,
	}
}

// slerp performs spherical linear interpolation between two unit quaternions at parameter
// t in [0, 1], taking the shorter arc (flipping q2 if the dot product is negative).
func slerp(q1, q2 quat.Number, t float64) quat.Number {
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	if dot < 0 {
		q2 = quat.Number{Real: -q2.Real, Imag: -q2.Imag, Jmag: -q2.Jmag, Kmag: -q2.Kmag}
		dot = -dot
	}
	if dot > 0.9995 {
		// Nearly parallel: fall back to normalized linear interpolation to avoid division by ~0.
		lerped := quat.Number{
			Real: q1.Real + t*(q2.Real-q1.Real),
			Imag: q1.Imag + t*(q2.Imag-q1.Imag),
			Jmag: q1.Jmag + t*(q2.Jmag-q1.Jmag),
			Kmag: q1.Kmag + t*(q2.Kmag-q1.Kmag),
		}
		return quat.Scale(1/quat.Abs(lerped), lerped)
	}

	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	s1 := math.Cos(theta) - dot*math.Sin(theta)/sinTheta0
	s2 := math.Sin(theta) / sinTheta0

	return quat.Number{
		Real: s1*q1.Real + s2*q2.Real,
		Imag: s1*q1.Imag + s2*q2.Imag,
		Jmag: s1*q1.Jmag + s2*q2.Jmag,
		Kmag: s1*q1.Kmag + s2*q2.Kmag,
	}
}

// MotionInterpolator holds a pair of poses bracketed by sweep-relative times (t0, t1) and
// produces the interpolated pose at any t, per §4.4 of the motion model: LERP on translation,
// SLERP on rotation, clamped outside [t0, t1].
type MotionInterpolator struct {
	T0, T1 Pose
	t0, t1 float64
}

// NewMotionInterpolator builds an interpolator between two timestamped poses.
func NewMotionInterpolator(t0 float64, pose0 Pose, t1 float64, pose1 Pose) *MotionInterpolator {
	return &MotionInterpolator{T0: pose0, T1: pose1, t0: t0, t1: t1}
}

// Interpolate returns the pose at time t, clamped to [t0, t1].
func (mi *MotionInterpolator) Interpolate(t float64) Pose {
	var alpha float64
	if mi.t1 <= mi.t0 {
		alpha = 0
	} else {
		alpha = (t - mi.t0) / (mi.t1 - mi.t0)
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	translation := mi.T0.Point().Add(mi.T1.Point().Sub(mi.T0.Point()).Mul(alpha))
	q := slerp(mi.T0.Orientation().Quaternion(), mi.T1.Orientation().Quaternion(), alpha)
	return &pose{point: translation, orientation: NewQuaternion(q)}
}
