// Package motion implements pose extrapolation and per-point undistortion models: building the LM
// parameter-to-pose function for each undistortion mode, and seeding the next frame's pose guess
// under each ego-motion mode.
package motion

import (
	"github.com/golang/geo/r3"

	"github.com/jpouderoux/LidarSlam/registration"
	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// EgoMotionMode selects how the initial pose guess for a frame's end pose is seeded before
// registration refines it.
type EgoMotionMode int

const (
	// EgoMotionNone seeds the guess with the previous frame's end pose (no motion assumed).
	EgoMotionNone EgoMotionMode = iota
	// EgoMotionExtrapolation assumes constant velocity from the previous two end poses.
	EgoMotionExtrapolation
	// EgoMotionRegistration takes the guess from the outcome of the ego-motion ICP step.
	EgoMotionRegistration
	// EgoMotionCombined runs registration seeded by the extrapolated guess.
	EgoMotionCombined
)

// UndistortionMode selects how the begin/end sweep poses are parameterized and how a point's
// per-point predicted pose is derived from them.
type UndistortionMode int

const (
	// UndistortionNone uses the optimized end pose as the per-point pose for every point.
	UndistortionNone UndistortionMode = iota
	// UndistortionApproximated holds the begin pose fixed at a pose supplied by the caller and
	// optimizes only the end pose; per-point poses interpolate between them.
	UndistortionApproximated
	// UndistortionOptimized optimizes both begin and end poses and interpolates between them.
	UndistortionOptimized
)

// Extrapolate returns the initial guess for a frame's end pose under mode, given the previous
// two accepted end poses and (for EgoMotionRegistration/Combined) the pose found by ego-motion
// ICP against the previous frame's keypoints. Without an ego-motion result, EgoMotionCombined
// falls back to the constant-velocity extrapolation.
func Extrapolate(mode EgoMotionMode, worldPrev, worldPrevPrev, egoMotionResult spatialmath.Pose) spatialmath.Pose {
	switch mode {
	case EgoMotionNone:
		return worldPrev
	case EgoMotionExtrapolation, EgoMotionCombined:
		if mode == EgoMotionCombined && egoMotionResult != nil {
			return egoMotionResult
		}
		if worldPrevPrev == nil {
			return worldPrev
		}
		// T_world_prev . (T_world_prev_prev^-1 . T_world_prev): constant-velocity step repeated once more.
		step := spatialmath.PoseBetween(worldPrevPrev, worldPrev)
		return spatialmath.Compose(worldPrev, step)
	case EgoMotionRegistration:
		if egoMotionResult != nil {
			return egoMotionResult
		}
		return worldPrev
	default:
		return worldPrev
	}
}

// paramsToPose interprets a 6-vector (omega_x, omega_y, omega_z, t_x, t_y, t_z) as an SE(3) pose,
// the parameterization used at the LM solver boundary.
func paramsToPose(p []float64) spatialmath.Pose {
	aa := spatialmath.R3ToR4(r3.Vector{X: p[0], Y: p[1], Z: p[2]})
	return spatialmath.NewPose(aa.RotationMatrix(), r3.Vector{X: p[3], Y: p[4], Z: p[5]})
}

// ParamsToPose exports paramsToPose for callers outside the package (the orchestrator's ICP loop,
// which must turn an LM solve's optimized parameter vector back into a pose each outer iteration).
func ParamsToPose(p []float64) spatialmath.Pose { return paramsToPose(p) }

// poseToParams is the inverse of paramsToPose, used to seed the LM solve from an extrapolated
// guess; the matrix -> axis-angle -> matrix round trip commutes within tolerance.
func poseToParams(p spatialmath.Pose) []float64 {
	aa := p.Orientation().AxisAngles()
	omega := aa.ToR3()
	t := p.Point()
	return []float64{omega.X, omega.Y, omega.Z, t.X, t.Y, t.Z}
}

// NonePoseAt builds the registration.PoseAt for UndistortionNone: the 6-dim parameter vector is
// the single (constant) pose applied to every point regardless of its time.
func NonePoseAt() registration.PoseAt {
	return func(params []float64, _ float64) spatialmath.Pose {
		return paramsToPose(params)
	}
}

// ApproximatedPoseAt builds the registration.PoseAt for UndistortionApproximated: beginPose is
// fixed at the pose the caller passes, and the 6-dim parameter
// vector optimizes only the end pose; points interpolate between the two by time.
func ApproximatedPoseAt(beginPose spatialmath.Pose, beginTime, endTime float64) registration.PoseAt {
	return func(params []float64, t float64) spatialmath.Pose {
		endPose := paramsToPose(params)
		interp := spatialmath.NewMotionInterpolator(beginTime, beginPose, endTime, endPose)
		return interp.Interpolate(t)
	}
}

// OptimizedPoseAt builds the registration.PoseAt for UndistortionOptimized: the 12-dim parameter
// vector holds the begin pose in params[0:6] and the end pose in params[6:12], both optimized;
// points interpolate between the two optimized endpoints by time.
func OptimizedPoseAt(beginTime, endTime float64) registration.PoseAt {
	return func(params []float64, t float64) spatialmath.Pose {
		beginPose := paramsToPose(params[0:6])
		endPose := paramsToPose(params[6:12])
		interp := spatialmath.NewMotionInterpolator(beginTime, beginPose, endTime, endPose)
		return interp.Interpolate(t)
	}
}

// InitialParams returns the LM parameter vector's initial value for mode, seeded from the
// provided begin/end pose guesses (for UndistortionOptimized, both are used; otherwise only the
// end guess is).
func InitialParams(mode UndistortionMode, beginGuess, endGuess spatialmath.Pose) []float64 {
	switch mode {
	case UndistortionOptimized:
		return append(poseToParams(beginGuess), poseToParams(endGuess)...)
	default:
		return poseToParams(endGuess)
	}
}

// LerpPose returns the pose midway (by fraction alpha in [0,1]) between a and b, LERP on
// translation and SLERP on rotation.
func LerpPose(a, b spatialmath.Pose, alpha float64) spatialmath.Pose {
	interp := spatialmath.NewMotionInterpolator(0, a, 1, b)
	return interp.Interpolate(alpha)
}
