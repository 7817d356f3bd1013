// Package slam implements the per-frame orchestrator: the state machine that ties keypoint
// extraction, the two ICP registration passes, motion undistortion, and rolling-grid map updates
// into a single AddFrame call.
package slam

import (
	"github.com/jpouderoux/LidarSlam/keypoints"
	"github.com/jpouderoux/LidarSlam/motion"
	"github.com/jpouderoux/LidarSlam/registration"
	"github.com/jpouderoux/LidarSlam/spatialmath"
	"github.com/jpouderoux/LidarSlam/voxelgrid"
)

// PhaseParams bundles the registration-tuning parameters shared by both ICP phases (ego-motion and
// localization), collapsed into one reusable block rather than two near-identical parameter sets.
type PhaseParams struct {
	LMMaxIterations  int
	ICPMaxIterations int

	LineNeighbours  registration.NeighbourParams
	PlaneNeighbours registration.NeighbourParams

	Primitive registration.PrimitiveParams

	InitLossScale  float64
	FinalLossScale float64
}

// Config is the complete set of options recognized by the orchestrator, read-only after the
// first frame unless noted.
type Config struct {
	NbThreads  int
	Verbosity  int
	FastSlam   bool
	UpdateMap  bool

	EgoMotion     motion.EgoMotionMode
	Undistortion  motion.UndistortionMode

	LoggingTimeout float64 // seconds; <= 0 disables logging deques

	EgoMotionParams    PhaseParams
	LocalizationParams PhaseParams

	MinNbrMatchedKeypoints int

	VoxelGridEdges   voxelgrid.Params
	VoxelGridPlanars voxelgrid.Params
	VoxelGridBlobs   voxelgrid.Params

	Keypoints keypoints.Params

	// BaseToLidarOffset is applied by the keypoint extractor; BASE == LIDAR when this is the
	// identity pose.
	BaseToLidarOffset spatialmath.Pose
}

// DefaultConfig returns the orchestrator's baseline configuration: single-threaded, map updates
// and fast-SLAM planar reuse on, approximated undistortion, extrapolated ego-motion.
func DefaultConfig() Config {
	icpMatching := func(k, kMin int, maxDist float64) registration.NeighbourParams {
		return registration.NeighbourParams{K: k, KMin: kMin, MaxDistanceForICPMatching: maxDist}
	}
	primitive := registration.PrimitiveParams{
		LineEigenRatio:   10,
		PlaneEigenRatio1: 5,
		PlaneEigenRatio2: 3,
		MaxLineDistance:  0.2,
		MaxPlaneDistance: 0.2,
	}

	phase := func(lmIter, icpIter int) PhaseParams {
		return PhaseParams{
			LMMaxIterations:  lmIter,
			ICPMaxIterations: icpIter,
			LineNeighbours:   icpMatching(10, 3, 5),
			PlaneNeighbours:  icpMatching(10, 5, 5),
			Primitive:        primitive,
			InitLossScale:    0.1,
			FinalLossScale:   1.0,
		}
	}

	return Config{
		NbThreads:     1,
		Verbosity:     0,
		FastSlam:      true,
		UpdateMap:     true,
		EgoMotion:     motion.EgoMotionExtrapolation,
		Undistortion:  motion.UndistortionApproximated,
		LoggingTimeout: 0,

		EgoMotionParams:        phase(15, 4),
		LocalizationParams:     phase(15, 3),
		MinNbrMatchedKeypoints: 20,

		VoxelGridEdges:   voxelgrid.Params{GridSize: 100, LeafSize: 0.3, MaxPointsPerCell: 30, RollThreshold: 0.7},
		VoxelGridPlanars: voxelgrid.Params{GridSize: 100, LeafSize: 0.6, MaxPointsPerCell: 30, RollThreshold: 0.7},
		VoxelGridBlobs:   voxelgrid.Params{GridSize: 100, LeafSize: 0.6, MaxPointsPerCell: 30, RollThreshold: 0.7},

		BaseToLidarOffset: spatialmath.NewZeroPose(),

		Keypoints: keypoints.Params{
			Window:              3,
			MinPointsPerLine:    50,
			NumSectors:          6,
			MaxEdgesPerSector:   4,
			MaxPlanarsPerSector: 8,
			EdgeThreshold:       0.1,
			PlanarThreshold:     0.01,
			DepthGapThreshold:   0.3,
			ParallelBeamCosine:  0.99,
			NbThreads:           1,
		},
	}
}
