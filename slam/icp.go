package slam

import (
	"github.com/golang/geo/r3"

	"github.com/jpouderoux/LidarSlam/kdtree"
	"github.com/jpouderoux/LidarSlam/keypoints"
	"github.com/jpouderoux/LidarSlam/motion"
	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/registration"
	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// kdtreeOf builds a kd-tree over a keypoint cloud, or an empty tree if the cloud is nil/empty;
// Matcher treats an empty tree as NotEnoughNeighbours for every query.
func kdtreeOf(cloud *pointcloud.Cloud) *kdtree.Tree {
	if cloud == nil || cloud.Size() == 0 {
		return kdtree.New(nil)
	}
	points := make([]r3.Vector, cloud.Size())
	for i, p := range cloud.Points {
		points[i] = p.Position()
	}
	return kdtree.New(points)
}

// icpLoop runs icpLoopWithResult and discards the raw LM result, for callers (ego-motion) that
// only need the final pose and matching histogram.
func icpLoop(
	kp keypoints.Result,
	edgeTree, planarTree *kdtree.Tree,
	beginTime, endTime float64,
	guess spatialmath.Pose,
	undistortion motion.UndistortionMode,
	params PhaseParams,
	minMatched int,
) (spatialmath.Pose, registration.Histogram) {
	pose, _, hist := icpLoopWithResult(kp, edgeTree, planarTree, beginTime, endTime, guess, undistortion, params, minMatched)
	return pose, hist
}

// icpLoopWithResult runs the outer ICP loop: for up to ICPMaxIterations iterations, match
// edge/planar keypoints against the supplied kd-trees, fit residuals, and solve
// one Levenberg-Marquardt pass with an annealed loss scale. It returns the optimized end pose, the
// raw LM result of the final iteration (needed for covariance), and the cumulative matching
// histogram.
func icpLoopWithResult(
	kp keypoints.Result,
	edgeTree, planarTree *kdtree.Tree,
	beginTime, endTime float64,
	guess spatialmath.Pose,
	undistortion motion.UndistortionMode,
	params PhaseParams,
	minMatched int,
) (spatialmath.Pose, registration.Result, registration.Histogram) {
	edgeMatcher := &registration.Matcher{Tree: edgeTree, Neighbour: params.LineNeighbours, Primitive: params.Primitive}
	planarMatcher := &registration.Matcher{Tree: planarTree, Neighbour: params.PlaneNeighbours, Primitive: params.Primitive}

	endPose := guess
	beginPose := guess

	var lastResult registration.Result
	hist := registration.Histogram{}
	schedule := registration.LinearLossSchedule(params.InitLossScale, params.FinalLossScale, params.ICPMaxIterations)

	edgeX, edgeT := flattenKeypoints(kp.Edges)
	planarX, planarT := flattenKeypoints(kp.Planars)

	for iter := 0; iter < params.ICPMaxIterations; iter++ {
		iterHist := registration.Histogram{}
		residuals := edgeMatcher.MatchAll(edgeX, edgeT, registration.Edge, iterHist)
		residuals = append(residuals, planarMatcher.MatchAll(planarX, planarT, registration.Planar, iterHist)...)
		for tag, n := range iterHist {
			hist[tag] += n
		}

		if len(residuals) < minMatched {
			break
		}

		var poseAt registration.PoseAt
		var initParams []float64
		switch undistortion {
		case motion.UndistortionOptimized:
			poseAt = motion.OptimizedPoseAt(beginTime, endTime)
			initParams = motion.InitialParams(undistortion, beginPose, endPose)
		case motion.UndistortionApproximated:
			poseAt = motion.ApproximatedPoseAt(beginPose, beginTime, endTime)
			initParams = motion.InitialParams(motion.UndistortionNone, nil, endPose)
		default:
			poseAt = motion.NonePoseAt()
			initParams = motion.InitialParams(motion.UndistortionNone, nil, endPose)
		}

		solverParams := registration.DefaultSolverParams()
		solverParams.MaxIterations = params.LMMaxIterations
		result := registration.Solve(residuals, poseAt, initParams, schedule(iter), solverParams)
		lastResult = result

		if undistortion == motion.UndistortionOptimized {
			endPose = motion.ParamsToPose(result.Params[6:12])
			beginPose = motion.ParamsToPose(result.Params[0:6])
		} else {
			endPose = motion.ParamsToPose(result.Params)
		}
	}

	return endPose, lastResult, hist
}

// sweepDuration returns the latest per-point Time in cloud, the end of the [0, duration] window
// undistortion interpolates over for this sweep.
func sweepDuration(cloud *pointcloud.Cloud) float64 {
	if cloud == nil {
		return 0
	}
	var maxT float64
	for _, p := range cloud.Points {
		if p.Time > maxT {
			maxT = p.Time
		}
	}
	return maxT
}

func flattenKeypoints(cloud *pointcloud.Cloud) ([]r3.Vector, []float64) {
	if cloud == nil {
		return nil, nil
	}
	xs := make([]r3.Vector, cloud.Size())
	ts := make([]float64, cloud.Size())
	for i, p := range cloud.Points {
		xs[i] = p.Position()
		ts[i] = p.Time
	}
	return xs, ts
}
