package slam

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/atomic"

	"github.com/jpouderoux/LidarSlam/keypoints"
	"github.com/jpouderoux/LidarSlam/logging"
	"github.com/jpouderoux/LidarSlam/motion"
	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/registration"
	"github.com/jpouderoux/LidarSlam/spatialmath"
	"github.com/jpouderoux/LidarSlam/voxelgrid"
)

// Frame is one sweep offered to Engine.AddFrame, already converted to the core's internal units
// (seconds for both Timestamp and each point's Time-relative-to-sweep-start; that conversion from
// a sensor's raw microsecond timestamps is an input-adapter concern external to the core).
type Frame struct {
	Sweep       *pointcloud.Cloud
	Calibration *CalibrationTable
	Timestamp   float64 // seconds, strictly increasing across accepted frames
	SequenceID  uint64
}

// Result is what AddFrame returns for one accepted frame.
type Result struct {
	WorldPose        spatialmath.Pose
	LatencyCompensated spatialmath.Pose
	Covariance       [36]float64
	TransformedSweep *pointcloud.Cloud
	Edges, Planars, Blobs *pointcloud.Cloud
	EgoMotionHistogram, LocalizationHistogram registration.Histogram
	Latency          time.Duration
	Degenerate       bool
}

// Engine is the per-frame SLAM orchestrator: it owns the state machine, the previous frame's
// keypoints (for ego-motion), the three rolling grid maps, and the bounded logging deques.
type Engine struct {
	cfg   Config
	log   logging.Logger
	state State

	lastSequenceID   uint64
	haveLastSequence bool
	lastTimestamp    float64

	worldPrev, worldPrevPrev spatialmath.Pose
	timePrev, timePrevPrev   float64

	prevKeypoints keypoints.Result

	edgesGrid, planarsGrid, blobsGrid *voxelgrid.RollingGrid

	trajectory *loggingDeque[TrajectoryRecord]
	keypointLog *loggingDeque[keypointSnapshot]

	counters map[ErrorKind]int

	// framesProcessed is read from FramesProcessed, which a caller may poll from a metrics or
	// status-reporting goroutine while AddFrame runs concurrently on the processing goroutine.
	framesProcessed atomic.Int64
}

// New constructs an Engine. It returns ErrConfigContradiction if cfg cannot be satisfied, the
// only fatal condition raised at construction time.
func New(cfg Config, log logging.Logger) (*Engine, error) {
	if cfg.VoxelGridEdges.GridSize <= 0 || cfg.VoxelGridPlanars.GridSize <= 0 || cfg.VoxelGridBlobs.GridSize <= 0 {
		return nil, ErrConfigContradiction
	}
	if cfg.BaseToLidarOffset == nil {
		cfg.BaseToLidarOffset = spatialmath.NewZeroPose()
	}
	if log == nil {
		log = logging.NewBlankLogger("slam")
	}

	e := &Engine{
		cfg:         cfg,
		log:         log,
		state:       AwaitingFirstFrame,
		edgesGrid:   voxelgrid.New(cfg.VoxelGridEdges),
		planarsGrid: voxelgrid.New(cfg.VoxelGridPlanars),
		blobsGrid:   voxelgrid.New(cfg.VoxelGridBlobs),
		counters:    make(map[ErrorKind]int),
	}
	e.trajectory = newLoggingDeque(cfg.LoggingTimeout, func(r TrajectoryRecord) float64 { return r.Timestamp })
	e.keypointLog = newLoggingDeque(cfg.LoggingTimeout, func(k keypointSnapshot) float64 { return k.timestamp })
	return e, nil
}

// State reports the engine's current position in the per-frame state machine.
func (e *Engine) State() State { return e.state }

// Counters returns a snapshot of the non-fatal error counters accumulated so far.
func (e *Engine) Counters() map[ErrorKind]int {
	out := make(map[ErrorKind]int, len(e.counters))
	for k, v := range e.counters {
		out[k] = v
	}
	return out
}

// Trajectory returns the bounded trajectory log retained under LoggingTimeout.
func (e *Engine) Trajectory() []TrajectoryRecord { return e.trajectory.Entries() }

// FramesProcessed returns the count of frames accepted so far. Safe to call concurrently with
// AddFrame from a separate status-reporting goroutine.
func (e *Engine) FramesProcessed() int64 { return e.framesProcessed.Load() }

func (e *Engine) reject(kind ErrorKind) {
	e.counters[kind]++
}

// checkFrame validates a frame independent of engine state.
func (e *Engine) checkFrame(f Frame) error {
	if f.Sweep == nil || f.Sweep.Size() == 0 {
		return newFrameError(EmptyFrame, "sweep has no points")
	}
	if f.Calibration == nil || len(f.Calibration.VerticalCorrection) == 0 {
		return newFrameError(MissingCalibration, "no calibration table supplied")
	}
	if e.haveLastSequence && f.Timestamp <= e.lastTimestamp {
		return newFrameError(TimestampRegression, "frame timestamp did not strictly increase")
	}
	return nil
}

// AddFrame runs checkFrame and, if it passes, the full per-frame pipeline: keypoint extraction,
// ego-motion ICP, localization ICP, undistortion, and map update.
func (e *Engine) AddFrame(f Frame) (Result, error) {
	ingress := time.Now()

	if err := e.checkFrame(f); err != nil {
		kind, _ := KindOf(err)
		e.reject(kind)
		if kind == TimestampRegression {
			e.log.Warnw("frame dropped", "sequenceID", f.SequenceID, "reason", kind.String())
		}
		return Result{}, err
	}

	if e.haveLastSequence && f.SequenceID != e.lastSequenceID+1 {
		e.log.Infow("frame dropped", "expectedSequenceID", e.lastSequenceID+1, "gotSequenceID", f.SequenceID)
	}
	e.lastSequenceID = f.SequenceID
	e.haveLastSequence = true
	e.lastTimestamp = f.Timestamp

	mapping := f.Calibration.LaserIDMapping()
	kp := keypoints.Extract(f.Sweep, mapping, e.cfg.BaseToLidarOffset, e.cfg.Keypoints)

	var worldPose spatialmath.Pose
	var covariance [36]float64
	var egoHist, locHist registration.Histogram
	degenerate := false

	if e.state == AwaitingFirstFrame {
		worldPose = spatialmath.NewZeroPose()
		e.state = Initialized
	} else {
		var egoGuess spatialmath.Pose
		if e.cfg.EgoMotion == motion.EgoMotionRegistration || e.cfg.EgoMotion == motion.EgoMotionCombined {
			egoGuess, egoHist = e.runEgoMotion(kp, f)
		}
		guess := motion.Extrapolate(e.cfg.EgoMotion, e.worldPrev, e.worldPrevPrev, egoGuess)

		worldPose, covariance, locHist, degenerate = e.runLocalization(kp, f, guess)
		e.state = Steady
	}

	transformedSweep := f.Sweep.Transform(func(v r3.Vector) r3.Vector {
		return spatialmath.TransformPoint(worldPose, v)
	})

	if e.cfg.UpdateMap {
		toWorld := func(v r3.Vector) r3.Vector { return spatialmath.TransformPoint(worldPose, v) }
		e.edgesGrid.AddPoints(kp.Edges, toWorld)
		e.planarsGrid.AddPoints(kp.Planars, toWorld)
		e.blobsGrid.AddPoints(kp.Blobs, toWorld)
		e.edgesGrid.Roll(worldPose.Point())
		e.planarsGrid.Roll(worldPose.Point())
		e.blobsGrid.Roll(worldPose.Point())
	}

	e.worldPrevPrev, e.timePrevPrev = e.worldPrev, e.timePrev
	e.worldPrev, e.timePrev = worldPose, f.Timestamp
	e.prevKeypoints = kp

	latency := time.Since(ingress)
	latencyCompensated := spatialmath.Compose(worldPose, extrapolationStep(e.worldPrevPrev, worldPose, latency.Seconds(), e.timePrev-e.timePrevPrev))

	e.trajectory.Push(TrajectoryRecord{Timestamp: f.Timestamp, Pose: worldPose, Covariance: covariance})
	e.keypointLog.Push(keypointSnapshot{timestamp: f.Timestamp, edges: kp.Edges, planars: kp.Planars, blobs: kp.Blobs})
	e.framesProcessed.Inc()

	return Result{
		WorldPose:             worldPose,
		LatencyCompensated:    latencyCompensated,
		Covariance:            covariance,
		TransformedSweep:      transformedSweep,
		Edges:                 kp.Edges,
		Planars:               kp.Planars,
		Blobs:                 kp.Blobs,
		EgoMotionHistogram:    egoHist,
		LocalizationHistogram: locHist,
		Latency:               latency,
		Degenerate:            degenerate,
	}, nil
}

// extrapolationStep scales the constant-velocity step between two poses by a fraction of the
// inter-frame interval, used to project the reported pose forward by the measured latency.
func extrapolationStep(prevPrev, prev spatialmath.Pose, latencySeconds, intervalSeconds float64) spatialmath.Pose {
	if prevPrev == nil || latencySeconds <= 0 || intervalSeconds <= 0 {
		return spatialmath.NewZeroPose()
	}
	step := spatialmath.PoseBetween(prevPrev, prev)
	alpha := math.Min(latencySeconds/intervalSeconds, 1.0)
	return motion.LerpPose(spatialmath.NewZeroPose(), step, alpha)
}

// runEgoMotion registers the current frame's keypoints against the previous frame's, seeding a
// fast relative-motion estimate for the localization guess. The previous keypoints are in the
// previous frame's BASE coordinates, so the solve yields the motion relative to e.worldPrev
// (seeded with the last constant-velocity step), and the returned pose composes it onto e.worldPrev.
func (e *Engine) runEgoMotion(kp keypoints.Result, f Frame) (spatialmath.Pose, registration.Histogram) {
	params := e.cfg.EgoMotionParams
	relGuess := spatialmath.NewZeroPose()
	if e.worldPrevPrev != nil {
		relGuess = spatialmath.PoseBetween(e.worldPrevPrev, e.worldPrev)
	}

	edgeTree := kdtreeOf(e.prevKeypoints.Edges)
	planarTree := kdtreeOf(e.prevKeypoints.Planars)

	// Ego-motion always runs under UndistortionNone, so the begin/end sweep-relative times it is
	// given are unused; pass zeros rather than plumbing the current sweep's duration through.
	rel, hist := icpLoop(kp, edgeTree, planarTree, 0, 0, relGuess, motion.UndistortionNone, params, e.cfg.MinNbrMatchedKeypoints)
	return spatialmath.Compose(e.worldPrev, rel), hist
}

// runLocalization registers the current frame's keypoints against the rolling-grid maps, queried
// around guess, producing the final world pose and its covariance.
func (e *Engine) runLocalization(kp keypoints.Result, f Frame, guess spatialmath.Pose) (spatialmath.Pose, [36]float64, registration.Histogram, bool) {
	params := e.cfg.LocalizationParams
	radius := math.Max(params.LineNeighbours.MaxDistanceForICPMatching, params.PlaneNeighbours.MaxDistanceForICPMatching)

	_, edgeTree := e.edgesGrid.QueryCloud(guess.Point(), radius)
	_, planarTree := e.planarsGrid.QueryCloud(guess.Point(), radius)

	localizationKeypoints := kp
	if e.cfg.FastSlam {
		// FastSlam reuses ego-motion's planar selection rather than all non-invalid planar
		// points; ego-motion already extracted the same cloud, so localization matches it as-is.
		localizationKeypoints.Planars = kp.Planars
	}

	sweepEnd := sweepDuration(f.Sweep)
	pose, result, hist := icpLoopWithResult(localizationKeypoints, edgeTree, planarTree, 0, sweepEnd, guess, e.cfg.Undistortion, params, e.cfg.MinNbrMatchedKeypoints)

	degenerate := hist[registration.Success] < e.cfg.MinNbrMatchedKeypoints
	if degenerate {
		e.reject(DegenerateGeometry)
		return e.worldPrev, [36]float64{}, hist, true
	}

	cov := registration.Covariance(result)
	return pose, registration.Flatten36(cov), hist, false
}
