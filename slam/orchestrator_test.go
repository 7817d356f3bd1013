package slam

import (
	"testing"

	"go.viam.com/test"

	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/registration"
)

func testCalibration(nLines int) *CalibrationTable {
	corrections := make([]float64, nLines)
	for i := range corrections {
		corrections[i] = float64(nLines - i) // descending raw index, so LaserIDMapping is the identity
	}
	return &CalibrationTable{VerticalCorrection: corrections}
}

// wallSweep builds a multi-line sweep of points scattered over a roughly planar wall at x=5, with
// a small per-point jitter along x (the wall normal) so the wall is not exactly flat.
func wallSweep(nLines, pointsPerLine int) *pointcloud.Cloud {
	sweep := pointcloud.NewCloud("lidar")
	for line := 0; line < nLines; line++ {
		for i := 0; i < pointsPerLine; i++ {
			y := float64(i) * 0.05
			z := float64(line) * 0.3
			jitter := 0.002 * float64((i*7+line*3)%5-2)
			sweep.Append(pointcloud.Point{X: 5 + jitter, Y: y, Z: z, LaserID: uint8(line), Time: float64(i) * 0.0005})
		}
	}
	return sweep
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Keypoints.MinPointsPerLine = 10
	cfg.Keypoints.NumSectors = 1
	cfg.Keypoints.EdgeThreshold = 1e6 // disable edges entirely: no corners in the synthetic wall
	cfg.Keypoints.PlanarThreshold = 1.0
	cfg.Keypoints.DepthGapThreshold = 1000
	cfg.Keypoints.ParallelBeamCosine = 0.9999

	relaxed := registration.PrimitiveParams{
		LineEigenRatio:   1.01,
		PlaneEigenRatio1: 1.01,
		PlaneEigenRatio2: 1000,
		MaxLineDistance:  5,
		MaxPlaneDistance: 5,
	}
	loose := func(p PhaseParams) PhaseParams {
		p.Primitive = relaxed
		p.LineNeighbours.K, p.LineNeighbours.KMin, p.LineNeighbours.MaxDistanceForICPMatching = 10, 3, 20
		p.PlaneNeighbours.K, p.PlaneNeighbours.KMin, p.PlaneNeighbours.MaxDistanceForICPMatching = 10, 3, 20
		return p
	}
	cfg.EgoMotionParams = loose(cfg.EgoMotionParams)
	cfg.LocalizationParams = loose(cfg.LocalizationParams)
	cfg.MinNbrMatchedKeypoints = 3

	return cfg
}

func TestNewRejectsZeroGridSize(t *testing.T) {
	cfg := testConfig()
	cfg.VoxelGridEdges.GridSize = 0
	_, err := New(cfg, nil)
	test.That(t, err, test.ShouldEqual, ErrConfigContradiction)
}

func TestFirstFrameDefinesIdentity(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	result, err := engine.AddFrame(Frame{
		Sweep:       wallSweep(5, 30),
		Calibration: testCalibration(5),
		Timestamp:   1,
		SequenceID:  0,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.WorldPose.Point().Norm(), test.ShouldAlmostEqual, 0.0)
	test.That(t, engine.State(), test.ShouldEqual, Initialized)
	test.That(t, engine.FramesProcessed(), test.ShouldEqual, int64(1))
}

func TestCheckFrameRejectsEmptyFrame(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = engine.AddFrame(Frame{Sweep: pointcloud.NewCloud("lidar"), Calibration: testCalibration(5), Timestamp: 1})
	test.That(t, err, test.ShouldNotBeNil)
	kind, ok := KindOf(err)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, kind, test.ShouldEqual, EmptyFrame)
	test.That(t, engine.Counters()[EmptyFrame], test.ShouldEqual, 1)
}

func TestCheckFrameRejectsMissingCalibration(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = engine.AddFrame(Frame{Sweep: wallSweep(5, 30), Calibration: nil, Timestamp: 1})
	kind, ok := KindOf(err)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, kind, test.ShouldEqual, MissingCalibration)
}

func TestTimestampRegressionRejectedWithoutDisturbingState(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = engine.AddFrame(Frame{Sweep: wallSweep(5, 30), Calibration: testCalibration(5), Timestamp: 2, SequenceID: 0})
	test.That(t, err, test.ShouldBeNil)

	_, err = engine.AddFrame(Frame{Sweep: wallSweep(5, 30), Calibration: testCalibration(5), Timestamp: 2, SequenceID: 1})
	kind, ok := KindOf(err)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, kind, test.ShouldEqual, TimestampRegression)
	test.That(t, engine.State(), test.ShouldEqual, Initialized)

	result, err := engine.AddFrame(Frame{Sweep: wallSweep(5, 30), Calibration: testCalibration(5), Timestamp: 3, SequenceID: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.WorldPose, test.ShouldNotBeNil)
}

func TestStationaryWallKeepsPoseNearIdentity(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	sweep := wallSweep(5, 30)
	_, err = engine.AddFrame(Frame{Sweep: sweep, Calibration: testCalibration(5), Timestamp: 1, SequenceID: 0})
	test.That(t, err, test.ShouldBeNil)

	result, err := engine.AddFrame(Frame{Sweep: sweep, Calibration: testCalibration(5), Timestamp: 2, SequenceID: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.State(), test.ShouldEqual, Steady)
	test.That(t, result.WorldPose.Point().Norm() < 0.5, test.ShouldBeTrue)
}

func TestDegenerateSceneKeepsPreviousPose(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = engine.AddFrame(Frame{Sweep: wallSweep(5, 30), Calibration: testCalibration(5), Timestamp: 1, SequenceID: 0})
	test.That(t, err, test.ShouldBeNil)

	empty := pointcloud.NewCloud("lidar")
	for line := 0; line < 5; line++ {
		for i := 0; i < 15; i++ {
			empty.Append(pointcloud.Point{X: float64((i * 37) % 11), Y: float64((i * line * 13) % 7), Z: float64(i%3), LaserID: uint8(line), Time: float64(i) * 0.0005})
		}
	}

	result, err := engine.AddFrame(Frame{Sweep: empty, Calibration: testCalibration(5), Timestamp: 2, SequenceID: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Degenerate, test.ShouldBeTrue)
	test.That(t, result.WorldPose.Point().Norm(), test.ShouldAlmostEqual, 0.0)
	test.That(t, engine.Counters()[DegenerateGeometry], test.ShouldEqual, 1)
}

func TestLocalizationProducesMatchAttempts(t *testing.T) {
	engine, err := New(testConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	sweep := wallSweep(5, 30)
	_, err = engine.AddFrame(Frame{Sweep: sweep, Calibration: testCalibration(5), Timestamp: 1, SequenceID: 0})
	test.That(t, err, test.ShouldBeNil)

	result, err := engine.AddFrame(Frame{Sweep: sweep, Calibration: testCalibration(5), Timestamp: 2, SequenceID: 1})
	test.That(t, err, test.ShouldBeNil)

	attempted := result.LocalizationHistogram.Total()
	test.That(t, attempted > 0, test.ShouldBeTrue)
}
