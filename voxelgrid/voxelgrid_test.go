package voxelgrid

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/jpouderoux/LidarSlam/pointcloud"
)

func defaultParams() Params {
	return Params{GridSize: 10, LeafSize: 1.0, MaxPointsPerCell: 4, RollThreshold: 0.5}
}

func identity(v r3.Vector) r3.Vector { return v }

func TestAddAndQueryRoundTrip(t *testing.T) {
	grid := New(defaultParams())
	cloud := pointcloud.NewCloud("base")
	cloud.Append(pointcloud.Point{X: 0.1, Y: 0.1, Z: 0.1})
	cloud.Append(pointcloud.Point{X: 3, Y: 0, Z: 0})

	grid.AddPoints(cloud, identity)
	test.That(t, grid.Size(), test.ShouldEqual, 2)

	result, tree := grid.QueryCloud(r3.Vector{}, 1)
	test.That(t, result.Size(), test.ShouldEqual, 1)
	test.That(t, tree.Len(), test.ShouldEqual, 1)
}

func TestVoxelFilterDedupesCloseNeighbours(t *testing.T) {
	grid := New(defaultParams())
	cloud := pointcloud.NewCloud("base")
	cloud.Append(pointcloud.Point{X: 0, Y: 0, Z: 0})
	cloud.Append(pointcloud.Point{X: 0.01, Y: 0, Z: 0})

	grid.AddPoints(cloud, identity)
	test.That(t, grid.Size(), test.ShouldEqual, 1)
}

func TestMaxPointsPerCellEvictsOldest(t *testing.T) {
	params := defaultParams()
	params.MaxPointsPerCell = 2
	params.LeafSize = 10 // force everything into one cell
	grid := New(params)

	// All three points fall in cell [0,10)^3 and are pairwise about 12.7 apart, so the voxel
	// filter keeps each one and the third insert evicts the first.
	cloud := pointcloud.NewCloud("base")
	cloud.Append(pointcloud.Point{X: 0, Y: 0, Z: 0})
	cloud.Append(pointcloud.Point{X: 9, Y: 9, Z: 0})
	cloud.Append(pointcloud.Point{X: 9, Y: 0, Z: 9})

	grid.AddPoints(cloud, identity)
	test.That(t, grid.Size(), test.ShouldEqual, 2)
	for _, p := range grid.AllPoints("world").Points {
		test.That(t, p.Position(), test.ShouldNotResemble, r3.Vector{})
	}
}

func TestRollTranslatesExtentAndDropsOutOfRangeCells(t *testing.T) {
	grid := New(defaultParams())
	cloud := pointcloud.NewCloud("base")
	cloud.Append(pointcloud.Point{X: 0, Y: 0, Z: 0})
	grid.AddPoints(cloud, identity)
	test.That(t, grid.Size(), test.ShouldEqual, 1)

	rolled := grid.Roll(r3.Vector{X: 100, Y: 0, Z: 0})
	test.That(t, rolled, test.ShouldBeTrue)
	test.That(t, grid.Size(), test.ShouldEqual, 0)

	cloud2 := pointcloud.NewCloud("base")
	cloud2.Append(pointcloud.Point{X: 100, Y: 0, Z: 0})
	grid.AddPoints(cloud2, identity)
	test.That(t, grid.Size(), test.ShouldEqual, 1)
}

func TestRollBelowThresholdIsNoop(t *testing.T) {
	grid := New(defaultParams())
	rolled := grid.Roll(r3.Vector{X: 0.1, Y: 0, Z: 0})
	test.That(t, rolled, test.ShouldBeFalse)
}
