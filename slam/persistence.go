package slam

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/spatialmath"
	"github.com/jpouderoux/LidarSlam/voxelgrid"
)

// mapFileName builds the <prefix>_<kind>.pcd path used by both SaveMapsToPCD and LoadMapsFromPCD.
func mapFileName(prefix, kind string) string {
	return fmt.Sprintf("%s_%s.pcd", prefix, kind)
}

// SaveMapsToPCD snapshots the three rolling grids to <prefix>_edges.pcd, <prefix>_planars.pcd, and
// <prefix>_blobs.pcd, in the given format.
func (e *Engine) SaveMapsToPCD(prefix string, format pointcloud.PCDDataFormat) error {
	grids := []struct {
		kind string
		grid *voxelgrid.RollingGrid
	}{
		{"edges", e.edgesGrid},
		{"planars", e.planarsGrid},
		{"blobs", e.blobsGrid},
	}
	for _, g := range grids {
		cloud := g.grid.AllPoints("world")
		if err := writeCloudToPCD(cloud, mapFileName(prefix, g.kind), format); err != nil {
			return errors.Wrapf(err, "saving %s map", g.kind)
		}
	}
	return nil
}

// LoadMapsFromPCD reads <prefix>_edges.pcd, <prefix>_planars.pcd, and <prefix>_blobs.pcd and
// inserts their points into the rolling grids at identity pose. If resetMaps is true, the grids'
// existing contents are discarded first; otherwise the loaded points are merged in. A format error
// in any file rejects the whole load and leaves all three grids untouched.
func (e *Engine) LoadMapsFromPCD(prefix string, resetMaps bool) error {
	edges, err := readCloudFromPCD(mapFileName(prefix, "edges"))
	if err != nil {
		return newFrameError(MapLoadFormatError, err.Error())
	}
	planars, err := readCloudFromPCD(mapFileName(prefix, "planars"))
	if err != nil {
		return newFrameError(MapLoadFormatError, err.Error())
	}
	blobs, err := readCloudFromPCD(mapFileName(prefix, "blobs"))
	if err != nil {
		return newFrameError(MapLoadFormatError, err.Error())
	}

	if resetMaps {
		e.edgesGrid = voxelgrid.New(e.edgesGrid.Params())
		e.planarsGrid = voxelgrid.New(e.planarsGrid.Params())
		e.blobsGrid = voxelgrid.New(e.blobsGrid.Params())
	}

	identity := func(v r3.Vector) r3.Vector { return v }
	e.edgesGrid.AddPoints(edges, identity)
	e.planarsGrid.AddPoints(planars, identity)
	e.blobsGrid.AddPoints(blobs, identity)
	return nil
}

func writeCloudToPCD(cloud *pointcloud.Cloud, path string, format pointcloud.PCDDataFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pointcloud.WritePCD(cloud, f, format)
}

func readCloudFromPCD(path string) (*pointcloud.Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pointcloud.ReadPCD(f)
}

// RunPoseGraphOptimization replaces trajectory log entries' poses with optimized ones from an
// external pose-graph back-end, keyed by timestamp. It is a pure mutator, not invoked from the
// per-frame hot path.
func (e *Engine) RunPoseGraphOptimization(optimizedPoses map[float64]spatialmath.Pose) {
	entries := e.trajectory.Entries()
	for i, rec := range entries {
		if p, ok := optimizedPoses[rec.Timestamp]; ok {
			entries[i].Pose = p
		}
	}
	if len(entries) > 0 {
		e.worldPrev = entries[len(entries)-1].Pose
	}
}

// SetWorldTransformFromGuess overwrites the current world pose estimate with guess, used to seed
// WORLD from an external localization source (e.g. GPS). It is a pure mutator.
func (e *Engine) SetWorldTransformFromGuess(guess spatialmath.Pose) {
	e.worldPrev = guess
}
