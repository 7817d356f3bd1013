// Package voxelgrid implements a bounded-memory rolling voxel grid: a G x G x G array of voxel
// cells, each holding a small downsampled point cloud, that translates by whole voxels to keep
// following the tracked pose without ever growing unbounded.
package voxelgrid

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/jpouderoux/LidarSlam/kdtree"
	"github.com/jpouderoux/LidarSlam/pointcloud"
)

// CellKey indexes a cell by its local (post-origin-shift) integer coordinates, each in [0, G).
type CellKey struct {
	I, J, K int64
}

type cell struct {
	points      []pointcloud.Point
	insertedAt  []uint64
}

// Params configures a RollingGrid's geometry.
type Params struct {
	GridSize     int64   // G: number of cells per axis
	LeafSize     float64 // l: metres per cell, also the voxel-filter downsample resolution
	MaxPointsPerCell int // C_max
	RollThreshold    float64 // fraction of (G*l/2) the tracked pose may drift before a roll
}

// RollingGrid is a bounded-extent, world-anchored voxel cache of one keypoint kind (edges,
// planars, or blobs). It is safe for concurrent queries but AddPoints/Roll must not overlap with
// queries or each other: it is mutated only during map update and queried only during
// localization.
type RollingGrid struct {
	mu sync.RWMutex

	params Params
	origin [3]int64 // world-voxel coordinates of local cell (0,0,0)
	cells  map[CellKey]*cell
	clock  uint64 // monotonically increasing insertion counter, used for LRU eviction

	queryTree   *kdtree.Tree
	queryPoints []pointcloud.Point
}

// New returns an empty RollingGrid centred at the origin.
func New(params Params) *RollingGrid {
	half := params.GridSize / 2
	return &RollingGrid{
		params: params,
		origin: [3]int64{-half, -half, -half},
		cells:  make(map[CellKey]*cell),
	}
}

func (g *RollingGrid) worldToLocal(p r3.Vector) (CellKey, bool) {
	vi := int64(math.Floor(p.X / g.params.LeafSize))
	vj := int64(math.Floor(p.Y / g.params.LeafSize))
	vk := int64(math.Floor(p.Z / g.params.LeafSize))

	li := vi - g.origin[0]
	lj := vj - g.origin[1]
	lk := vk - g.origin[2]
	if li < 0 || lj < 0 || lk < 0 || li >= g.params.GridSize || lj >= g.params.GridSize || lk >= g.params.GridSize {
		return CellKey{}, false
	}
	return CellKey{I: li, J: lj, K: lk}, true
}

// AddPoints inserts each point of cloud, first mapping it through toWorld (the current estimated
// pose composed onto the point's BASE-frame coordinates), downsampled per cell. Points landing
// outside the grid's current extent are silently dropped; callers should roll before a large
// pose jump if that is undesirable.
func (g *RollingGrid) AddPoints(cloud *pointcloud.Cloud, toWorld func(r3.Vector) r3.Vector) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range cloud.Points {
		worldPos := toWorld(p.Position())
		key, ok := g.worldToLocal(worldPos)
		if !ok {
			continue
		}
		c, ok := g.cells[key]
		if !ok {
			c = &cell{}
			g.cells[key] = c
		}
		g.insertIntoCell(c, p.WithPosition(worldPos))
	}
	g.invalidateQueryCache()
}

// insertIntoCell enforces the voxel filter (at most one representative point within leafSize of
// an existing point in the cell) and the MaxPointsPerCell LRU cap.
func (g *RollingGrid) insertIntoCell(c *cell, p pointcloud.Point) {
	pos := p.Position()
	for _, existing := range c.points {
		if pos.Sub(existing.Position()).Norm() < g.params.LeafSize {
			return
		}
	}

	g.clock++
	if g.params.MaxPointsPerCell > 0 && len(c.points) >= g.params.MaxPointsPerCell {
		oldestIdx := 0
		for i, t := range c.insertedAt {
			if t < c.insertedAt[oldestIdx] {
				oldestIdx = i
			}
		}
		c.points[oldestIdx] = p
		c.insertedAt[oldestIdx] = g.clock
		return
	}

	c.points = append(c.points, p)
	c.insertedAt = append(c.insertedAt, g.clock)
}

// QueryCloud concatenates all the points of every cell covered by the axis-aligned envelope of
// the sphere (centre, radius), padded by one cell, builds a kd-tree over the result, and returns
// both. Points are not filtered individually by their distance to centre.
func (g *RollingGrid) QueryCloud(centre r3.Vector, radius float64) (*pointcloud.Cloud, *kdtree.Tree) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := pointcloud.NewCloud("world")
	cellRadius := radius/g.params.LeafSize + 1
	cvi := int64(math.Floor(centre.X / g.params.LeafSize))
	cvj := int64(math.Floor(centre.Y / g.params.LeafSize))
	cvk := int64(math.Floor(centre.Z / g.params.LeafSize))

	lo := [3]int64{cvi - int64(cellRadius), cvj - int64(cellRadius), cvk - int64(cellRadius)}
	hi := [3]int64{cvi + int64(cellRadius), cvj + int64(cellRadius), cvk + int64(cellRadius)}

	for li := max64(lo[0]-g.origin[0], 0); li <= min64(hi[0]-g.origin[0], g.params.GridSize-1); li++ {
		for lj := max64(lo[1]-g.origin[1], 0); lj <= min64(hi[1]-g.origin[1], g.params.GridSize-1); lj++ {
			for lk := max64(lo[2]-g.origin[2], 0); lk <= min64(hi[2]-g.origin[2], g.params.GridSize-1); lk++ {
				c, ok := g.cells[CellKey{I: li, J: lj, K: lk}]
				if !ok {
					continue
				}
				out.Points = append(out.Points, c.points...)
			}
		}
	}

	points := make([]r3.Vector, out.Size())
	for i, p := range out.Points {
		points[i] = p.Position()
	}
	return out, kdtree.New(points)
}

func (g *RollingGrid) invalidateQueryCache() {
	g.queryTree = nil
	g.queryPoints = nil
}

// Roll translates the grid so that newCentre lands near the middle of the extent, if it has
// drifted past RollThreshold * (G*l/2) from the current centre. Cells that fall outside the new
// extent are dropped; cells newly inside start empty. It reports whether a roll occurred.
func (g *RollingGrid) Roll(newCentre r3.Vector) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	halfExtent := float64(g.params.GridSize) * g.params.LeafSize / 2
	currentCentre := r3.Vector{
		X: (float64(g.origin[0]) + float64(g.params.GridSize)/2) * g.params.LeafSize,
		Y: (float64(g.origin[1]) + float64(g.params.GridSize)/2) * g.params.LeafSize,
		Z: (float64(g.origin[2]) + float64(g.params.GridSize)/2) * g.params.LeafSize,
	}
	if newCentre.Sub(currentCentre).Norm() <= g.params.RollThreshold*halfExtent {
		return false
	}

	newCentreVoxel := [3]int64{
		int64(math.Floor(newCentre.X / g.params.LeafSize)),
		int64(math.Floor(newCentre.Y / g.params.LeafSize)),
		int64(math.Floor(newCentre.Z / g.params.LeafSize)),
	}
	half := g.params.GridSize / 2
	newOrigin := [3]int64{newCentreVoxel[0] - half, newCentreVoxel[1] - half, newCentreVoxel[2] - half}

	newCells := make(map[CellKey]*cell, len(g.cells))
	for key, c := range g.cells {
		worldI := key.I + g.origin[0]
		worldJ := key.J + g.origin[1]
		worldK := key.K + g.origin[2]

		li := worldI - newOrigin[0]
		lj := worldJ - newOrigin[1]
		lk := worldK - newOrigin[2]
		if li < 0 || lj < 0 || lk < 0 || li >= g.params.GridSize || lj >= g.params.GridSize || lk >= g.params.GridSize {
			continue
		}
		newCells[CellKey{I: li, J: lj, K: lk}] = c
	}

	g.origin = newOrigin
	g.cells = newCells
	g.invalidateQueryCache()
	return true
}

// Params returns the geometry g was constructed with, used to rebuild an equivalent empty grid
// (e.g. when LoadMapsFromPCD resets a map before repopulating it).
func (g *RollingGrid) Params() Params {
	return g.params
}

// AllPoints concatenates every point stored in every cell, in unspecified order, used to
// snapshot the full grid for persistence rather than a centre/radius query.
func (g *RollingGrid) AllPoints(frameID string) *pointcloud.Cloud {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := pointcloud.NewCloud(frameID)
	for _, c := range g.cells {
		out.Points = append(out.Points, c.points...)
	}
	return out
}

// Size returns the total number of points stored across every cell, bounded by G^3 * C_max.
func (g *RollingGrid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0
	for _, c := range g.cells {
		total += len(c.points)
	}
	return total
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
