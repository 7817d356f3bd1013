// Package keypoints implements per-sweep feature extraction: classifying points of a structured
// multi-beam scan into edge, planar, and (optionally) blob keypoints from per-scan-line
// curvature.
package keypoints

import (
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// Params configures keypoint extraction.
type Params struct {
	Window                 int     // W: half-width of the curvature/discontinuity neighbourhood
	MinPointsPerLine       int
	NumSectors             int     // S: angular sectors a scan line is divided into
	MaxEdgesPerSector      int     // N_edge_max
	MaxPlanarsPerSector    int     // N_planar_max
	EdgeThreshold          float64 // T_edge
	PlanarThreshold        float64 // T_planar
	DepthGapThreshold      float64 // minimum range jump to neighbour treated as a discontinuity
	ParallelBeamCosine     float64 // points whose local surface direction (previous to next neighbour) is this close to parallel with the beam are invalid
	EnableBlobs            bool
	BlobEigenRatioMax      float64 // lambda1/lambda3 below this is "isotropic enough" for a blob
	NbThreads              int
}

// Result holds the three disjoint keypoint sets produced by one call to Extract, already
// expressed in BASE coordinates.
type Result struct {
	Edges   *pointcloud.Cloud
	Planars *pointcloud.Cloud
	Blobs   *pointcloud.Cloud
}

// Extract classifies the points of sweep into edge/planar/blob keypoints. laserIDMapping orders
// physical laser indices by descending vertical correction, as derived from the calibration table.
// baseToLidar is the static offset applied to transform extracted keypoints from LIDAR to BASE.
func Extract(sweep *pointcloud.Cloud, laserIDMapping []uint8, baseToLidar spatialmath.Pose, params Params) Result {
	lines := sweep.GroupByLaserID(laserIDMapping)

	lineIndices := make([]int, 0, len(lines))
	for line := range lines {
		if len(lines[line]) >= params.MinPointsPerLine {
			lineIndices = append(lineIndices, line)
		}
	}
	sort.Ints(lineIndices)

	nbThreads := params.NbThreads
	if nbThreads < 1 {
		nbThreads = 1
	}

	perLine := make([][]classifiedPoint, len(lineIndices))
	var wg sync.WaitGroup
	sem := make(chan struct{}, nbThreads)
	for li, line := range lineIndices {
		wg.Add(1)
		sem <- struct{}{}
		go func(li, line int) {
			defer wg.Done()
			defer func() { <-sem }()
			perLine[li] = classifyLine(sweep, lines[line], params)
		}(li, line)
	}
	wg.Wait()

	edges := pointcloud.NewCloud("base")
	planars := pointcloud.NewCloud("base")
	blobs := pointcloud.NewCloud("base")

	for _, classified := range perLine {
		for _, cp := range classified {
			p := sweep.Points[cp.index]
			transformed := p.WithPosition(spatialmath.TransformPoint(baseToLidar, p.Position()))
			switch cp.kind {
			case kindEdge:
				edges.Append(transformed)
			case kindPlanar:
				planars.Append(transformed)
			case kindBlob:
				blobs.Append(transformed)
			}
		}
	}

	return Result{Edges: edges, Planars: planars, Blobs: blobs}
}

type keypointKind int

const (
	kindEdge keypointKind = iota
	kindPlanar
	kindBlob
)

type classifiedPoint struct {
	index int
	kind  keypointKind
}

// classifyLine runs curvature scoring, sector-wise edge/planar selection, and optional blob
// detection over a single scan line. indices are positions into sweep.Points, already ordered
// by capture time within the line.
func classifyLine(sweep *pointcloud.Cloud, indices []int, params Params) []classifiedPoint {
	n := len(indices)
	w := params.Window
	if w < 1 {
		w = 1
	}

	curvature := make([]float64, n)
	valid := make([]bool, n)
	for i := range valid {
		valid[i] = i >= w && i < n-w
	}

	markInvalidNeighbours := func(i int) {
		for d := -w; d <= w; d++ {
			j := i + d
			if j >= 0 && j < n {
				valid[j] = false
			}
		}
	}

	for i := w; i < n-w; i++ {
		center := sweep.Points[indices[i]].Position()

		if isParallelToBeam(sweep, indices, i, params) {
			markInvalidNeighbours(i)
			continue
		}
		if hasDepthDiscontinuity(sweep, indices, i, params) {
			markInvalidNeighbours(i)
			continue
		}

		var sum r3.Vector
		for d := -w; d <= w; d++ {
			if d == 0 {
				continue
			}
			neighbour := sweep.Points[indices[i+d]].Position()
			sum = sum.Add(neighbour.Sub(center))
		}
		mean := sum.Mul(1.0 / float64(2*w))
		curvature[i] = mean.Dot(mean)
	}

	sectorOf := func(i int) int {
		if params.NumSectors <= 0 {
			return 0
		}
		return i * params.NumSectors / n
	}

	var classified []classifiedPoint
	for s := 0; s < maxInt(params.NumSectors, 1); s++ {
		var edgeCandidates, planarCandidates []int
		for i := w; i < n-w; i++ {
			if !valid[i] || sectorOf(i) != s {
				continue
			}
			if curvature[i] > params.EdgeThreshold {
				edgeCandidates = append(edgeCandidates, i)
			} else if curvature[i] < params.PlanarThreshold {
				planarCandidates = append(planarCandidates, i)
			}
		}

		sort.Slice(edgeCandidates, func(a, b int) bool { return curvature[edgeCandidates[a]] > curvature[edgeCandidates[b]] })
		sort.Slice(planarCandidates, func(a, b int) bool { return curvature[planarCandidates[a]] < curvature[planarCandidates[b]] })

		taken := make(map[int]bool)
		for _, i := range edgeCandidates {
			if len(taken) >= params.MaxEdgesPerSector || !valid[i] {
				if len(taken) >= params.MaxEdgesPerSector {
					break
				}
				continue
			}
			classified = append(classified, classifiedPoint{index: indices[i], kind: kindEdge})
			taken[i] = true
			markInvalidNeighbours(i)
		}

		taken = make(map[int]bool)
		for _, i := range planarCandidates {
			if len(taken) >= params.MaxPlanarsPerSector {
				break
			}
			if !valid[i] {
				continue
			}
			classified = append(classified, classifiedPoint{index: indices[i], kind: kindPlanar})
			taken[i] = true
			markInvalidNeighbours(i)
		}
	}

	if params.EnableBlobs {
		for i := w; i < n-w; i++ {
			if !valid[i] {
				continue
			}
			if isIsotropic(sweep, indices, i, w, params.BlobEigenRatioMax) {
				classified = append(classified, classifiedPoint{index: indices[i], kind: kindBlob})
			}
		}
	}

	return classified
}

func isParallelToBeam(sweep *pointcloud.Cloud, indices []int, i int, params Params) bool {
	center := sweep.Points[indices[i]].Position()
	prev := sweep.Points[indices[i-1]].Position()
	next := sweep.Points[indices[i+1]].Position()

	surface := next.Sub(prev)
	if surface.Norm() == 0 {
		return false
	}
	beam := center.Normalize()
	cosAngle := math.Abs(surface.Normalize().Dot(beam))
	return cosAngle > params.ParallelBeamCosine
}

func hasDepthDiscontinuity(sweep *pointcloud.Cloud, indices []int, i int, params Params) bool {
	center := sweep.Points[indices[i]].Position().Norm()
	prev := sweep.Points[indices[i-1]].Position().Norm()
	next := sweep.Points[indices[i+1]].Position().Norm()
	return math.Abs(center-prev) > params.DepthGapThreshold || math.Abs(center-next) > params.DepthGapThreshold
}

// isIsotropic reports whether the PCA eigenvalues of the window around i are all comparable,
// indicating a 3-D blob rather than a line or a surface.
func isIsotropic(sweep *pointcloud.Cloud, indices []int, i, w int, ratioMax float64) bool {
	neighbours := make([]r3.Vector, 0, 2*w+1)
	for d := -w; d <= w; d++ {
		neighbours = append(neighbours, sweep.Points[indices[i+d]].Position())
	}
	lambda, ok := eigenvaluesDescending(neighbours)
	if !ok || lambda[2] <= 0 {
		return false
	}
	return lambda[0]/lambda[2] <= ratioMax
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
