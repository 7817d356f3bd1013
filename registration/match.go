package registration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/jpouderoux/LidarSlam/kdtree"
)

// NeighbourParams bounds how a single keypoint's neighbourhood is gathered and accepted before
// primitive fitting is attempted.
type NeighbourParams struct {
	K                         int // neighbours requested from the kd-tree
	KMin                      int // minimum neighbours required to attempt a fit
	MaxDistanceForICPMatching float64
}

// Matcher runs the "Match" and "Fit local primitive" steps of one ICP outer iteration for a
// single keypoint kind against a kd-tree of candidate points.
type Matcher struct {
	Tree      *kdtree.Tree
	Neighbour NeighbourParams
	Primitive PrimitiveParams
}

// Match queries the tree for x's neighbourhood and, on success, fits the primitive appropriate to
// kind. It returns the fitted (A, P) pair and Success, or a zero pair and the MatchingResult
// explaining why the keypoint was rejected.
func (m *Matcher) Match(x r3.Vector, kind Kind) (a *mat.SymDense, p r3.Vector, tag MatchingResult) {
	if m.Tree == nil || m.Tree.Len() == 0 {
		return nil, r3.Vector{}, NotEnoughNeighbours
	}

	neighbors := m.Tree.KNearest(x, m.Neighbour.K)
	if len(neighbors) < m.Neighbour.KMin {
		return nil, r3.Vector{}, NotEnoughNeighbours
	}

	maxDist := m.Neighbour.MaxDistanceForICPMatching
	farthest := neighbors[len(neighbors)-1].SquaredDist
	if farthest > maxDist*maxDist {
		return nil, r3.Vector{}, NeighboursTooFar
	}

	points := make([]r3.Vector, len(neighbors))
	for i, n := range neighbors {
		points[i] = n.Point
	}

	switch kind {
	case Edge:
		return FitLine(points, m.Primitive)
	case Planar:
		return FitPlane(points, m.Primitive)
	case Blob:
		return FitBlob(points)
	default:
		return nil, r3.Vector{}, Unknown
	}
}

// MatchAll runs Match over every point in keypoints against m, appending an accepted Residual
// (weighted 1, to be reweighted by the robust loss during the LM solve) for each success, and
// tallying every outcome into hist.
func (m *Matcher) MatchAll(keypoints []r3.Vector, times []float64, kind Kind, hist Histogram) []Residual {
	residuals := make([]Residual, 0, len(keypoints))
	for i, x := range keypoints {
		a, p, tag := m.Match(x, kind)
		hist[tag]++
		if tag != Success {
			continue
		}
		t := 0.0
		if times != nil {
			t = times[i]
		}
		residuals = append(residuals, Residual{Kind: kind, A: a, P: p, X: x, Weight: 1, Time: t})
	}
	return residuals
}
