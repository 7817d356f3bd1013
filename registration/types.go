// Package registration implements the ICP + Levenberg-Marquardt registration engine: local
// line/plane/blob primitive fitting over k-NN neighbourhoods, residual construction, and the
// nonlinear least-squares solve that turns a keypoint cloud plus a neighbour source into a pose
// update and its covariance.
package registration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// MatchingResult tags the outcome of attempting to match a single keypoint against its
// neighbourhood. Every attempted match produces exactly one tag.
type MatchingResult int

const (
	// Success means a residual was accepted.
	Success MatchingResult = iota
	// NotEnoughNeighbours means the neighbour source returned fewer than the configured minimum.
	NotEnoughNeighbours
	// NeighboursTooFar means the farthest accepted neighbour exceeded the matching distance bound.
	NeighboursTooFar
	// BadPcaStructure means the neighbourhood's eigenvalue ratios did not fit a line or plane model.
	BadPcaStructure
	// InvalidNumerical means a non-finite value appeared while fitting the primitive or residual.
	InvalidNumerical
	// MseTooLarge means the neighbourhood fit the primitive shape but too loosely.
	MseTooLarge
	// Unknown tags an outcome that matches none of the cases above (Match returns it for an
	// unrecognised keypoint kind).
	Unknown
)

// String names a MatchingResult the way it would appear in a debug histogram.
func (r MatchingResult) String() string {
	switch r {
	case Success:
		return "Success"
	case NotEnoughNeighbours:
		return "NotEnoughNeighbours"
	case NeighboursTooFar:
		return "NeighboursTooFar"
	case BadPcaStructure:
		return "BadPcaStructure"
	case InvalidNumerical:
		return "InvalidNumerical"
	case MseTooLarge:
		return "MseTooLarge"
	default:
		return "Unknown"
	}
}

// Histogram counts how many matches of a frame landed on each MatchingResult tag.
type Histogram map[MatchingResult]int

// Total sums every bucket, used to check the "matching histogram closure" invariant: it must
// equal the number of keypoints offered to Match.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Kind identifies which of the three keypoint classes a residual or primitive belongs to.
type Kind int

const (
	// Edge keypoints are matched against a locally fitted line.
	Edge Kind = iota
	// Planar keypoints are matched against a locally fitted plane.
	Planar
	// Blob keypoints are matched against the inverse covariance of an isotropic neighbourhood.
	Blob
)

// Residual is one accepted match: the quadratic cost w·(R(t)X + T(t) - P)^T A (R(t)X + T(t) - P),
// where A is a 3x3 symmetric PSD weighting matrix, P is the primitive's reference point, X is the
// keypoint in its source frame, w is a robust weight, and t is the keypoint's sweep-relative time
// used to look up the per-point interpolated pose during undistortion.
type Residual struct {
	Kind   Kind
	A      *mat.SymDense
	P      r3.Vector
	X      r3.Vector
	Weight float64
	Time   float64
}
