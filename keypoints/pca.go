package keypoints

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// eigenvaluesDescending returns the eigenvalues of the 3x3 covariance matrix of points, largest
// first, used only for the optional blob isotropy test. The fuller PCA (eigenvectors plus
// primitive fitting) used by registration's line/plane classification lives in that package.
func eigenvaluesDescending(points []r3.Vector) (lambda [3]float64, ok bool) {
	n := len(points)
	if n == 0 {
		return lambda, false
	}

	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1.0 / float64(n))

	var sxx, sxy, sxz, syy, syz, szz float64
	for _, p := range points {
		d := p.Sub(centroid)
		sxx += d.X * d.X
		sxy += d.X * d.Y
		sxz += d.X * d.Z
		syy += d.Y * d.Y
		syz += d.Y * d.Z
		szz += d.Z * d.Z
	}
	inv := 1.0 / float64(n)
	cov := mat.NewSymDense(3, []float64{
		sxx * inv, sxy * inv, sxz * inv,
		0, syy * inv, syz * inv,
		0, 0, szz * inv,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		return lambda, false
	}
	values := eig.Values(nil)
	lambda[0], lambda[1], lambda[2] = values[2], values[1], values[0]
	return lambda, true
}
