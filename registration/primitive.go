package registration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// PrimitiveParams configures how strict the PCA eigenvalue-ratio tests are before a
// neighbourhood is accepted as a line or a plane, and how loose a fit may be before it is
// rejected as MseTooLarge.
type PrimitiveParams struct {
	LineEigenRatio    float64 // f_line:  lambda1 >= f_line * lambda2
	PlaneEigenRatio1  float64 // f_plane1: lambda2 >= f_plane1 * lambda3
	PlaneEigenRatio2  float64 // f_plane2: lambda1 <= f_plane2 * lambda2
	MaxLineDistance   float64
	MaxPlaneDistance  float64
}

// pca computes the centroid and the eigenvalues/eigenvectors (descending) of the 3x3 covariance
// matrix of neighbours.
func pca(neighbours []r3.Vector) (centroid r3.Vector, eigenvalues [3]float64, eigenvectors [3]r3.Vector, ok bool) {
	n := len(neighbours)
	if n == 0 {
		return r3.Vector{}, eigenvalues, eigenvectors, false
	}

	for _, p := range neighbours {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1.0 / float64(n))

	var cov mat.SymDense
	cov.Reset()
	data := make([]float64, 9)
	for _, p := range neighbours {
		d := p.Sub(centroid)
		data[0] += d.X * d.X
		data[1] += d.X * d.Y
		data[2] += d.X * d.Z
		data[4] += d.Y * d.Y
		data[5] += d.Y * d.Z
		data[8] += d.Z * d.Z
	}
	inv := 1.0 / float64(n)
	cov = *mat.NewSymDense(3, []float64{
		data[0] * inv, data[1] * inv, data[2] * inv,
		0, data[4] * inv, data[5] * inv,
		0, 0, data[8] * inv,
	})

	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return centroid, eigenvalues, eigenvectors, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// gonum returns eigenvalues ascending; expose them descending (lambda1 >= lambda2 >= lambda3)
	// to match the convention used throughout this package.
	for i := 0; i < 3; i++ {
		eigenvalues[i] = values[2-i]
		eigenvectors[i] = r3.Vector{X: vectors.At(0, 2-i), Y: vectors.At(1, 2-i), Z: vectors.At(2, 2-i)}
	}
	return centroid, eigenvalues, eigenvectors, true
}

// outerProductComplement builds A = (I - u*u^T)^T (I - u*u^T) for a unit vector u, the weighting
// matrix of a point-to-line residual.
func outerProductComplement(u r3.Vector) *mat.SymDense {
	a := mat.NewSymDense(3, nil)
	uu := [3]float64{u.X, u.Y, u.Z}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			iden := 0.0
			if i == j {
				iden = 1
			}
			m := iden - uu[i]*uu[j]
			a.SetSym(i, j, m)
		}
	}
	// (I - uu^T) is itself symmetric and idempotent, so (I-uu^T)^T(I-uu^T) == (I-uu^T).
	return a
}

// outerProduct builds A = n*n^T for a unit vector n, the weighting matrix of a point-to-plane
// residual.
func outerProduct(n r3.Vector) *mat.SymDense {
	a := mat.NewSymDense(3, nil)
	nn := [3]float64{n.X, n.Y, n.Z}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			a.SetSym(i, j, nn[i]*nn[j])
		}
	}
	return a
}

// meanSquaredDistance returns the mean over neighbours of (A-weighted) squared distance of each
// neighbour to the primitive anchored at centroid.
func meanSquaredDistance(neighbours []r3.Vector, centroid r3.Vector, a *mat.SymDense) float64 {
	var sum float64
	var av mat.VecDense
	for _, p := range neighbours {
		d := p.Sub(centroid)
		dv := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
		av.MulVec(a, dv)
		sum += mat.Dot(dv, &av)
	}
	return sum / float64(len(neighbours))
}

// FitLine attempts to fit a line through neighbours via PCA. It reports
// BadPcaStructure when the dominant eigenvalue does not sufficiently outweigh the second, and
// MseTooLarge when the fit is too loose.
func FitLine(neighbours []r3.Vector, params PrimitiveParams) (a *mat.SymDense, p r3.Vector, tag MatchingResult) {
	centroid, lambda, vec, ok := pca(neighbours)
	if !ok {
		return nil, r3.Vector{}, InvalidNumerical
	}
	if lambda[0] <= 0 || lambda[0] < params.LineEigenRatio*lambda[1] {
		return nil, r3.Vector{}, BadPcaStructure
	}

	u := vec[0]
	a = outerProductComplement(u)
	if meanSquaredDistance(neighbours, centroid, a) > params.MaxLineDistance*params.MaxLineDistance {
		return nil, r3.Vector{}, MseTooLarge
	}
	return a, centroid, Success
}

// FitPlane attempts to fit a plane through neighbours via PCA.
func FitPlane(neighbours []r3.Vector, params PrimitiveParams) (a *mat.SymDense, p r3.Vector, tag MatchingResult) {
	centroid, lambda, vec, ok := pca(neighbours)
	if !ok {
		return nil, r3.Vector{}, InvalidNumerical
	}
	if lambda[1] <= 0 || lambda[1] < params.PlaneEigenRatio1*lambda[2] || lambda[0] > params.PlaneEigenRatio2*lambda[1] {
		return nil, r3.Vector{}, BadPcaStructure
	}

	n := vec[2]
	a = outerProduct(n)
	if meanSquaredDistance(neighbours, centroid, a) > params.MaxPlaneDistance*params.MaxPlaneDistance {
		return nil, r3.Vector{}, MseTooLarge
	}
	return a, centroid, Success
}

// FitBlob takes A as the inverse of the neighbourhood's covariance matrix, used for isotropic
// keypoint matching where no dominant line or plane structure is expected.
func FitBlob(neighbours []r3.Vector) (a *mat.SymDense, p r3.Vector, tag MatchingResult) {
	centroid, lambda, vec, ok := pca(neighbours)
	if !ok || lambda[2] <= 0 {
		return nil, r3.Vector{}, InvalidNumerical
	}

	inv := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		u := vec[i]
		coeff := 1.0 / lambda[i]
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				uu := [3]float64{u.X, u.Y, u.Z}
				inv.SetSym(r, c, inv.At(r, c)+coeff*uu[r]*uu[c])
			}
		}
	}
	if !isFiniteSym(inv) {
		return nil, r3.Vector{}, InvalidNumerical
	}
	return inv, centroid, Success
}

func isFiniteSym(m *mat.SymDense) bool {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
