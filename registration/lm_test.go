package registration

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// constantPoseAt ignores params[6:] / time and builds a pose straight from the 6-vector
// (omega, translation), used to test the solver in isolation from the undistortion modes.
func constantPoseAt(params []float64, _ float64) spatialmath.Pose {
	aa := spatialmath.R3ToR4(r3.Vector{X: params[0], Y: params[1], Z: params[2]})
	rot := aa.RotationMatrix()
	return spatialmath.NewPose(rot, r3.Vector{X: params[3], Y: params[4], Z: params[5]})
}

func identityMatrix() *mat.SymDense {
	return mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func TestSolveRecoversPureTranslation(t *testing.T) {
	translation := r3.Vector{X: 0.3, Y: -0.1, Z: 0.05}
	residuals := []Residual{
		{A: identityMatrix(), P: r3.Vector{X: 1, Y: 0, Z: 0}.Add(translation), X: r3.Vector{X: 1, Y: 0, Z: 0}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 0, Y: 1, Z: 0}.Add(translation), X: r3.Vector{X: 0, Y: 1, Z: 0}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 0, Y: 0, Z: 1}.Add(translation), X: r3.Vector{X: 0, Y: 0, Z: 1}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 1, Y: 1, Z: 1}.Add(translation), X: r3.Vector{X: 1, Y: 1, Z: 1}, Weight: 1},
	}

	result := Solve(residuals, constantPoseAt, make([]float64, 6), 1.0, DefaultSolverParams())
	test.That(t, result.Converged, test.ShouldBeTrue)
	test.That(t, result.Params[3], test.ShouldAlmostEqual, translation.X, 0.01)
	test.That(t, result.Params[4], test.ShouldAlmostEqual, translation.Y, 0.01)
	test.That(t, result.Params[5], test.ShouldAlmostEqual, translation.Z, 0.01)
}

func TestCovarianceIsNonNilAfterConvergedSolve(t *testing.T) {
	residuals := []Residual{
		{A: identityMatrix(), P: r3.Vector{X: 1.1, Y: 0, Z: 0}, X: r3.Vector{X: 1, Y: 0, Z: 0}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 0, Y: 1.1, Z: 0}, X: r3.Vector{X: 0, Y: 1, Z: 0}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 0, Y: 0, Z: 1.1}, X: r3.Vector{X: 0, Y: 0, Z: 1}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 1.1, Y: 1.1, Z: 1.1}, X: r3.Vector{X: 1, Y: 1, Z: 1}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: -1, Y: 0.1, Z: 0}, X: r3.Vector{X: -1, Y: 0, Z: 0}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 2.05, Y: -1.1, Z: 0.6}, X: r3.Vector{X: 2, Y: -1, Z: 0.5}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: -0.9, Y: 2.0, Z: 1.05}, X: r3.Vector{X: -1, Y: 2, Z: 1}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: 0.45, Y: -1.9, Z: -1.1}, X: r3.Vector{X: 0.5, Y: -2, Z: -1}, Weight: 1},
		{A: identityMatrix(), P: r3.Vector{X: -2.1, Y: -0.95, Z: 2.0}, X: r3.Vector{X: -2, Y: -1, Z: 2}, Weight: 1},
	}
	result := Solve(residuals, constantPoseAt, make([]float64, 6), 1.0, DefaultSolverParams())
	test.That(t, result.Converged, test.ShouldBeTrue)

	cov := Covariance(result)
	test.That(t, cov, test.ShouldNotBeNil)
}
