package registration

import "gonum.org/v1/gonum/mat"

// Covariance computes the 6x6 pose covariance (J^T J)^-1 * sigma^2 from the final LM Jacobian
// and residual vector, where sigma^2 is the reduced chi-square (residual sum of squares over
// degrees of freedom). It returns nil if the normal equations are singular.
func Covariance(result Result) *mat.Dense {
	if result.Jacobian == nil || len(result.Residual) == 0 {
		return nil
	}
	n, dims := result.Jacobian.Dims()
	dof := n - dims
	if dof <= 0 {
		dof = 1
	}

	var sse float64
	for _, r := range result.Residual {
		sse += r * r
	}
	sigmaSq := sse / float64(dof)

	var jt mat.Dense
	jt.CloneFrom(result.Jacobian.T())
	var jtj mat.Dense
	jtj.Mul(&jt, result.Jacobian)

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return nil
	}
	inv.Scale(sigmaSq, &inv)
	return &inv
}

// Flatten36 lays out the covariance of one 6-DoF pose into the 36-entry row-major vector used in
// trajectory log records, in DoF order (x, y, z, rx, ry, rz). cov is indexed in the LM parameter
// order (omega, translation); for a 12-parameter (begin and end pose) solve, the end-pose block
// params[6:12] is used. A nil or smaller-than-6x6 cov yields all zeros.
func Flatten36(cov *mat.Dense) [36]float64 {
	var out [36]float64
	if cov == nil {
		return out
	}
	n, _ := cov.Dims()
	offset := 0
	if n >= 12 {
		offset = 6
	}
	if n < offset+6 {
		return out
	}
	src := [6]int{3, 4, 5, 0, 1, 2}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			out[i*6+j] = cov.At(offset+src[i], offset+src[j])
		}
	}
	return out
}
