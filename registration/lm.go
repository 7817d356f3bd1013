package registration

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// PoseAt returns the pose predicted by a parameter vector at sweep-relative time t. Under the
// NONE undistortion mode it ignores t and returns a constant pose; under APPROXIMATED/OPTIMIZED
// it interpolates between begin- and end-sweep poses. Supplied by the motion package so this
// package stays agnostic to undistortion mode.
type PoseAt func(params []float64, t float64) spatialmath.Pose

// LossSchedule returns the saturating-loss scale s for a given (zero-based) outer ICP iteration,
// annealed linearly from InitLossScale to FinalLossScale across the configured iteration count.
type LossSchedule func(iteration int) float64

// LinearLossSchedule builds a LossSchedule that anneals linearly from initScale to finalScale
// across totalIterations outer ICP iterations.
func LinearLossSchedule(initScale, finalScale float64, totalIterations int) LossSchedule {
	return func(iteration int) float64 {
		if totalIterations <= 1 {
			return finalScale
		}
		frac := float64(iteration) / float64(totalIterations-1)
		return initScale + frac*(finalScale-initScale)
	}
}

func saturatingLoss(x, s float64) float64 {
	if s <= 0 {
		return x
	}
	return s * math.Atan(x/s)
}

// SolverParams configures the Levenberg-Marquardt damping schedule.
type SolverParams struct {
	MaxIterations int
	Lambda0       float64
	LambdaUp      float64
	LambdaDown    float64
}

// DefaultSolverParams returns reasonable LM damping defaults.
func DefaultSolverParams() SolverParams {
	return SolverParams{MaxIterations: 15, Lambda0: 1e-3, LambdaUp: 10, LambdaDown: 10}
}

// Result is the outcome of one LM solve: the optimized parameter vector, the Jacobian and
// residual vector at that optimum (needed for covariance estimation), and whether the solve
// completed without a numerical failure.
type Result struct {
	Params    []float64
	Jacobian  *mat.Dense
	Residual  []float64
	Converged bool
}

// Solve runs Levenberg-Marquardt to minimize sum_i w_i * rho(r_i^T A_i r_i, lossScale) over
// params, where r_i = R(t_i)X_i + T(t_i) - P_i and (R(t_i), T(t_i)) = poseAt(params, t_i).
//
// Internally it linearizes the scalar "effective residual" e_i = sign(q_i) *
// sqrt(w_i * rho(|q_i|)) whose sum of squares equals the robust cost; its Jacobian is evaluated
// by central finite differences, since poseAt's dependence on params is mode-specific (SE(3)
// exponential map composed with SLERP/LERP interpolation) and not worth hand-differentiating here.
func Solve(residuals []Residual, poseAt PoseAt, initParams []float64, lossScale float64, sp SolverParams) Result {
	params := append([]float64(nil), initParams...)
	dims := len(params)
	n := len(residuals)

	evaluate := func(p []float64) ([]float64, bool) {
		e := make([]float64, n)
		for i, res := range residuals {
			q, ok := quadraticForm(res, poseAt(p, res.Time))
			if !ok || math.IsNaN(q) || math.IsInf(q, 0) {
				return nil, false
			}
			loss := saturatingLoss(math.Abs(q), lossScale)
			sign := 1.0
			if q < 0 {
				sign = -1.0
			}
			e[i] = sign * math.Sqrt(res.Weight*math.Max(loss, 0))
		}
		return e, true
	}

	cost := func(e []float64) float64 {
		var c float64
		for _, v := range e {
			c += v * v
		}
		return c
	}

	e0, ok := evaluate(params)
	if !ok {
		return Result{Params: params, Converged: false}
	}
	currentCost := cost(e0)
	lambda := sp.Lambda0

	const eps = 1e-6
	jac := mat.NewDense(n, dims, nil)
	var lastJac *mat.Dense
	var lastResidual []float64

	for iter := 0; iter < sp.MaxIterations; iter++ {
		e, ok := evaluate(params)
		if !ok {
			return Result{Params: params, Converged: false}
		}
		lastResidual = e

		for j := 0; j < dims; j++ {
			perturbed := append([]float64(nil), params...)
			perturbed[j] += eps
			ePlus, okPlus := evaluate(perturbed)
			perturbed[j] -= 2 * eps
			eMinus, okMinus := evaluate(perturbed)
			if !okPlus || !okMinus {
				return Result{Params: params, Converged: false}
			}
			for i := 0; i < n; i++ {
				jac.Set(i, j, (ePlus[i]-eMinus[i])/(2*eps))
			}
		}
		lastJac = jac

		var jt mat.Dense
		jt.CloneFrom(jac.T())
		var jtj mat.Dense
		jtj.Mul(&jt, jac)

		var jte mat.VecDense
		jte.MulVec(&jt, mat.NewVecDense(n, e))

		accepted := false
		for attempt := 0; attempt < 10; attempt++ {
			damped := mat.NewDense(dims, dims, nil)
			damped.Copy(&jtj)
			for d := 0; d < dims; d++ {
				damped.Set(d, d, damped.At(d, d)+lambda*(damped.At(d, d)+1e-9))
			}

			var delta mat.VecDense
			var negJte mat.VecDense
			negJte.ScaleVec(-1, &jte)
			if err := delta.SolveVec(damped, &negJte); err != nil {
				lambda *= sp.LambdaUp
				continue
			}

			candidate := make([]float64, dims)
			for j := 0; j < dims; j++ {
				candidate[j] = params[j] + delta.AtVec(j)
			}

			eCandidate, ok := evaluate(candidate)
			if !ok {
				lambda *= sp.LambdaUp
				continue
			}
			candidateCost := cost(eCandidate)
			if candidateCost < currentCost {
				params = candidate
				currentCost = candidateCost
				lambda /= sp.LambdaDown
				accepted = true
				break
			}
			lambda *= sp.LambdaUp
		}
		if !accepted {
			break
		}
	}

	return Result{Params: params, Jacobian: lastJac, Residual: lastResidual, Converged: true}
}

// quadraticForm evaluates r^T A r for residual res at the given predicted pose, returning false
// if the pose or primitive yields a non-finite value.
func quadraticForm(res Residual, pose spatialmath.Pose) (float64, bool) {
	if pose == nil {
		return 0, false
	}
	rVec := spatialmath.TransformPoint(pose, res.X).Sub(res.P)
	v := mat.NewVecDense(3, []float64{rVec.X, rVec.Y, rVec.Z})
	var av mat.VecDense
	av.MulVec(res.A, v)
	q := mat.Dot(v, &av)
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, false
	}
	return q, true
}
