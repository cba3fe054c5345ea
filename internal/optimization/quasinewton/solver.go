// Package quasinewton implements the BFGS and limited-memory BFGS solvers.
//
// Both solvers share one outer loop: pick a direction from the current
// inverse Hessian approximation, run a line search along it, feed the
// resulting correction pair back into the approximation and test for
// convergence. They differ only in how the approximation is stored.
package quasinewton

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// CurvatureThreshold is the smallest y·s for which a correction pair is
// accepted into the inverse Hessian approximation. Pairs at or below it
// would break positive definiteness and are skipped.
const CurvatureThreshold = 1e-10

// inverseHessian is the approximation of ∇²f⁻¹ a solver maintains.
type inverseHessian interface {
	// direction returns -H·g.
	direction(g []float64) []float64
	// update folds in the correction pair (s, y) with y·s = ys > CurvatureThreshold.
	update(s, y []float64, ys float64)
}

// run is the state of one solve. It is not safe for concurrent use and is
// discarded when the solve returns.
type run struct {
	log    *zap.Logger
	opts   optimization.Options
	search linesearch.Searcher
	approx inverseHessian

	f    optimization.ObjectiveFunc
	grad optimization.GradientFunc

	x  []float64
	fx float64
	g  []float64

	fCalls, gCalls int
}

// newRun validates the input and evaluates f and ∇f at x0. g0 is the
// gradient already computed by validation, nil when grad is nil.
func newRun(log *zap.Logger, opts optimization.Options, search linesearch.Searcher, approx inverseHessian,
	f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc, g0 []float64, diff finitediff.Method) *run {
	r := &run{
		log:    log,
		opts:   opts,
		search: search,
		approx: approx,
		f:      f,
		grad:   grad,
		x:      vecops.Clone(x0),
	}
	if r.grad == nil {
		r.grad = finitediff.MakeGradient(f, diff)
		g0 = r.grad(r.x)
	}
	r.fx = f(r.x)
	r.fCalls = 1
	r.g = g0
	r.gCalls = 1
	return r
}

func (r *run) result(iterations int, reason optimization.ConvergenceReason) *optimization.Result {
	return optimization.NewResult(vecops.Clone(r.x), r.fx, vecops.Clone(r.g), iterations, r.fCalls, r.gCalls, reason)
}

// solve iterates until a stopping criterion fires.
func (r *run) solve() *optimization.Result {
	if reason, _ := optimization.CheckConvergence(vecops.NormInf(r.g), math.Inf(1), math.Inf(1), 0, r.opts); optimization.IsConverged(reason) {
		r.log.Debug("Converged at starting point", zap.Stringer("reason", reason))
		return r.result(0, reason)
	}

	for iter := 1; ; iter++ {
		d := r.approx.direction(r.g)
		ls := r.search(r.f, r.grad, r.x, d, r.fx, r.g)
		r.fCalls += ls.FunctionCalls
		r.gCalls += ls.GradientCalls

		if !ls.Success {
			r.log.Debug("Line search failed",
				zap.Int("iteration", iter),
				zap.Float64("alpha", ls.Alpha),
				zap.Float64("f", r.fx))
			return r.result(iter, optimization.LineSearchFailed)
		}

		xNew := vecops.AddScaled(r.x, d, ls.Alpha)
		gNew := ls.GNew
		if gNew == nil {
			gNew = r.grad(xNew)
			r.gCalls++
		}
		stepNorm, funcChange := r.accept(xNew, ls.FNew, gNew)
		gradNorm := vecops.NormInf(r.g)

		r.log.Debug("Iteration",
			zap.Int("iteration", iter),
			zap.Float64("f", r.fx),
			zap.Float64("grad_norm", gradNorm),
			zap.Float64("step_norm", stepNorm),
			zap.Float64("alpha", ls.Alpha))

		if reason, done := optimization.CheckConvergence(gradNorm, stepNorm, funcChange, iter, r.opts); done {
			return r.result(iter, reason)
		}
	}
}

// accept moves the iterate to xNew and updates the approximation from the
// correction pair, skipping the update when the curvature condition fails.
// It returns ‖s‖∞ and |f_new - f|.
func (r *run) accept(xNew []float64, fNew float64, gNew []float64) (float64, float64) {
	s := vecops.Sub(xNew, r.x)
	y := vecops.Sub(gNew, r.g)
	if ys := vecops.Dot(y, s); ys > CurvatureThreshold {
		r.approx.update(s, y, ys)
	} else {
		r.log.Debug("Skipping update, curvature condition not met", zap.Float64("ys", ys))
	}

	funcChange := math.Abs(r.fx - fNew)
	r.x, r.fx, r.g = xNew, fNew, gNew
	return vecops.NormInf(s), funcChange
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
