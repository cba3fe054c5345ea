package quasinewton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

func TestBFGSSphere(t *testing.T) {
	res, err := BFGS(optimization.Sphere, []float64{5, 5}, optimization.SphereGrad, nil)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, optimization.Gradient, res.Reason)
	assert.InDelta(t, 0.0, res.Fun, 1e-8)
	assert.InDeltaSlice(t, []float64{0, 0}, res.X, 1e-6)
	assert.Less(t, res.Iterations, 20)

	// The exact step along -∇f is the first bisection of [0, 1].
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 3, res.FunctionCalls)
	assert.Equal(t, 2, res.GradientCalls)
}

func TestSolversOnCatalog(t *testing.T) {
	solvers := []optimization.Minimizer{
		NewBFGS(nil, zaptest.NewLogger(t)),
		NewLBFGS(nil, zaptest.NewLogger(t)),
		NewLBFGS(&LBFGSOptions{LineSearch: linesearch.KindHagerZhang}, nil),
		NewLBFGS(&LBFGSOptions{Memory: 3}, nil),
	}
	// himmelblau has four global minima; only the value is checked.
	for _, name := range []string{"sphere", "rosenbrock", "booth", "himmelblau"} {
		p := mustProblem(t, name)

		for _, s := range solvers {
			t.Run(name+"/"+s.Name(), func(t *testing.T) {
				res, err := s.Minimize(p.Func, vecops.Clone(p.Start), p.Grad)
				require.NoError(t, err)
				require.True(t, res.Converged, "stopped with %s after %d iterations", res.Reason, res.Iterations)

				assert.InDelta(t, p.MinValue, res.Fun, 1e-8)
				if p.Minimum != nil && name != "himmelblau" {
					assert.InDeltaSlice(t, p.Minimum, res.X, 1e-4)
				}
			})
		}
	}
}

// TestDefaultSettings runs both solvers with nil options on the standard
// starting points, with finite differences wherever grad is nil.
func TestDefaultSettings(t *testing.T) {
	tests := []struct {
		name      string
		f         optimization.ObjectiveFunc
		grad      optimization.GradientFunc
		x0        []float64
		converged bool // required; otherwise only the value is checked
		want      float64
		tol       float64
	}{
		{"sphere", optimization.Sphere, optimization.SphereGrad, []float64{5, 5}, true, 0, 1e-8},
		{"sphere forward differences", optimization.Sphere, nil, []float64{5, 5}, true, 0, 1e-6},
		{"booth", optimization.Booth, optimization.BoothGrad, []float64{0, 0}, true, 0, 1e-8},
		{"booth forward differences", optimization.Booth, nil, []float64{0, 0}, true, 0, 1e-6},
		{"rosenbrock", optimization.Rosenbrock, optimization.RosenbrockGrad, []float64{-1.2, 1}, true, 0, 1e-10},
		{"rosenbrock forward differences", optimization.Rosenbrock, nil, []float64{-1.2, 1}, false, 0, 1e-6},
		{"beale", optimization.Beale, optimization.BealeGrad, []float64{0, 0}, true, 0, 1e-8},
		{"himmelblau", optimization.Himmelblau, optimization.HimmelblauGrad, []float64{0, 0}, true, 0, 1e-8},
		{"goldstein-price", optimization.GoldsteinPrice, optimization.GoldsteinPriceGrad, []float64{0, -0.5}, true, 3, 1e-4},
	}

	for _, tt := range tests {
		for _, s := range []optimization.Minimizer{NewBFGS(nil, nil), NewLBFGS(nil, nil)} {
			t.Run(tt.name+"/"+s.Name(), func(t *testing.T) {
				res, err := s.Minimize(tt.f, vecops.Clone(tt.x0), tt.grad)
				require.NoError(t, err)
				if tt.converged {
					assert.True(t, res.Converged, "stopped with %s after %d iterations", res.Reason, res.Iterations)
				}
				assert.InDelta(t, tt.want, res.Fun, tt.tol)
			})
		}
	}

	t.Run("rosenbrock/lbfgs memory 3", func(t *testing.T) {
		res, err := LBFGS(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad, &LBFGSOptions{Memory: 3})
		require.NoError(t, err)
		assert.True(t, res.Converged, "stopped with %s", res.Reason)
		assert.Less(t, res.Fun, 1e-6)
	})

	opts := optimization.Options{MaxIterations: 2}
	for _, s := range []optimization.Minimizer{NewBFGS(&opts, nil), NewLBFGS(&LBFGSOptions{Options: opts}, nil)} {
		t.Run("two iterations/"+s.Name(), func(t *testing.T) {
			res, err := s.Minimize(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad)
			require.NoError(t, err)
			assert.False(t, res.Converged)
			assert.Equal(t, optimization.MaxIterations, res.Reason)
			assert.Equal(t, 2, res.Iterations)
			assert.Contains(t, res.Message, "maximum iterations")
		})
	}
}

func TestLBFGSWithBacktracking(t *testing.T) {
	calls := 0
	grad := func(x []float64) []float64 {
		calls++
		return optimization.HimmelblauGrad(x)
	}

	res, err := LBFGS(optimization.Himmelblau, []float64{0, 0}, grad, &LBFGSOptions{LineSearch: linesearch.KindBacktracking})
	require.NoError(t, err)
	require.True(t, res.Converged, "stopped with %s", res.Reason)
	assert.InDeltaSlice(t, []float64{3, 2}, res.X, 1e-6)
	// One gradient at x0 and one at each accepted point.
	assert.Equal(t, res.Iterations+1, res.GradientCalls)
	assert.Equal(t, calls, res.GradientCalls)
}

func TestLBFGSRosenbrock(t *testing.T) {
	res, err := LBFGS(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad, nil)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Less(t, res.Fun, 1e-10)
	assert.InDeltaSlice(t, []float64{1, 1}, res.X, 1e-5)
	assert.Greater(t, res.FunctionCalls, res.Iterations)
}

func TestInitialPointAlreadyOptimal(t *testing.T) {
	res, err := BFGS(optimization.Sphere, []float64{0, 0}, optimization.SphereGrad, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, optimization.Gradient, res.Reason)
	assert.Equal(t, 1, res.FunctionCalls)
	assert.Equal(t, 1, res.GradientCalls)
}

func TestMaxIterations(t *testing.T) {
	opts := &optimization.Options{MaxIterations: 3}
	res, err := BFGS(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad, opts)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, optimization.MaxIterations, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, optimization.MaxIterations.Message(), res.Message)
}

func TestLineSearchFailure(t *testing.T) {
	// Unbounded below along -∇f: the Wolfe search runs into AlphaMax.
	f := func(x []float64) float64 { return -x[0] }
	grad := func(x []float64) []float64 { return []float64{-1} }

	for _, s := range []optimization.Minimizer{NewBFGS(nil, nil), NewLBFGS(nil, nil)} {
		t.Run(s.Name(), func(t *testing.T) {
			res, err := s.Minimize(f, []float64{0}, grad)
			require.NoError(t, err)
			assert.False(t, res.Converged)
			assert.Equal(t, optimization.LineSearchFailed, res.Reason)
			assert.Equal(t, 1, res.Iterations)
			assert.Equal(t, []float64{0}, res.X)
		})
	}
}

func TestFiniteDifferenceFallback(t *testing.T) {
	opts := &optimization.Options{GradTol: 1e-5}

	t.Run("bfgs forward", func(t *testing.T) {
		res, err := BFGS(optimization.Booth, []float64{0, 0}, nil, opts)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.InDeltaSlice(t, []float64{1, 3}, res.X, 1e-4)
	})

	t.Run("lbfgs central", func(t *testing.T) {
		s := NewLBFGS(&LBFGSOptions{Options: *opts}, nil)
		s.Difference = finitediff.Central
		res, err := s.Minimize(optimization.Sphere, []float64{5, -3, 2}, nil)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.InDeltaSlice(t, []float64{0, 0, 0}, res.X, 1e-5)
	})
}

func TestInputValidation(t *testing.T) {
	tests := []struct {
		name string
		f    optimization.ObjectiveFunc
		x0   []float64
		grad optimization.GradientFunc
		opts *optimization.Options
	}{
		{"nil objective", nil, []float64{1}, nil, nil},
		{"empty start", optimization.Sphere, nil, nil, nil},
		{"gradient length", optimization.Sphere, []float64{1, 2}, func(x []float64) []float64 { return []float64{1} }, nil},
		{"negative tolerance", optimization.Sphere, []float64{1}, nil, &optimization.Options{GradTol: -1}},
		{"negative iterations", optimization.Sphere, []float64{1}, nil, &optimization.Options{MaxIterations: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BFGS(tt.f, tt.x0, tt.grad, tt.opts)
			require.Error(t, err)
			oe, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, "BFGS.Minimize", oe.Op)
			assert.Equal(t, "quasinewton", oe.Component)

			var lopts *LBFGSOptions
			if tt.opts != nil {
				lopts = &LBFGSOptions{Options: *tt.opts}
			}
			_, err = LBFGS(tt.f, tt.x0, tt.grad, lopts)
			require.Error(t, err)
			_, ok = optimization.IsOptimizationError(err)
			assert.True(t, ok)
		})
	}

	t.Run("negative memory", func(t *testing.T) {
		_, err := LBFGS(optimization.Sphere, []float64{1}, nil, &LBFGSOptions{Memory: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory must be positive")
	})
}

func TestStartingPointNotModified(t *testing.T) {
	x0 := []float64{-1.2, 1}
	_, err := BFGS(optimization.Rosenbrock, x0, optimization.RosenbrockGrad, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.2, 1}, x0)
}

func newTestRun(approx inverseHessian, x []float64) *run {
	g := optimization.SphereGrad(x)
	return newRun(zap.NewNop(), optimization.DefaultOptions(nil), linesearch.NewSearcher(linesearch.KindWolfe),
		approx, optimization.Sphere, x, optimization.SphereGrad, g, finitediff.Forward)
}

func TestCurvatureGuardLeavesHessianUntouched(t *testing.T) {
	approx := newDenseInverse(2)
	r := newTestRun(approx, []float64{1, 1})

	// Prime H with one genuine update so the check is not against I.
	r.accept([]float64{0.5, 0.25}, optimization.Sphere([]float64{0.5, 0.25}), optimization.SphereGrad([]float64{0.5, 0.25}))
	before := vecops.Clone(approx.h.RawSymmetric().Data)

	// gNew == g makes y = 0 and y·s = 0.
	xNew := []float64{2, -1}
	stepNorm, _ := r.accept(xNew, 5, r.g)

	after := approx.h.RawSymmetric().Data
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, math.Float64bits(before[i]), math.Float64bits(after[i]), "H[%d] changed", i)
	}
	assert.Equal(t, xNew, r.x)
	assert.Equal(t, 5.0, r.fx)
	assert.Equal(t, 1.5, stepNorm)
}

func TestCurvatureGuardSkipsHistoryPush(t *testing.T) {
	h := newHistory(2, 5)
	r := newTestRun(h, []float64{1, 1})

	r.accept([]float64{2, -1}, 5, r.g)
	assert.Equal(t, 0, h.len())
	assert.Equal(t, []float64{2, -1}, r.x)
}

func TestDenseInverseUpdate(t *testing.T) {
	d := newDenseInverse(3)
	s := []float64{0.5, -0.2, 0.1}
	y := []float64{1.1, -0.3, 0.4}
	d.update(s, y, vecops.Dot(s, y))

	// Secant equation H·y = s.
	assert.InDeltaSlice(t, vecops.Negate(s), d.direction(y), 1e-12)

	var chol mat.Cholesky
	assert.True(t, chol.Factorize(d.h), "H must stay positive definite")
}

// productForm computes (I-ρsyᵀ)H(I-ρysᵀ) + ρssᵀ literally.
func productForm(h mat.Matrix, s, y []float64) *mat.Dense {
	n := len(s)
	rho := 1 / vecops.Dot(s, y)
	sv := mat.NewVecDense(n, s)
	yv := mat.NewVecDense(n, y)

	a := mat.NewDense(n, n, nil)
	a.Outer(-rho, sv, yv)
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+1)
	}

	var ah, out, ss mat.Dense
	ah.Mul(a, h)
	out.Mul(&ah, a.T())
	ss.Outer(rho, sv, sv)
	out.Add(&out, &ss)
	return &out
}

func TestDenseInverseMatchesProductForm(t *testing.T) {
	pairs := [][2][]float64{
		{{0.5, -0.2, 0.1}, {1.1, -0.3, 0.4}},
		{{-0.3, 0.8, 0.2}, {-0.2, 1.7, 0.5}},
		{{0.05, 0.01, -0.9}, {0.2, 0.1, -2.5}},
		{{1e-3, -2e-3, 5e-4}, {4e-3, -3e-3, 1e-3}},
	}

	d := newDenseInverse(3)
	want := mat.NewDense(3, 3, nil)
	want.Copy(d.h)
	for i, p := range pairs {
		ys := vecops.Dot(p[0], p[1])
		require.Greater(t, ys, CurvatureThreshold)
		d.update(p[0], p[1], ys)
		want = productForm(want, p[0], p[1])
		assert.True(t, mat.EqualApprox(d.h, want, 1e-9), "update %d diverged:\n%v\n%v", i, mat.Formatted(d.h), mat.Formatted(want))
	}
}

func TestHistoryRing(t *testing.T) {
	h := newHistory(2, 2)
	assert.Equal(t, []float64{-1, 2}, h.direction([]float64{1, -2}))

	pairs := [][2][]float64{
		{{1, 0}, {2, 0}},
		{{0, 1}, {0, 3}},
		{{1, 1}, {1, 2}},
	}
	for _, p := range pairs {
		h.push(p[0], p[1], vecops.Dot(p[0], p[1]))
	}

	require.Equal(t, 2, h.len())
	assert.Equal(t, []float64{0, 1}, h.sAt(h.slot(0)), "oldest pair must be evicted")
	assert.Equal(t, []float64{1, 1}, h.sAt(h.slot(1)))
	assert.InDelta(t, 3.0/5.0, h.gamma, 1e-15)

	// The newest pair always satisfies the secant equation.
	assert.InDeltaSlice(t, []float64{-1, -1}, h.direction([]float64{1, 2}), 1e-12)
}

func TestAgreesWithGonum(t *testing.T) {
	tests := []struct {
		name   string
		p      optimization.Problem
		method optimize.Method
		solver optimization.Minimizer
	}{
		{"bfgs rosenbrock", mustProblem(t, "rosenbrock"), &optimize.BFGS{}, NewBFGS(nil, nil)},
		{"lbfgs rosenbrock", mustProblem(t, "rosenbrock"), &optimize.LBFGS{Store: DefaultMemory}, NewLBFGS(nil, nil)},
		{"bfgs booth", mustProblem(t, "booth"), &optimize.BFGS{}, NewBFGS(nil, nil)},
		{"lbfgs booth", mustProblem(t, "booth"), &optimize.LBFGS{}, NewLBFGS(nil, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grad := tt.p.Grad
			ref, err := optimize.Minimize(optimize.Problem{
				Func: tt.p.Func,
				Grad: func(dst, x []float64) { copy(dst, grad(x)) },
			}, vecops.Clone(tt.p.Start), nil, tt.method)
			require.NoError(t, err)

			res, err := tt.solver.Minimize(tt.p.Func, vecops.Clone(tt.p.Start), tt.p.Grad)
			require.NoError(t, err)
			require.True(t, res.Converged)

			assert.InDeltaSlice(t, ref.X, res.X, 1e-4)
			assert.InDelta(t, ref.F, res.Fun, 1e-8)
		})
	}
}

func mustProblem(t *testing.T, name string) optimization.Problem {
	t.Helper()
	p, ok := optimization.LookupProblem(name)
	require.True(t, ok, name)
	return p
}

func BenchmarkBFGSRosenbrock(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = BFGS(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad, nil)
	}
}

func BenchmarkLBFGSRosenbrock(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = LBFGS(optimization.Rosenbrock, []float64{-1.2, 1}, optimization.RosenbrockGrad, nil)
	}
}
