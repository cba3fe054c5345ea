package quasinewton

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
)

// BFGSSolver minimizes with full-memory BFGS and a strong Wolfe line search.
type BFGSSolver struct {
	Options    optimization.Options
	Wolfe      linesearch.WolfeSettings
	Difference finitediff.Method // used when no gradient is supplied
	logger     *zap.Logger
}

// NewBFGS creates a BFGS solver. A nil opts selects the default options and
// a nil logger disables logging.
func NewBFGS(opts *optimization.Options, logger *zap.Logger) *BFGSSolver {
	return &BFGSSolver{
		Options: optimization.DefaultOptions(opts),
		logger:  loggerOrNop(logger).Named("bfgs"),
	}
}

// Name implements optimization.Minimizer.
func (s *BFGSSolver) Name() string { return "bfgs" }

// Minimize implements optimization.Minimizer.
func (s *BFGSSolver) Minimize(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc) (*optimization.Result, error) {
	const op = "BFGS.Minimize"

	opts := optimization.DefaultOptions(&s.Options)
	g0, err := optimization.ValidateInput(op, f, x0, grad, opts)
	if err != nil {
		return nil, err.WithComponent("quasinewton")
	}

	log := loggerOrNop(s.logger)
	wolfe := s.Wolfe
	search := func(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64) linesearch.Result {
		return linesearch.Wolfe(f, grad, x, d, fx, gx, &wolfe)
	}

	log.Debug("Starting BFGS",
		zap.Int("dim", len(x0)),
		zap.Int("max_iterations", opts.MaxIterations),
		zap.Bool("analytic_gradient", grad != nil))

	r := newRun(log, opts, search, newDenseInverse(len(x0)), f, x0, grad, g0, s.Difference)
	res := r.solve()

	log.Debug("BFGS finished",
		zap.Int("iterations", res.Iterations),
		zap.Float64("f", res.Fun),
		zap.Stringer("reason", res.Reason))
	return res, nil
}

// BFGS minimizes f from x0 with the default solver settings.
func BFGS(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc, opts *optimization.Options) (*optimization.Result, error) {
	return NewBFGS(opts, nil).Minimize(f, x0, grad)
}

// denseInverse stores H as a dense symmetric matrix, initially the identity.
type denseInverse struct {
	h *mat.SymDense
}

func newDenseInverse(n int) *denseInverse {
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		h.SetSym(i, i, 1)
	}
	return &denseInverse{h: h}
}

func (d *denseInverse) direction(g []float64) []float64 {
	n := len(g)
	out := make([]float64, n)
	dir := mat.NewVecDense(n, out)
	dir.MulVec(d.h, mat.NewVecDense(n, g))
	dir.ScaleVec(-1, dir)
	return out
}

// update applies H ← (I-ρsyᵀ)H(I-ρysᵀ) + ρssᵀ through its expansion
// H - ρ(s(Hy)ᵀ + (Hy)sᵀ) + ρ(1 + ρ·yᵀHy)ssᵀ, entry by entry over the
// upper triangle.
func (d *denseInverse) update(s, y []float64, ys float64) {
	n := len(s)
	rho := 1 / ys

	hyv := mat.NewVecDense(n, nil)
	hyv.MulVec(d.h, mat.NewVecDense(n, y))
	hy := hyv.RawVector().Data
	c := rho * (1 + rho*floats.Dot(y, hy))

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h := d.h.At(i, j) - rho*(s[i]*hy[j]+hy[i]*s[j]) + c*s[i]*s[j]
			d.h.SetSym(i, j, h)
		}
	}
}
