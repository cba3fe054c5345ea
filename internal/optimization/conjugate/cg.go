// Package conjugate implements nonlinear conjugate gradient with the
// Hager-Zhang update and line search.
package conjugate

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// DefaultEta bounds β from below relative to ‖d‖.
const DefaultEta = 0.4

type Options struct {
	optimization.Options `yaml:",inline"`

	Eta float64 `json:"eta,omitempty" yaml:"eta,omitempty"`
	// RestartInterval resets the direction to -∇f every k iterations.
	// Zero means the problem dimension.
	RestartInterval int `json:"restart_interval,omitempty" yaml:"restart_interval,omitempty"`
}

// Solver minimizes with the Hager-Zhang conjugate gradient method.
type Solver struct {
	Options    Options
	LineSearch linesearch.HagerZhangSettings
	Difference finitediff.Method
	logger     *zap.Logger
}

func New(opts *Options, logger *zap.Logger) *Solver {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.Options = optimization.DefaultOptions(&o.Options)
	if o.Eta == 0 {
		o.Eta = DefaultEta
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{Options: o, logger: logger.Named("cg")}
}

func (s *Solver) Name() string { return "cg" }

func (s *Solver) Minimize(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc) (*optimization.Result, error) {
	const op = "CG.Minimize"

	opts := optimization.DefaultOptions(&s.Options.Options)
	eta := s.Options.Eta
	if eta == 0 {
		eta = DefaultEta
	}
	if eta < 0 || s.Options.RestartInterval < 0 {
		return nil, optimization.WrapError(errors.New("eta and restart_interval must be non-negative"), "invalid options").
			WithOperation(op).WithComponent("conjugate")
	}
	g, verr := optimization.ValidateInput(op, f, x0, grad, opts)
	if verr != nil {
		return nil, verr.WithComponent("conjugate")
	}
	log := s.logger
	if log == nil {
		log = zap.NewNop()
	}

	if grad == nil {
		grad = finitediff.MakeGradient(f, s.Difference)
		g = grad(x0)
	}
	restart := s.Options.RestartInterval
	if restart == 0 {
		restart = len(x0)
	}
	hz := s.LineSearch

	x := vecops.Clone(x0)
	fx := f(x)
	fCalls, gCalls := 1, 1
	done := func(iter int, reason optimization.ConvergenceReason) *optimization.Result {
		return optimization.NewResult(x, fx, g, iter, fCalls, gCalls, reason)
	}

	if reason, _ := optimization.CheckConvergence(vecops.NormInf(g), math.Inf(1), math.Inf(1), 0, opts); optimization.IsConverged(reason) {
		return done(0, reason), nil
	}

	d := vecops.Negate(g)
	for iter := 1; ; iter++ {
		ls := linesearch.HagerZhang(f, grad, x, d, fx, g, &hz)
		fCalls += ls.FunctionCalls
		gCalls += ls.GradientCalls
		if !ls.Success {
			log.Debug("Line search failed", zap.Int("iteration", iter), zap.Float64("f", fx))
			return done(iter, optimization.LineSearchFailed), nil
		}

		xNew := vecops.AddScaled(x, d, ls.Alpha)
		gNew := ls.GNew
		if gNew == nil {
			gNew = grad(xNew)
			gCalls++
		}

		beta := 0.0
		if iter%restart != 0 {
			beta = hagerZhangBeta(d, g, gNew, eta)
		}
		dNew := vecops.AddScaled(vecops.Negate(gNew), d, beta)
		if vecops.Dot(dNew, gNew) >= 0 {
			log.Debug("Lost descent, restarting", zap.Int("iteration", iter))
			dNew = vecops.Negate(gNew)
		}

		stepNorm := vecops.NormInf(vecops.Sub(xNew, x))
		funcChange := math.Abs(fx - ls.FNew)
		x, fx, g, d = xNew, ls.FNew, gNew, dNew
		gradNorm := vecops.NormInf(g)

		log.Debug("Iteration",
			zap.Int("iteration", iter),
			zap.Float64("f", fx),
			zap.Float64("grad_norm", gradNorm),
			zap.Float64("beta", beta))

		if reason, stop := optimization.CheckConvergence(gradNorm, stepNorm, funcChange, iter, opts); stop {
			return done(iter, reason), nil
		}
	}
}

// hagerZhangBeta is max(β_HZ, -1/(‖d‖·min(η, ‖g‖))), zero when d·y vanishes.
func hagerZhangBeta(d, g, gNew []float64, eta float64) float64 {
	y := vecops.Sub(gNew, g)
	dy := vecops.Dot(d, y)
	if math.Abs(dy) < 1e-30 {
		return 0
	}
	beta := (vecops.Dot(y, gNew) - 2*vecops.Dot(y, y)*vecops.Dot(d, gNew)/dy) / dy
	floor := -1 / (vecops.Norm(d) * math.Min(eta, vecops.Norm(g)))
	return math.Max(beta, floor)
}

// Minimize runs conjugate gradient with default settings.
func Minimize(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc, opts *Options) (*optimization.Result, error) {
	return New(opts, nil).Minimize(f, x0, grad)
}
