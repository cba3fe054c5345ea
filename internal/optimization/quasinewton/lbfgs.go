package quasinewton

import (
	"errors"

	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
)

// DefaultMemory is the number of correction pairs L-BFGS keeps by default.
const DefaultMemory = 10

// LBFGSOptions extends the common options with the history size and the
// line search used along each direction.
type LBFGSOptions struct {
	optimization.Options `yaml:",inline"`

	Memory     int             `json:"memory,omitempty" yaml:"memory,omitempty"`
	LineSearch linesearch.Kind `json:"-" yaml:"-"`
}

// LBFGSSolver minimizes with limited-memory BFGS.
type LBFGSSolver struct {
	Options    LBFGSOptions
	Difference finitediff.Method
	logger     *zap.Logger
}

// NewLBFGS creates an L-BFGS solver. Zero fields of opts take defaults.
func NewLBFGS(opts *LBFGSOptions, logger *zap.Logger) *LBFGSSolver {
	var o LBFGSOptions
	if opts != nil {
		o = *opts
	}
	o.Options = optimization.DefaultOptions(&o.Options)
	if o.Memory == 0 {
		o.Memory = DefaultMemory
	}
	return &LBFGSSolver{
		Options: o,
		logger:  loggerOrNop(logger).Named("lbfgs"),
	}
}

func (s *LBFGSSolver) Name() string { return "lbfgs" }

func (s *LBFGSSolver) Minimize(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc) (*optimization.Result, error) {
	const op = "LBFGS.Minimize"

	opts := optimization.DefaultOptions(&s.Options.Options)
	memory := s.Options.Memory
	if memory == 0 {
		memory = DefaultMemory
	}
	if memory < 0 {
		return nil, optimization.WrapError(errors.New("memory must be positive"), "invalid options").
			WithOperation(op).WithComponent("quasinewton")
	}
	g0, err := optimization.ValidateInput(op, f, x0, grad, opts)
	if err != nil {
		return nil, err.WithComponent("quasinewton")
	}

	log := loggerOrNop(s.logger)
	log.Debug("Starting L-BFGS",
		zap.Int("dim", len(x0)),
		zap.Int("memory", memory),
		zap.Stringer("line_search", s.Options.LineSearch))

	r := newRun(log, opts, linesearch.NewSearcher(s.Options.LineSearch), newHistory(len(x0), memory), f, x0, grad, g0, s.Difference)
	res := r.solve()

	log.Debug("L-BFGS finished",
		zap.Int("iterations", res.Iterations),
		zap.Float64("f", res.Fun),
		zap.Stringer("reason", res.Reason))
	return res, nil
}

// LBFGS minimizes f from x0. A nil opts selects the defaults.
func LBFGS(f optimization.ObjectiveFunc, x0 []float64, grad optimization.GradientFunc, opts *LBFGSOptions) (*optimization.Result, error) {
	return NewLBFGS(opts, nil).Minimize(f, x0, grad)
}
