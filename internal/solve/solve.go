// Package solve routes a named solve request to the matching solver.
// It is the glue shared by the HTTP service and the command line tool.
package solve

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/conjugate"
	"github.com/copyleftdev/qnopt/internal/optimization/finitediff"
	"github.com/copyleftdev/qnopt/internal/optimization/linesearch"
	"github.com/copyleftdev/qnopt/internal/optimization/quasinewton"
)

// Method names accepted in Request.Method.
const (
	MethodBFGS  = "bfgs"
	MethodLBFGS = "lbfgs"
	MethodCG    = "cg"
)

// Gradient sources accepted in Request.Gradient.
const (
	GradientAnalytic = "analytic"
	GradientForward  = "forward"
	GradientCentral  = "central"
)

// Methods lists the supported solver names.
func Methods() []string {
	return []string{MethodBFGS, MethodLBFGS, MethodCG}
}

// Request describes one solve of a catalog problem.
type Request struct {
	Method     string               `json:"method" yaml:"method"`
	Problem    string               `json:"problem" yaml:"problem"`
	X0         []float64            `json:"x0,omitempty" yaml:"x0,omitempty"`
	Options    optimization.Options `json:"options" yaml:"options"`
	Memory     int                  `json:"memory,omitempty" yaml:"memory,omitempty"`
	Gradient   string               `json:"gradient,omitempty" yaml:"gradient,omitempty"`
	LineSearch string               `json:"line_search,omitempty" yaml:"line_search,omitempty"`
}

// Defaults holds the values applied to fields a request leaves empty.
type Defaults struct {
	Options optimization.Options
	Memory  int
}

// WithDefaults returns a copy of r with empty fields filled from d and the
// catalog entry of the named problem.
func (r Request) WithDefaults(d Defaults) Request {
	out := r
	out.Method = strings.ToLower(strings.TrimSpace(out.Method))
	if out.Method == "" {
		out.Method = MethodBFGS
	}
	if out.Gradient == "" {
		out.Gradient = GradientAnalytic
	}
	if out.Memory == 0 {
		out.Memory = d.Memory
	}
	out.Options = optimization.DefaultOptions(&d.Options)
	if r.Options.GradTol != 0 {
		out.Options.GradTol = r.Options.GradTol
	}
	if r.Options.StepTol != 0 {
		out.Options.StepTol = r.Options.StepTol
	}
	if r.Options.FuncTol != 0 {
		out.Options.FuncTol = r.Options.FuncTol
	}
	if r.Options.MaxIterations != 0 {
		out.Options.MaxIterations = r.Options.MaxIterations
	}
	if len(out.X0) == 0 {
		if p, ok := optimization.LookupProblem(out.Problem); ok {
			out.X0 = append([]float64(nil), p.Start...)
		}
	}
	return out
}

// Validate reports every problem with the request at once.
func (r Request) Validate() error {
	var result *multierror.Error

	switch r.Method {
	case MethodBFGS, MethodLBFGS, MethodCG:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown method %q, want one of %s", r.Method, strings.Join(Methods(), ", ")))
	}

	p, ok := optimization.LookupProblem(r.Problem)
	switch {
	case r.Problem == "":
		result = multierror.Append(result, fmt.Errorf("problem is required"))
	case !ok:
		result = multierror.Append(result, fmt.Errorf("unknown problem %q", r.Problem))
	case p.Dim != 0 && len(r.X0) != p.Dim:
		result = multierror.Append(result, fmt.Errorf("problem %q needs a %d dimensional x0, got %d", r.Problem, p.Dim, len(r.X0)))
	}

	switch r.Gradient {
	case "", GradientAnalytic, GradientForward, GradientCentral:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown gradient %q", r.Gradient))
	}

	if r.LineSearch != "" {
		if _, ok := linesearch.ParseKind(r.LineSearch); !ok {
			result = multierror.Append(result, fmt.Errorf("unknown line search %q", r.LineSearch))
		} else if r.Method != MethodLBFGS {
			result = multierror.Append(result, fmt.Errorf("line_search only applies to %s", MethodLBFGS))
		}
	}
	if r.Memory < 0 {
		result = multierror.Append(result, fmt.Errorf("memory must be positive"))
	}
	if err := r.Options.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// NewMinimizer builds the solver a validated request asks for.
func NewMinimizer(r Request, logger *zap.Logger) (optimization.Minimizer, error) {
	method := finitediff.Forward
	if r.Gradient == GradientCentral {
		method = finitediff.Central
	}

	switch r.Method {
	case MethodBFGS:
		s := quasinewton.NewBFGS(&r.Options, logger)
		s.Difference = method
		return s, nil
	case MethodLBFGS:
		kind, _ := linesearch.ParseKind(r.LineSearch)
		s := quasinewton.NewLBFGS(&quasinewton.LBFGSOptions{
			Options:    r.Options,
			Memory:     r.Memory,
			LineSearch: kind,
		}, logger)
		s.Difference = method
		return s, nil
	case MethodCG:
		s := conjugate.New(&conjugate.Options{Options: r.Options}, logger)
		s.Difference = method
		return s, nil
	}
	return nil, optimization.NewErrorf("unknown method %q", r.Method).WithOperation("solve.NewMinimizer")
}

// Run validates r and solves it. Invalid requests yield an
// *optimization.Error; the solve itself never fails.
func Run(r Request, logger *zap.Logger) (*optimization.Result, error) {
	const op = "solve.Run"

	if err := r.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid request").WithOperation(op)
	}
	m, err := NewMinimizer(r, logger)
	if err != nil {
		return nil, err
	}

	p, _ := optimization.LookupProblem(r.Problem)
	var grad optimization.GradientFunc
	if r.Gradient == "" || r.Gradient == GradientAnalytic {
		grad = p.Grad
	}
	return m.Minimize(p.Func, r.X0, grad)
}
