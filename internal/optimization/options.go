package optimization

import (
	"errors"
	"math"

	"github.com/hashicorp/go-multierror"
)

const (
	DefaultGradTol       = 1e-8
	DefaultStepTol       = 1e-8
	DefaultFuncTol       = 1e-12
	DefaultMaxIterations = 1000
)

// Options holds the stopping criteria shared by every solver.
//
// Zero-valued fields mean "use the default", so no criterion can be turned
// off by zeroing it. Tolerance tests are strict, so the smallest positive
// float64 fires only on an exactly zero gradient, step or change, and a
// large MaxIterations leaves the budget effectively unbounded.
type Options struct {
	GradTol       float64 `json:"grad_tol,omitempty" yaml:"grad_tol,omitempty"`
	StepTol       float64 `json:"step_tol,omitempty" yaml:"step_tol,omitempty"`
	FuncTol       float64 `json:"func_tol,omitempty" yaml:"func_tol,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// DefaultOptions returns the default options with any non-zero field of
// overrides merged on top.
func DefaultOptions(overrides *Options) Options {
	opts := Options{
		GradTol:       DefaultGradTol,
		StepTol:       DefaultStepTol,
		FuncTol:       DefaultFuncTol,
		MaxIterations: DefaultMaxIterations,
	}
	if overrides == nil {
		return opts
	}
	if overrides.GradTol != 0 {
		opts.GradTol = overrides.GradTol
	}
	if overrides.StepTol != 0 {
		opts.StepTol = overrides.StepTol
	}
	if overrides.FuncTol != 0 {
		opts.FuncTol = overrides.FuncTol
	}
	if overrides.MaxIterations != 0 {
		opts.MaxIterations = overrides.MaxIterations
	}
	return opts
}

// Validate reports every invalid field at once.
func (o Options) Validate() error {
	var result *multierror.Error
	if o.GradTol < 0 || math.IsNaN(o.GradTol) {
		result = multierror.Append(result, errors.New("grad_tol must be non-negative"))
	}
	if o.StepTol < 0 || math.IsNaN(o.StepTol) {
		result = multierror.Append(result, errors.New("step_tol must be non-negative"))
	}
	if o.FuncTol < 0 || math.IsNaN(o.FuncTol) {
		result = multierror.Append(result, errors.New("func_tol must be non-negative"))
	}
	if o.MaxIterations < 0 {
		result = multierror.Append(result, errors.New("max_iterations must be non-negative"))
	}
	return result.ErrorOrNil()
}
