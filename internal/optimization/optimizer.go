package optimization

// ObjectiveFunc is the scalar function being minimized.
type ObjectiveFunc func(x []float64) float64

// GradientFunc returns the gradient of an objective at x.
// Implementations must not retain x.
type GradientFunc func(x []float64) []float64

// Minimizer defines the interface for the unconstrained solvers
type Minimizer interface {
	// Name returns the method name used for routing and metrics
	Name() string

	// Minimize runs the solver from x0. A nil grad selects a
	// finite-difference approximation. The returned error is only
	// non-nil for invalid input; non-convergence is reported in the result.
	Minimize(f ObjectiveFunc, x0 []float64, grad GradientFunc) (*Result, error)
}

// Result contains the outcome of a single solve
type Result struct {
	X             []float64         `json:"x" yaml:"x"`
	Fun           float64           `json:"fun" yaml:"fun"`
	Gradient      []float64         `json:"gradient" yaml:"gradient"`
	Iterations    int               `json:"iterations" yaml:"iterations"`
	FunctionCalls int               `json:"function_calls" yaml:"function_calls"`
	GradientCalls int               `json:"gradient_calls" yaml:"gradient_calls"`
	Converged     bool              `json:"converged" yaml:"converged"`
	Reason        ConvergenceReason `json:"reason" yaml:"reason"`
	Message       string            `json:"message" yaml:"message"`
}

// NewResult builds the terminal result for reason.
func NewResult(x []float64, fx float64, g []float64, iterations, fCalls, gCalls int, reason ConvergenceReason) *Result {
	return &Result{
		X:             x,
		Fun:           fx,
		Gradient:      g,
		Iterations:    iterations,
		FunctionCalls: fCalls,
		GradientCalls: gCalls,
		Converged:     IsConverged(reason),
		Reason:        reason,
		Message:       reason.Message(),
	}
}
