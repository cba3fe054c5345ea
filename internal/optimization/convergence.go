package optimization

// ConvergenceReason identifies why a solve terminated.
type ConvergenceReason int

const (
	// ReasonNone is the zero value and never terminates a solve.
	ReasonNone ConvergenceReason = iota
	// Gradient: the infinity norm of the gradient fell below GradTol.
	Gradient
	// Step: the infinity norm of the last step fell below StepTol.
	Step
	// Function: the absolute change in f fell below FuncTol.
	Function
	// MaxIterations: the iteration budget was exhausted.
	MaxIterations
	// LineSearchFailed: the line search could not find an acceptable step.
	LineSearchFailed
)

var reasonStrings = map[ConvergenceReason]string{
	ReasonNone:       "none",
	Gradient:         "gradient",
	Step:             "step",
	Function:         "function",
	MaxIterations:    "max_iterations",
	LineSearchFailed: "line_search_failed",
}

var reasonMessages = map[ConvergenceReason]string{
	ReasonNone:       "No convergence",
	Gradient:         "Converged: gradient norm below tolerance",
	Step:             "Converged: step size below tolerance",
	Function:         "Converged: function change below tolerance",
	MaxIterations:    "Stopped: maximum iterations reached",
	LineSearchFailed: "Stopped: line search failed to find an acceptable step",
}

func (r ConvergenceReason) String() string {
	if s, ok := reasonStrings[r]; ok {
		return s
	}
	return "unknown"
}

// Message returns a human readable description of the reason.
func (r ConvergenceReason) Message() string {
	if s, ok := reasonMessages[r]; ok {
		return s
	}
	return "Unknown convergence reason"
}

// MarshalText encodes the reason by name.
func (r ConvergenceReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// IsConverged reports whether reason denotes true convergence.
func IsConverged(reason ConvergenceReason) bool {
	switch reason {
	case Gradient, Step, Function:
		return true
	default:
		return false
	}
}

// CheckConvergence evaluates the stopping criteria in priority order
// gradient, step, function, iterations and returns the first match.
// Comparisons against tolerances are strict.
func CheckConvergence(gradNorm, stepNorm, funcChange float64, iteration int, opts Options) (ConvergenceReason, bool) {
	switch {
	case gradNorm < opts.GradTol:
		return Gradient, true
	case stepNorm < opts.StepTol:
		return Step, true
	case funcChange < opts.FuncTol:
		return Function, true
	case iteration >= opts.MaxIterations:
		return MaxIterations, true
	}
	return ReasonNone, false
}
