// Package finitediff builds gradient approximations for objectives that do
// not supply an analytic gradient.
package finitediff

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/copyleftdev/qnopt/internal/optimization"
)

// Method selects the difference formula.
type Method int

const (
	// Forward uses f(x+h) - f(x); one extra evaluation per coordinate.
	Forward Method = iota
	// Central uses f(x+h) - f(x-h); two evaluations per coordinate,
	// second order accurate.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps "forward" or "central" to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "forward", "":
		return Forward, nil
	case "central":
		return Central, nil
	}
	return Forward, fmt.Errorf("unknown finite difference method %q", s)
}

func (m Method) formula() fd.Formula {
	if m == Central {
		return fd.Central
	}
	return fd.Forward
}

// Step returns the difference step for a coordinate with value xi:
// √ε·max(|xi|, 1) for Forward and ∛ε·max(|xi|, 1) for Central, ε being
// the float64 machine epsilon.
func (m Method) Step(xi float64) float64 {
	scale := math.Max(math.Abs(xi), 1)
	if m == Central {
		return math.Cbrt(epsilon) * scale
	}
	return math.Sqrt(epsilon) * scale
}

const epsilon = 0x1p-52

// MakeGradient returns a GradientFunc approximating the gradient of f.
// Each coordinate is differenced with its own Step so the error scales
// with |xi|. Forward differences evaluate f(x) once per gradient.
// Evaluations are serial.
func MakeGradient(f optimization.ObjectiveFunc, method Method) optimization.GradientFunc {
	formula := method.formula()
	return func(x []float64) []float64 {
		xt := make([]float64, len(x))
		copy(xt, x)
		settings := fd.Settings{Formula: formula}
		if method == Forward {
			settings.OriginKnown = true
			settings.OriginValue = f(xt)
		}

		g := make([]float64, len(x))
		for i, xi := range x {
			settings.Step = method.Step(xi)
			g[i] = fd.Derivative(func(t float64) float64 {
				xt[i] = t
				return f(xt)
			}, xi, &settings)
			xt[i] = xi
		}
		return g
	}
}
