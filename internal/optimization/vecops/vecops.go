// Package vecops provides the non-mutating vector arithmetic used by the
// line searches and solvers. Every function that returns a vector returns a
// freshly allocated slice and leaves its arguments untouched.
package vecops

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Norm is the Euclidean norm.
func Norm(v []float64) float64 {
	return floats.Norm(v, 2)
}

// NormInf is the largest absolute component, 0 for an empty vector.
func NormInf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}

func Scale(v []float64, s float64) []float64 {
	return floats.ScaleTo(make([]float64, len(v)), s, v)
}

func Add(a, b []float64) []float64 {
	return floats.AddTo(make([]float64, len(a)), a, b)
}

// Sub returns a - b.
func Sub(a, b []float64) []float64 {
	return floats.SubTo(make([]float64, len(a)), a, b)
}

func Negate(v []float64) []float64 {
	return Scale(v, -1)
}

// AddScaled returns a + s·b.
func AddScaled(a, b []float64, s float64) []float64 {
	return floats.AddScaledTo(make([]float64, len(a)), a, s, b)
}

func Clone(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}
