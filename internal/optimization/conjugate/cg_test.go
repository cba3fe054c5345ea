package conjugate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

func TestConjugateGradient(t *testing.T) {
	tests := []struct {
		problem string
		opts    *Options
	}{
		{"sphere", nil},
		{"booth", nil},
		{"rosenbrock", nil},
		{"rosenbrock", &Options{RestartInterval: 5}},
		{"booth", &Options{Eta: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.problem, func(t *testing.T) {
			p, ok := optimization.LookupProblem(tt.problem)
			require.True(t, ok)

			res, err := Minimize(p.Func, vecops.Clone(p.Start), p.Grad, tt.opts)
			require.NoError(t, err)
			require.True(t, res.Converged, "stopped with %s", res.Reason)
			assert.InDelta(t, p.MinValue, res.Fun, 1e-8)
			if p.Minimum != nil {
				assert.InDeltaSlice(t, p.Minimum, res.X, 1e-4)
			}
		})
	}
}

func TestConjugateGradientSphereOneStep(t *testing.T) {
	res, err := Minimize(optimization.Sphere, []float64{5, 5}, optimization.SphereGrad, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, optimization.Gradient, res.Reason)
}

func TestConjugateGradientValidation(t *testing.T) {
	_, err := Minimize(nil, []float64{1}, nil, nil)
	require.Error(t, err)
	oe, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "conjugate", oe.Component)

	_, err = Minimize(optimization.Sphere, []float64{1}, nil, &Options{Eta: -1})
	require.Error(t, err)
}

func TestHagerZhangBetaFloor(t *testing.T) {
	d := []float64{1, 1}
	g := []float64{-1, 0}

	assert.Zero(t, hagerZhangBeta(d, g, g, DefaultEta), "d·y = 0 must give β = 0")

	// ‖d‖ = √2, ‖g‖ = 1: the floor is -1/(0.4·√2).
	beta := hagerZhangBeta(d, g, []float64{-1, 100}, DefaultEta)
	assert.GreaterOrEqual(t, beta, -1/(0.4*math.Sqrt2))
}

func TestNameAndFiniteDifference(t *testing.T) {
	s := New(&Options{Options: optimization.Options{GradTol: 1e-5}}, nil)
	assert.Equal(t, "cg", s.Name())

	res, err := s.Minimize(optimization.Sphere, []float64{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, res.X, 1e-4)
}
