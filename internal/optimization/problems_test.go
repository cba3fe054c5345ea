package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestProblemGradients(t *testing.T) {
	points := [][]float64{{0.3, -0.7}, {-1.2, 1}, {2, 0.5}, {1.5, -1.5}}

	for _, name := range ProblemNames() {
		p, ok := LookupProblem(name)
		require.True(t, ok)

		t.Run(name, func(t *testing.T) {
			for _, x := range points {
				want := fd.Gradient(nil, p.Func, x, &fd.Settings{Formula: fd.Central, Step: 1e-6})
				got := p.Grad(x)
				for i := range want {
					assert.InDelta(t, want[i], got[i], 1e-3*(1+abs(want[i])), "x=%v component %d", x, i)
				}
			}
		})
	}
}

func TestProblemMinima(t *testing.T) {
	for _, name := range ProblemNames() {
		p, _ := LookupProblem(name)
		if p.Minimum == nil {
			continue
		}
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, p.MinValue, p.Func(p.Minimum), 1e-10)
			for _, g := range p.Grad(p.Minimum) {
				assert.InDelta(t, 0, g, 1e-8)
			}
			if p.Dim != 0 {
				assert.Len(t, p.Start, p.Dim)
			}
		})
	}
}

func TestLookupProblem(t *testing.T) {
	_, ok := LookupProblem("no-such-problem")
	assert.False(t, ok)

	names := ProblemNames()
	assert.Equal(t, []string{"beale", "booth", "goldstein-price", "himmelblau", "rosenbrock", "sphere"}, names)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
