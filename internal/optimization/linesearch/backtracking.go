package linesearch

import (
	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// BacktrackingSettings configures Backtracking. Zero fields take defaults.
type BacktrackingSettings struct {
	InitialAlpha float64 // 1.0
	C1           float64 // sufficient decrease constant, 1e-4
	Rho          float64 // contraction factor, 0.5
	MaxIter      int     // 20
}

func (s *BacktrackingSettings) withDefaults() BacktrackingSettings {
	out := BacktrackingSettings{InitialAlpha: 1, C1: 1e-4, Rho: 0.5, MaxIter: 20}
	if s == nil {
		return out
	}
	if s.InitialAlpha != 0 {
		out.InitialAlpha = s.InitialAlpha
	}
	if s.C1 != 0 {
		out.C1 = s.C1
	}
	if s.Rho != 0 {
		out.Rho = s.Rho
	}
	if s.MaxIter != 0 {
		out.MaxIter = s.MaxIter
	}
	return out
}

// Backtracking shrinks α geometrically from InitialAlpha until the Armijo
// condition f(x+αd) <= fx + c1·α·(gx·d) holds. It never evaluates the
// gradient, so GNew is always nil. On exhaustion the last tried α is
// returned with Success=false.
func Backtracking(f optimization.ObjectiveFunc, x, d []float64, fx float64, gx []float64, settings *BacktrackingSettings) Result {
	s := settings.withDefaults()
	l := lineFunc{f: f, x: x, d: d}

	slope := vecops.Dot(gx, d)
	alpha := s.InitialAlpha
	lastAlpha, lastPhi := alpha, fx

	for i := 0; i < s.MaxIter; i++ {
		phi := l.phi(alpha)
		if phi <= fx+s.C1*alpha*slope {
			return l.result(alpha, phi, nil, true)
		}
		lastAlpha, lastPhi = alpha, phi
		alpha *= s.Rho
	}
	return l.result(lastAlpha, lastPhi, nil, false)
}
