package linesearch

import (
	"math"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// WolfeSettings configures Wolfe. Zero fields take defaults.
type WolfeSettings struct {
	C1       float64 // sufficient decrease, 1e-4
	C2       float64 // curvature, 0.9
	AlphaMax float64 // largest trial step, 1e6
	MaxIter  int     // per phase, 25
}

func (s *WolfeSettings) withDefaults() WolfeSettings {
	out := WolfeSettings{C1: 1e-4, C2: 0.9, AlphaMax: 1e6, MaxIter: 25}
	if s == nil {
		return out
	}
	if s.C1 != 0 {
		out.C1 = s.C1
	}
	if s.C2 != 0 {
		out.C2 = s.C2
	}
	if s.AlphaMax != 0 {
		out.AlphaMax = s.AlphaMax
	}
	if s.MaxIter != 0 {
		out.MaxIter = s.MaxIter
	}
	return out
}

// trial is one evaluated point on the line.
type trial struct {
	alpha, phi, dphi float64
	g                []float64
}

// Wolfe finds a step satisfying the strong Wolfe conditions
//
//	φ(α) <= φ(0) + c1·α·φ'(0)
//	|φ'(α)| <= c2·|φ'(0)|
//
// by doubling a trial step until an interval containing such a step is
// bracketed and then bisecting it (Nocedal & Wright, algorithms 3.5
// and 3.6). A direction that is not a descent direction fails without
// evaluating f.
func Wolfe(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64, settings *WolfeSettings) Result {
	s := settings.withDefaults()
	l := &lineFunc{f: f, grad: grad, x: x, d: d}

	phi0 := fx
	dphi0 := vecops.Dot(gx, d)
	if !(dphi0 < 0) {
		return l.result(0, fx, nil, false)
	}
	sufficient := func(alpha, phi float64) bool {
		return phi <= phi0+s.C1*alpha*dphi0
	}
	curvature := func(dphi float64) bool {
		return math.Abs(dphi) <= -s.C2*dphi0
	}

	prev := trial{alpha: 0, phi: phi0, dphi: dphi0}
	alpha := math.Min(1, s.AlphaMax)

	for i := 0; i < s.MaxIter; i++ {
		phi := l.phi(alpha)
		if !sufficient(alpha, phi) || (i > 0 && phi >= prev.phi) {
			return zoom(l, s, phi0, dphi0, prev, trial{alpha: alpha, phi: phi})
		}

		dphi, g := l.dphi(alpha)
		if curvature(dphi) {
			return l.result(alpha, phi, g, true)
		}
		cur := trial{alpha: alpha, phi: phi, dphi: dphi, g: g}
		if dphi >= 0 {
			return zoom(l, s, phi0, dphi0, cur, prev)
		}

		prev = cur
		if alpha >= s.AlphaMax {
			break
		}
		alpha = math.Min(2*alpha, s.AlphaMax)
	}
	return l.result(prev.alpha, prev.phi, prev.g, false)
}

// zoom bisects the bracket between lo and hi. lo always satisfies
// sufficient decrease and has the lowest φ seen so far; φ'(lo)·(hi-lo) < 0.
//
// When the midpoint is no longer distinct from an endpoint the bracket has
// collapsed, and lo is accepted if it lies past the origin. Running out of
// iterations is a failure.
func zoom(l *lineFunc, s WolfeSettings, phi0, dphi0 float64, lo, hi trial) Result {
	for j := 0; j < s.MaxIter; j++ {
		alpha := (lo.alpha + hi.alpha) / 2
		if alpha == lo.alpha || alpha == hi.alpha {
			return l.result(lo.alpha, lo.phi, lo.g, lo.alpha > 0)
		}
		phi := l.phi(alpha)

		if phi > phi0+s.C1*alpha*dphi0 || phi >= lo.phi {
			hi = trial{alpha: alpha, phi: phi}
			continue
		}

		dphi, g := l.dphi(alpha)
		if math.Abs(dphi) <= -s.C2*dphi0 {
			return l.result(alpha, phi, g, true)
		}
		if dphi*(hi.alpha-lo.alpha) >= 0 {
			hi = lo
		}
		lo = trial{alpha: alpha, phi: phi, dphi: dphi, g: g}
	}
	return l.result(lo.alpha, lo.phi, lo.g, false)
}
