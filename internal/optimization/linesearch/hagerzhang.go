package linesearch

import (
	"math"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// HagerZhangSettings configures HagerZhang. Zero fields take defaults.
type HagerZhangSettings struct {
	Delta          float64 // sufficient decrease, 0.1
	Sigma          float64 // curvature, 0.9
	Epsilon        float64 // approximate Wolfe tolerance relative to |φ(0)|, 1e-6
	Theta          float64 // bisection weight, 0.5
	Gamma          float64 // required bracket shrink per secant step, 0.66
	Rho            float64 // bracket expansion factor, 5
	MaxBracketIter int     // 50
	MaxSecantIter  int     // 50
}

// DefaultHagerZhangSettings returns the settings used when nil is passed.
func DefaultHagerZhangSettings() HagerZhangSettings {
	return HagerZhangSettings{
		Delta:          0.1,
		Sigma:          0.9,
		Epsilon:        1e-6,
		Theta:          0.5,
		Gamma:          0.66,
		Rho:            5,
		MaxBracketIter: 50,
		MaxSecantIter:  50,
	}
}

func (s *HagerZhangSettings) withDefaults() HagerZhangSettings {
	out := DefaultHagerZhangSettings()
	if s == nil {
		return out
	}
	if s.Delta != 0 {
		out.Delta = s.Delta
	}
	if s.Sigma != 0 {
		out.Sigma = s.Sigma
	}
	if s.Epsilon != 0 {
		out.Epsilon = s.Epsilon
	}
	if s.Theta != 0 {
		out.Theta = s.Theta
	}
	if s.Gamma != 0 {
		out.Gamma = s.Gamma
	}
	if s.Rho != 0 {
		out.Rho = s.Rho
	}
	if s.MaxBracketIter != 0 {
		out.MaxBracketIter = s.MaxBracketIter
	}
	if s.MaxSecantIter != 0 {
		out.MaxSecantIter = s.MaxSecantIter
	}
	return out
}

// minSecantDenom is the smallest |φ'(b) - φ'(a)| a secant step is taken with.
const minSecantDenom = 1e-30

// hzSearch holds the per call state of a Hager-Zhang search.
type hzSearch struct {
	*lineFunc
	s           HagerZhangSettings
	phi0, dphi0 float64
	epsK        float64
}

// HagerZhang finds a step satisfying either the Wolfe conditions
//
//	φ(α) <= φ(0) + δ·α·φ'(0),  σ·φ'(0) <= φ'(α) <= -σ·φ'(0)
//
// or the approximate Wolfe conditions
//
//	φ(α) <= φ(0) + ε·|φ(0)|,  σ·φ'(0) <= φ'(α) <= (2δ-1)·φ'(0)
//
// which stay reliable next to a minimizer where the exact decrease test is
// lost in rounding. The tolerance ε·|φ(0)| is used literally, so it is zero
// when φ(0) is zero.
//
// The search first grows c by Rho until [a, b] brackets an acceptable
// step, then shrinks the bracket with secant steps, bisecting whenever a
// step fails to shrink it by Gamma.
func HagerZhang(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64, settings *HagerZhangSettings) Result {
	s := settings.withDefaults()
	l := &lineFunc{f: f, grad: grad, x: x, d: d}

	h := &hzSearch{lineFunc: l, s: s, phi0: fx, dphi0: vecops.Dot(gx, d)}
	if !(h.dphi0 < 0) {
		return l.result(0, fx, nil, false)
	}
	h.epsK = s.Epsilon * math.Abs(fx)

	a, b, ok, res := h.bracket()
	if res != nil {
		return *res
	}
	if !ok {
		return l.result(a.alpha, a.phi, a.g, false)
	}
	return h.secant(a, b)
}

func (h *hzSearch) acceptable(alpha, phi, dphi float64) bool {
	if dphi < h.s.Sigma*h.dphi0 {
		return false
	}
	if phi <= h.phi0+h.s.Delta*alpha*h.dphi0 && dphi <= -h.s.Sigma*h.dphi0 {
		return true
	}
	return phi <= h.phi0+h.epsK && dphi <= (2*h.s.Delta-1)*h.dphi0
}

// overshoots reports whether c must become the right end of the bracket.
func (h *hzSearch) overshoots(phi, dphi float64) bool {
	return dphi >= 0 || phi > h.phi0+h.epsK
}

// bracket expands the trial step. It returns either an accepted result,
// a bracket [a, b] with ok set, or the last good point with ok unset.
func (h *hzSearch) bracket() (a, b trial, ok bool, res *Result) {
	a = trial{alpha: 0, phi: h.phi0, dphi: h.dphi0}
	c := 1.0
	for i := 0; i < h.s.MaxBracketIter; i++ {
		phi, dphi, g := h.phiGrad(c)
		if h.acceptable(c, phi, dphi) {
			r := h.result(c, phi, g, true)
			return a, b, false, &r
		}
		cur := trial{alpha: c, phi: phi, dphi: dphi, g: g}
		if h.overshoots(phi, dphi) {
			return a, cur, true, nil
		}
		a = cur
		c *= h.s.Rho
	}
	return a, b, false, nil
}

// secant shrinks [a, b]. Invariant: a does not overshoot and φ'(a) < 0;
// b overshoots.
func (h *hzSearch) secant(a, b trial) Result {
	lastWidth := b.alpha - a.alpha
	for j := 0; j < h.s.MaxSecantIter; j++ {
		width := b.alpha - a.alpha
		if !(width > 0) {
			break
		}

		var c float64
		denom := b.dphi - a.dphi
		if math.Abs(denom) > minSecantDenom {
			c = (a.alpha*b.dphi - b.alpha*a.dphi) / denom
			margin := 1e-14 * width
			c = math.Max(a.alpha+margin, math.Min(c, b.alpha-margin))
		} else {
			c = a.alpha + h.s.Theta*width
		}

		var done *Result
		if a, b, done = h.update(a, b, c); done != nil {
			return *done
		}

		if b.alpha-a.alpha > h.s.Gamma*lastWidth {
			c = a.alpha + h.s.Theta*(b.alpha-a.alpha)
			if a, b, done = h.update(a, b, c); done != nil {
				return *done
			}
		}
		lastWidth = b.alpha - a.alpha
	}
	return h.result(a.alpha, a.phi, a.g, false)
}

// update evaluates c and replaces whichever end of [a, b] it disqualifies.
func (h *hzSearch) update(a, b trial, c float64) (trial, trial, *Result) {
	phi, dphi, g := h.phiGrad(c)
	if h.acceptable(c, phi, dphi) {
		r := h.result(c, phi, g, true)
		return a, b, &r
	}
	t := trial{alpha: c, phi: phi, dphi: dphi, g: g}
	if h.overshoots(phi, dphi) {
		return a, t, nil
	}
	return t, b, nil
}
