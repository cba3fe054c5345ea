// Package linesearch implements the step-size searches used by the
// gradient based solvers: backtracking (Armijo), strong Wolfe
// (bracket and zoom) and Hager-Zhang (approximate Wolfe).
//
// Every search takes the objective, the current point x, a descent
// direction d, and the already evaluated f(x) and ∇f(x). None of them
// modify x, d or gx.
package linesearch

import (
	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/vecops"
)

// Result is the outcome of one line search.
type Result struct {
	Alpha float64
	FNew  float64
	// GNew is the gradient at x + Alpha·d. Only the gradient aware
	// searches fill it, and only when it was evaluated at Alpha.
	GNew          []float64
	FunctionCalls int
	GradientCalls int
	Success       bool
}

// Kind names a line search algorithm.
type Kind int

const (
	KindWolfe Kind = iota
	KindHagerZhang
	KindBacktracking
)

func (k Kind) String() string {
	switch k {
	case KindWolfe:
		return "wolfe"
	case KindHagerZhang:
		return "hager-zhang"
	case KindBacktracking:
		return "backtracking"
	}
	return "unknown"
}

// ParseKind maps a name to a Kind; empty selects KindWolfe.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "wolfe", "strong-wolfe":
		return KindWolfe, true
	case "hager-zhang", "hz":
		return KindHagerZhang, true
	case "backtracking", "armijo":
		return KindBacktracking, true
	}
	return KindWolfe, false
}

// Searcher is a line search with fixed settings. Searches that never
// evaluate the gradient ignore grad and leave Result.GNew nil.
type Searcher func(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64) Result

// NewSearcher returns the default-configured search of kind k. Unknown
// kinds select Wolfe.
func NewSearcher(k Kind) Searcher {
	switch k {
	case KindHagerZhang:
		return func(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64) Result {
			return HagerZhang(f, grad, x, d, fx, gx, nil)
		}
	case KindBacktracking:
		return func(f optimization.ObjectiveFunc, _ optimization.GradientFunc, x, d []float64, fx float64, gx []float64) Result {
			return Backtracking(f, x, d, fx, gx, nil)
		}
	}
	return func(f optimization.ObjectiveFunc, grad optimization.GradientFunc, x, d []float64, fx float64, gx []float64) Result {
		return Wolfe(f, grad, x, d, fx, gx, nil)
	}
}

// lineFunc evaluates φ(α) = f(x + α·d) and φ'(α) = ∇f(x + α·d)·d and
// counts the calls it makes.
type lineFunc struct {
	f    optimization.ObjectiveFunc
	grad optimization.GradientFunc
	x, d []float64

	fCalls, gCalls int
}

func (l *lineFunc) phi(alpha float64) float64 {
	l.fCalls++
	return l.f(vecops.AddScaled(l.x, l.d, alpha))
}

// phiGrad evaluates both φ(α) and φ'(α), returning the full gradient too.
func (l *lineFunc) phiGrad(alpha float64) (float64, float64, []float64) {
	xa := vecops.AddScaled(l.x, l.d, alpha)
	l.fCalls++
	phi := l.f(xa)
	l.gCalls++
	g := l.grad(xa)
	return phi, vecops.Dot(g, l.d), g
}

// dphi evaluates φ'(α) only.
func (l *lineFunc) dphi(alpha float64) (float64, []float64) {
	l.gCalls++
	g := l.grad(vecops.AddScaled(l.x, l.d, alpha))
	return vecops.Dot(g, l.d), g
}

func (l *lineFunc) result(alpha, phi float64, g []float64, ok bool) Result {
	return Result{
		Alpha:         alpha,
		FNew:          phi,
		GNew:          g,
		FunctionCalls: l.fCalls,
		GradientCalls: l.gCalls,
		Success:       ok,
	}
}
