package quasinewton

import (
	"gonum.org/v1/gonum/floats"
)

// history is a fixed capacity ring of correction pairs backed by two flat
// arenas of m·n floats. Pushing into a full ring overwrites the oldest pair.
type history struct {
	n, m  int
	s, y  []float64
	rho   []float64
	head  int // slot the next pair is written to
	count int
	gamma float64 // (y·s)/(y·y) of the newest pair
}

func newHistory(n, m int) *history {
	return &history{
		n:     n,
		m:     m,
		s:     make([]float64, m*n),
		y:     make([]float64, m*n),
		rho:   make([]float64, m),
		gamma: 1,
	}
}

func (h *history) len() int { return h.count }

// slot returns the arena index of the i-th pair, 0 being the oldest.
func (h *history) slot(i int) int {
	return (h.head - h.count + i + h.m) % h.m
}

func (h *history) sAt(k int) []float64 { return h.s[k*h.n : (k+1)*h.n] }
func (h *history) yAt(k int) []float64 { return h.y[k*h.n : (k+1)*h.n] }

func (h *history) push(s, y []float64, ys float64) {
	k := h.head
	copy(h.sAt(k), s)
	copy(h.yAt(k), y)
	h.rho[k] = 1 / ys
	h.gamma = ys / floats.Dot(y, y)

	h.head = (h.head + 1) % h.m
	if h.count < h.m {
		h.count++
	}
}

// direction computes -H·g with the two-loop recursion, H₀ = γI.
func (h *history) direction(g []float64) []float64 {
	q := make([]float64, len(g))
	if h.count == 0 {
		floats.ScaleTo(q, -1, g)
		return q
	}
	copy(q, g)

	alpha := make([]float64, h.count)
	for i := h.count - 1; i >= 0; i-- {
		k := h.slot(i)
		alpha[i] = h.rho[k] * floats.Dot(h.sAt(k), q)
		floats.AddScaled(q, -alpha[i], h.yAt(k))
	}

	floats.Scale(h.gamma, q)

	for i := 0; i < h.count; i++ {
		k := h.slot(i)
		beta := h.rho[k] * floats.Dot(h.yAt(k), q)
		floats.AddScaled(q, alpha[i]-beta, h.sAt(k))
	}

	floats.Scale(-1, q)
	return q
}

func (h *history) update(s, y []float64, ys float64) {
	h.push(s, y, ys)
}
