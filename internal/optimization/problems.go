package optimization

import (
	"math"
	"sort"
)

// Problem is a test objective with an analytic gradient and a known minimum.
type Problem struct {
	Name     string
	Dim      int // 0 means any dimension
	Func     ObjectiveFunc
	Grad     GradientFunc
	Start    []float64
	Minimum  []float64 // one known minimizer, nil when dimension dependent
	MinValue float64
}

var problems = map[string]Problem{
	"sphere": {
		Name: "sphere", Func: Sphere, Grad: SphereGrad,
		Start: []float64{5, 5}, MinValue: 0,
	},
	"rosenbrock": {
		Name: "rosenbrock", Dim: 2, Func: Rosenbrock, Grad: RosenbrockGrad,
		Start: []float64{-1.2, 1}, Minimum: []float64{1, 1}, MinValue: 0,
	},
	"booth": {
		Name: "booth", Dim: 2, Func: Booth, Grad: BoothGrad,
		Start: []float64{0, 0}, Minimum: []float64{1, 3}, MinValue: 0,
	},
	"beale": {
		Name: "beale", Dim: 2, Func: Beale, Grad: BealeGrad,
		Start: []float64{1, 1}, Minimum: []float64{3, 0.5}, MinValue: 0,
	},
	"himmelblau": {
		Name: "himmelblau", Dim: 2, Func: Himmelblau, Grad: HimmelblauGrad,
		Start: []float64{0, 0}, Minimum: []float64{3, 2}, MinValue: 0,
	},
	"goldstein-price": {
		Name: "goldstein-price", Dim: 2, Func: GoldsteinPrice, Grad: GoldsteinPriceGrad,
		Start: []float64{0, -0.5}, Minimum: []float64{0, -1}, MinValue: 3,
	},
}

// LookupProblem returns the named test problem.
func LookupProblem(name string) (Problem, bool) {
	p, ok := problems[name]
	return p, ok
}

// ProblemNames lists the catalog in sorted order.
func ProblemNames() []string {
	names := make([]string, 0, len(problems))
	for name := range problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sphere is f(x) = Σ xᵢ².
func Sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func SphereGrad(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g
}

// Rosenbrock is the two dimensional banana function (1-x)² + 100(y-x²)².
func Rosenbrock(x []float64) float64 {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b
}

func RosenbrockGrad(x []float64) []float64 {
	b := x[1] - x[0]*x[0]
	return []float64{
		-2*(1-x[0]) - 400*x[0]*b,
		200 * b,
	}
}

// Booth is (x + 2y - 7)² + (2x + y - 5)².
func Booth(x []float64) float64 {
	t1 := x[0] + 2*x[1] - 7
	t2 := 2*x[0] + x[1] - 5
	return t1*t1 + t2*t2
}

func BoothGrad(x []float64) []float64 {
	t1 := x[0] + 2*x[1] - 7
	t2 := 2*x[0] + x[1] - 5
	return []float64{2*t1 + 4*t2, 4*t1 + 2*t2}
}

func Beale(x []float64) float64 {
	t1 := 1.5 - x[0] + x[0]*x[1]
	t2 := 2.25 - x[0] + x[0]*x[1]*x[1]
	t3 := 2.625 - x[0] + x[0]*x[1]*x[1]*x[1]
	return t1*t1 + t2*t2 + t3*t3
}

func BealeGrad(x []float64) []float64 {
	y := x[1]
	t1 := 1.5 - x[0] + x[0]*y
	t2 := 2.25 - x[0] + x[0]*y*y
	t3 := 2.625 - x[0] + x[0]*y*y*y
	return []float64{
		2*t1*(y-1) + 2*t2*(y*y-1) + 2*t3*(y*y*y-1),
		2*t1*x[0] + 2*t2*2*x[0]*y + 2*t3*3*x[0]*y*y,
	}
}

// Himmelblau has four global minima; (3, 2) is the one reported.
func Himmelblau(x []float64) float64 {
	t1 := x[0]*x[0] + x[1] - 11
	t2 := x[0] + x[1]*x[1] - 7
	return t1*t1 + t2*t2
}

func HimmelblauGrad(x []float64) []float64 {
	t1 := x[0]*x[0] + x[1] - 11
	t2 := x[0] + x[1]*x[1] - 7
	return []float64{4*x[0]*t1 + 2*t2, 2*t1 + 4*x[1]*t2}
}

func GoldsteinPrice(x []float64) float64 {
	x0, x1 := x[0], x[1]
	a := 1 + math.Pow(x0+x1+1, 2)*(19-14*x0+3*x0*x0-14*x1+6*x0*x1+3*x1*x1)
	b := 30 + math.Pow(2*x0-3*x1, 2)*(18-32*x0+12*x0*x0+48*x1-36*x0*x1+27*x1*x1)
	return a * b
}

func GoldsteinPriceGrad(x []float64) []float64 {
	x0, x1 := x[0], x[1]

	t1 := x0 + x1 + 1
	p1 := 19 - 14*x0 + 3*x0*x0 - 14*x1 + 6*x0*x1 + 3*x1*x1
	a := 1 + t1*t1*p1
	dp1 := -14 + 6*x0 + 6*x1 // same for both coordinates
	da0 := 2*t1*p1 + t1*t1*dp1
	da1 := 2*t1*p1 + t1*t1*dp1

	t2 := 2*x0 - 3*x1
	p2 := 18 - 32*x0 + 12*x0*x0 + 48*x1 - 36*x0*x1 + 27*x1*x1
	b := 30 + t2*t2*p2
	db0 := 4*t2*p2 + t2*t2*(-32+24*x0-36*x1)
	db1 := -6*t2*p2 + t2*t2*(48-36*x0+54*x1)

	return []float64{da0*b + a*db0, da1*b + a*db1}
}
