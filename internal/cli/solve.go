package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/optimization/quasinewton"
	"github.com/copyleftdev/qnopt/internal/solve"
)

type solveFlags struct {
	file       string
	output     string
	method     string
	problem    string
	x0         []float64
	gradient   string
	lineSearch string
	memory     int
	gradTol    float64
	stepTol    float64
	funcTol    float64
	maxIter    int
}

type solveOutput struct {
	Method  string               `json:"method" yaml:"method"`
	Problem string               `json:"problem" yaml:"problem"`
	X0      []float64            `json:"x0" yaml:"x0"`
	Result  *optimization.Result `json:"result" yaml:"result"`
}

func solveCmd(g *globalFlags) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Minimize a built-in test problem",
		Long: `Minimize one of the built-in test problems and print the result.

The request is read from a YAML file, from flags, or both; flags win.

	Example problem.yaml:

	method: lbfgs
	problem: rosenbrock
	x0: [-1.2, 1]
	memory: 5
	line_search: hager-zhang
	options:
	  grad_tol: 1.0e-10
	  max_iterations: 500
`,
		Example: `  qnopt solve --problem rosenbrock --method lbfgs
  qnopt solve -f problem.yaml -o yaml
  qnopt solve --problem booth --gradient central -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output != "json" && f.output != "yaml" {
				return fmt.Errorf("unknown output format %q, want json or yaml", f.output)
			}
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			req = req.WithDefaults(solve.Defaults{
				Options: optimization.DefaultOptions(nil),
				Memory:  quasinewton.DefaultMemory,
			})

			res, err := solve.Run(req, g.solverLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), f.output, solveOutput{
				Method:  req.Method,
				Problem: req.Problem,
				X0:      req.X0,
				Result:  res,
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "YAML file describing the request")
	fl.StringVarP(&f.output, "output", "o", "json", "output format: json or yaml")
	fl.StringVarP(&f.method, "method", "m", "", "solver: bfgs, lbfgs or cg (default bfgs)")
	fl.StringVarP(&f.problem, "problem", "p", "", "problem name, see 'qnopt problems'")
	fl.Float64SliceVar(&f.x0, "x0", nil, "starting point (default: the problem's start)")
	fl.StringVar(&f.gradient, "gradient", "", "analytic, forward or central (default analytic)")
	fl.StringVar(&f.lineSearch, "line-search", "", "lbfgs line search: wolfe, hager-zhang or backtracking")
	fl.IntVar(&f.memory, "memory", 0, "lbfgs correction pairs")
	fl.Float64Var(&f.gradTol, "grad-tol", 0, "gradient infinity norm tolerance")
	fl.Float64Var(&f.stepTol, "step-tol", 0, "step infinity norm tolerance")
	fl.Float64Var(&f.funcTol, "func-tol", 0, "function change tolerance")
	fl.IntVar(&f.maxIter, "max-iter", 0, "iteration budget")
	return cmd
}

// request merges the optional request file with the flags that were set.
func (f *solveFlags) request(cmd *cobra.Command) (solve.Request, error) {
	var req solve.Request
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return req, fmt.Errorf("reading request file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil && err != io.EOF {
			return req, fmt.Errorf("parsing %s: %w", f.file, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("method") {
		req.Method = f.method
	}
	if changed("problem") {
		req.Problem = f.problem
	}
	if changed("x0") {
		req.X0 = f.x0
	}
	if changed("gradient") {
		req.Gradient = f.gradient
	}
	if changed("line-search") {
		req.LineSearch = f.lineSearch
	}
	if changed("memory") {
		req.Memory = f.memory
	}
	if changed("grad-tol") {
		req.Options.GradTol = f.gradTol
	}
	if changed("step-tol") {
		req.Options.StepTol = f.stepTol
	}
	if changed("func-tol") {
		req.Options.FuncTol = f.funcTol
	}
	if changed("max-iter") {
		req.Options.MaxIterations = f.maxIter
	}
	return req, nil
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q, want json or yaml", format)
	}
}
