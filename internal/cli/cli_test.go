package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/qnopt/internal/optimization"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decodeJSON(t *testing.T, s string) solveOutput {
	t.Helper()
	var out struct {
		Method  string    `json:"method"`
		Problem string    `json:"problem"`
		X0      []float64 `json:"x0"`
		Result  struct {
			X          []float64 `json:"x"`
			Fun        float64   `json:"fun"`
			Iterations int       `json:"iterations"`
			Converged  bool      `json:"converged"`
			Reason     string    `json:"reason"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)
	return solveOutput{
		Method:  out.Method,
		Problem: out.Problem,
		X0:      out.X0,
		Result: &optimization.Result{
			X:          out.Result.X,
			Fun:        out.Result.Fun,
			Iterations: out.Result.Iterations,
			Converged:  out.Result.Converged,
			Message:    out.Result.Reason,
		},
	}
}

func TestProblemsCommand(t *testing.T) {
	stdout, _, err := execute(t, "problems")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, len(optimization.ProblemNames())+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	for i, name := range optimization.ProblemNames() {
		assert.True(t, strings.HasPrefix(lines[i+1], name), lines[i+1])
	}
	assert.Contains(t, stdout, "any")
}

func TestSolveFromFlags(t *testing.T) {
	tests := map[string]struct {
		args   []string
		method string
		want   []float64
	}{
		"default method": {
			args:   []string{"--problem", "booth"},
			method: "bfgs",
			want:   []float64{1, 3},
		},
		"lbfgs with hager-zhang": {
			args:   []string{"-p", "rosenbrock", "-m", "LBFGS", "--line-search", "hager-zhang", "--memory", "5"},
			method: "lbfgs",
			want:   []float64{1, 1},
		},
		"cg from custom start": {
			args:   []string{"-p", "booth", "-m", "cg", "--x0", "0,0", "--max-iter", "500"},
			method: "cg",
			want:   []float64{1, 3},
		},
		"central differences": {
			args:   []string{"-p", "booth", "--gradient", "central", "--grad-tol", "1e-6"},
			method: "bfgs",
			want:   []float64{1, 3},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			stdout, _, err := execute(t, append([]string{"solve"}, tt.args...)...)
			require.NoError(t, err)

			out := decodeJSON(t, stdout)
			assert.Equal(t, tt.method, out.Method)
			assert.True(t, out.Result.Converged, "reason %s", out.Result.Message)
			assert.InDeltaSlice(t, tt.want, out.Result.X, 1e-3)
		})
	}
}

func TestSolveUsesCatalogStart(t *testing.T) {
	stdout, _, err := execute(t, "solve", "-p", "rosenbrock")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.2, 1}, decodeJSON(t, stdout).X0)
}

func TestSolveFromFile(t *testing.T) {
	path := writeFile(t, `
method: cg
problem: booth
x0: [0, 0]
options:
  grad_tol: 1.0e-10
  max_iterations: 200
`)

	t.Run("file only", func(t *testing.T) {
		stdout, _, err := execute(t, "solve", "-f", path)
		require.NoError(t, err)
		out := decodeJSON(t, stdout)
		assert.Equal(t, "cg", out.Method)
		assert.Equal(t, []float64{0, 0}, out.X0)
		assert.InDeltaSlice(t, []float64{1, 3}, out.Result.X, 1e-6)
	})

	t.Run("flags override file", func(t *testing.T) {
		stdout, _, err := execute(t, "solve", "-f", path, "--method", "bfgs", "--x0", "2,2")
		require.NoError(t, err)
		out := decodeJSON(t, stdout)
		assert.Equal(t, "bfgs", out.Method)
		assert.Equal(t, []float64{2, 2}, out.X0)
	})
}

func TestSolveYAMLOutput(t *testing.T) {
	stdout, _, err := execute(t, "solve", "-p", "sphere", "-o", "yaml")
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "bfgs", out["method"])
	result := out["result"].(map[string]interface{})
	assert.Equal(t, true, result["converged"])
	assert.Equal(t, "gradient", result["reason"])
	assert.Equal(t, 1, result["iterations"])
}

func TestSolveErrors(t *testing.T) {
	badField := writeFile(t, "problem: sphere\nbounds: [0, 1]\n")

	tests := map[string]struct {
		args []string
		want string
	}{
		"missing problem":    {[]string{"solve"}, "problem is required"},
		"unknown problem":    {[]string{"solve", "-p", "ackley"}, `unknown problem "ackley"`},
		"unknown method":     {[]string{"solve", "-p", "sphere", "-m", "newton"}, `unknown method "newton"`},
		"line search on cg":  {[]string{"solve", "-p", "sphere", "-m", "cg", "--line-search", "wolfe"}, "line_search only applies"},
		"bad dimension":      {[]string{"solve", "-p", "booth", "--x0", "1,2,3"}, "dimensional x0"},
		"negative tolerance": {[]string{"solve", "-p", "sphere", "--grad-tol", "-1"}, "grad_tol"},
		"unknown yaml field": {[]string{"solve", "-f", badField}, "bounds"},
		"missing file":       {[]string{"solve", "-f", filepath.Join(t.TempDir(), "nope.yaml")}, "reading request file"},
		"bad output format":  {[]string{"solve", "-p", "sphere", "-o", "xml"}, "unknown output format"},
		"positional args":    {[]string{"solve", "sphere"}, "unknown command"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVerboseTracesToStderr(t *testing.T) {
	stdout, stderr, err := execute(t, "solve", "-p", "sphere", "-v")
	require.NoError(t, err)
	assert.NotEmpty(t, stdout)
	assert.Contains(t, stderr, "Starting BFGS")

	_, stderr, err = execute(t, "solve", "-p", "sphere")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = execute(t, "solve", "-p", "sphere", "-v", "--log-json")
	require.NoError(t, err)
	first := strings.SplitN(strings.TrimSpace(stderr), "\n", 2)[0]
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(first), &entry), first)
}
