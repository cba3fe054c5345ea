// Package cli implements the qnopt command line tool.
package cli

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/logging"
)

type globalFlags struct {
	verbose bool
	logJSON bool
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "qnopt",
		Short:         "qnopt runs quasi-Newton solvers on the built-in test problems.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "trace solver iterations to stderr")
	cmd.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "emit traces as JSON instead of text")

	cmd.AddCommand(
		solveCmd(g),
		problemsCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return RootCmd().Execute()
}

// solverLogger returns a no-op logger unless --verbose was given.
func (g *globalFlags) solverLogger(w io.Writer) *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	format := logging.TextFormat
	if g.logJSON {
		format = logging.JSONFormat
	}
	return logging.NewZapLogger(logging.New(logging.DebugLevel, w).WithFormat(format))
}
