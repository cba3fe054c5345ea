package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/qnopt/internal/optimization"
)

func problemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the built-in test problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIM\tSTART\tMIN")
			for _, name := range optimization.ProblemNames() {
				p, _ := optimization.LookupProblem(name)
				dim := "any"
				if p.Dim != 0 {
					dim = fmt.Sprint(p.Dim)
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%g\n", p.Name, dim, p.Start, p.MinValue)
			}
			return w.Flush()
		},
	}
}
