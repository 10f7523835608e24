package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/espasatel/espasatel/internal/advisor"
)

var adviseCmd = &cobra.Command{
	Use:   "advise [answer...]",
	Short: "Walk the insurance recommendation graph",
	Long: "Answers are option values in order, starting at the first question. " +
		"With --paths every answer path and its result is listed instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := loadComponents(cfg)
		if err != nil {
			return err
		}

		if paths, _ := cmd.Flags().GetBool("paths"); paths {
			formatPaths(os.Stdout, comps.graph.Paths())
			return nil
		}

		res, path, err := comps.graph.Walk(args...)
		if err != nil {
			if q, ok := lastQuestion(comps.graph, path); ok {
				formatQuestion(os.Stderr, q)
			}
			return err
		}
		formatResult(os.Stdout, res, path)
		return nil
	},
}

func lastQuestion(g *advisor.Graph, path []advisor.NodeID) (*advisor.Question, bool) {
	if len(path) == 0 {
		return nil, false
	}
	n, err := g.Resolve(path[len(path)-1])
	if err != nil {
		return nil, false
	}
	q, ok := n.(*advisor.Question)
	return q, ok
}

func formatQuestion(out io.Writer, q *advisor.Question) {
	_, _ = fmt.Fprintln(out, q.Text)
	for _, o := range q.Options {
		_, _ = fmt.Fprintf(out, "  %-10s %s\n", o.Value, o.Label)
	}
}

func formatResult(out io.Writer, r *advisor.Result, path []advisor.NodeID) {
	ids := make([]string, len(path))
	for i, id := range path {
		ids[i] = string(id)
	}
	_, _ = fmt.Fprintf(out, "%s (%s)\n%s\n\npath: %s\n", r.Title, r.Product, r.Rationale, strings.Join(ids, " → "))
}

func formatPaths(out io.Writer, paths []advisor.Path) {
	for _, p := range paths {
		_, _ = fmt.Fprintf(out, "%-28s %s\n", strings.Join(p.Answers, " "), p.Result)
	}
}

func init() {
	adviseCmd.Flags().Bool("paths", false, "list every answer path instead of walking one")
	rootCmd.AddCommand(adviseCmd)
}
