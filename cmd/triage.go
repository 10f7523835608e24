package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/espasatel/espasatel/internal/triage"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Print the accident checklist for a set of answers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var a triage.Answers
		a.Injuries, _ = cmd.Flags().GetString("injuries")
		a.Vehicles, _ = cmd.Flags().GetString("vehicles")
		a.Insured, _ = cmd.Flags().GetString("insured")
		a.Disputed, _ = cmd.Flags().GetString("disputed")

		facts, err := a.Facts()
		if err != nil {
			return err
		}
		formatTriage(os.Stdout, triage.Classify(facts))
		return nil
	},
}

func formatTriage(out io.Writer, r triage.Result) {
	if r.SimplifiedProcedure {
		_, _ = fmt.Fprintln(out, "Европротокол: можно оформить без ГИБДД")
	} else {
		_, _ = fmt.Fprintln(out, "Требуется ГИБДД")
	}
	_, _ = fmt.Fprintln(out)
	for _, s := range r.Steps {
		_, _ = fmt.Fprintf(out, "%d. [%s] %s\n   %s\n", s.Order, s.Category, s.Title, s.Detail)
	}
}

func init() {
	triageCmd.Flags().String("injuries", "", "anyone hurt: yes | no")
	triageCmd.Flags().String("vehicles", "", "vehicles involved: two | more")
	triageCmd.Flags().String("insured", "", "every driver has OSAGO: yes | no")
	triageCmd.Flags().String("disputed", "", "circumstances disputed: yes | no")
	for _, f := range []string{"injuries", "vehicles", "insured", "disputed"} {
		_ = triageCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(triageCmd)
}
