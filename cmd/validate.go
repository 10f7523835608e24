package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, the price catalog and the advisor graph",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode := "offline"
		if serve, _ := cmd.Flags().GetBool("serve"); serve {
			mode = "serve"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		comps, err := loadComponents(cfg)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "catalog: %d providers\n", len(comps.catalog.Providers()))
		_, _ = fmt.Fprintf(os.Stdout, "advisor: %d results, %d paths\n", len(comps.graph.Results()), len(comps.graph.Paths()))
		_, _ = fmt.Fprintln(os.Stdout, "ok")
		return nil
	},
}

func init() {
	validateCmd.Flags().Bool("serve", false, "also require the settings the serve command needs")
	rootCmd.AddCommand(validateCmd)
}
