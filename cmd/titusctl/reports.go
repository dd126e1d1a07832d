package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"titus/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports [file]",
	Short: "Validate a report definition file and list its pages and sections",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := v.GetString("reports_file")
		if len(args) == 1 {
			path = args[0]
		}
		var (
			catalog *report.Catalog
			err     error
		)
		if path == "" {
			catalog, err = report.Default()
			path = "built-in pages"
		} else {
			catalog, err = report.LoadFile(path)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d pages\n", path, len(catalog.Pages))
		for _, p := range catalog.Pages {
			fmt.Fprintf(out, "  %s  %s\n", p.ID, p.Title)
			for _, s := range p.Sections {
				fmt.Fprintf(out, "    %-24s %s\n", s.ID, s.Kind)
			}
		}
		return nil
	},
}
