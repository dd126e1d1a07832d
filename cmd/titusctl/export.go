package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"titus/internal/export"
)

var (
	exportFilters filterFlags
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export <workbook>",
	Short: "Write the filtered rows as CSV, the same file the dashboard downloads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd, args[0])
		if err != nil {
			return err
		}
		view, err := exportFilters.view(d)
		if err != nil {
			return err
		}
		t := view.Apply(d.Table)

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := export.WriteCSV(w, t); err != nil {
			return err
		}
		if exportOutput != "" && exportOutput != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", t.Len(), exportOutput)
		}
		return nil
	},
}

func init() {
	exportFilters.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, for example "+export.Filename+" (default stdout)")
}
