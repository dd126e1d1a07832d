package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"titus/internal/engine"
	"titus/internal/format"
)

var (
	summaryFilters filterFlags
	summaryYear    int
)

var summaryCmd = &cobra.Command{
	Use:   "summary <workbook>",
	Short: "Print the KPI totals and, with --year, the monthly breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd, args[0])
		if err != nil {
			return err
		}
		view, err := summaryFilters.view(d)
		if err != nil {
			return err
		}
		t := view.Apply(d.Table)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Source:      %s (%s)\n", d.Source, d.Fingerprint)
		fmt.Fprintf(out, "Rows:        %s of %s\n", format.Int(t.Len()), format.Int(d.Table.Len()))
		if spec, ok := view.Spec(); ok {
			fmt.Fprintf(out, "Filters:     %s\n", strings.Join(spec.Describe(), "; "))
		}

		s := engine.Summarize(t)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Total sales\t%s\n", format.Money(s.Sales))
		fmt.Fprintf(w, "Total profit\t%s\n", format.Money(s.Profit))
		fmt.Fprintf(w, "Total cost\t%s\n", format.Money(s.Cost))
		fmt.Fprintf(w, "Total weight\t%s\n", format.Number(s.Weight, "kg"))
		fmt.Fprintf(w, "Total volume\t%s\n", format.Number(s.Volume, "CBM"))
		fmt.Fprintf(w, "Shipments\t%s\n", format.Int(s.Shipments))
		fmt.Fprintf(w, "Clients\t%s\n", format.Int(s.Clients))
		if err := w.Flush(); err != nil {
			return err
		}

		if summaryYear == 0 {
			return nil
		}
		months, err := engine.MonthlyMetrics(t, summaryYear)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nMonthly metrics %d\n", summaryYear)
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Month\tSales\t%\tProfit\t%\tCost\t%\tShipments\t%\tClients\t")
		for _, m := range months {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				m.Month.String()[:3],
				format.Number(m.Sales, ""), format.Percent(m.SalesPct),
				format.Number(m.Profit, ""), format.Percent(m.ProfitPct),
				format.Number(m.Cost, ""), format.Percent(m.CostPct),
				format.Int(m.Shipments), format.Percent(m.ShipmentsPct),
				format.Int(m.Clients))
		}
		return w.Flush()
	},
}

func init() {
	summaryFilters.register(summaryCmd)
	summaryCmd.Flags().IntVar(&summaryYear, "year", 0, "also print the monthly breakdown for this year")
}
