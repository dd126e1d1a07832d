package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"titus/internal/core"
)

type (
	// Summary holds the KPI tiles. Money totals are decimals so the
	// displayed cents do not drift with float accumulation.
	Summary struct {
		Sales     decimal.Decimal
		Profit    decimal.Decimal
		Cost      decimal.Decimal
		Weight    float64
		Volume    float64
		Shipments int
		Clients   int
	}

	// MonthRow is one month of MonthlyMetrics. Each *Pct is the month's
	// share of the yearly total, zero when that total is zero.
	MonthRow struct {
		Month        time.Month
		Sales        float64
		SalesPct     float64
		Profit       float64
		ProfitPct    float64
		Cost         float64
		CostPct      float64
		Weight       float64
		WeightPct    float64
		Volume       float64
		VolumePct    float64
		Shipments    int
		ShipmentsPct float64
		Clients      int
	}
)

// Summarize computes KPI totals over t. Shipments counts rows; Clients
// counts distinct client codes.
func Summarize(t *core.Table) Summary {
	var s Summary
	clients := make(map[string]struct{})
	for _, r := range t.Records {
		if v, ok := r.Number(core.FieldSalesTotal); ok {
			s.Sales = s.Sales.Add(decimal.NewFromFloat(v))
		}
		if v, ok := r.Number(core.FieldProfit); ok {
			s.Profit = s.Profit.Add(decimal.NewFromFloat(v))
		}
		if v, ok := r.Number(core.FieldCostTotal); ok {
			s.Cost = s.Cost.Add(decimal.NewFromFloat(v))
		}
		if v, ok := r.Number(core.FieldWeight); ok {
			s.Weight += v
		}
		if v, ok := r.Number(core.FieldCBM); ok {
			s.Volume += v
		}
		if t.Has(core.FieldClientCode) {
			clients[r.ClientCode] = struct{}{}
		}
	}
	s.Shipments = t.Len()
	s.Clients = len(clients)
	return s
}

// Years lists the distinct years present in DATE, ascending.
func Years(t *core.Table) []int {
	seen := make(map[int]struct{})
	for _, r := range t.Records {
		if r.Date.Valid() {
			seen[r.Date.Year()] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// MonthlyMetrics aggregates the rows dated in year by calendar month, in
// month order. Months without rows are omitted.
func MonthlyMetrics(t *core.Table, year int) ([]MonthRow, error) {
	if !t.Has(core.FieldDate) {
		return nil, &core.UnknownFieldError{Name: core.FieldDate.String(), Role: "date"}
	}

	byMonth := make(map[time.Month]*MonthRow)
	clients := make(map[time.Month]map[string]struct{})
	hasClients := t.Has(core.FieldClientCode)
	for _, r := range t.Records {
		if !r.Date.Valid() || r.Date.Year() != year {
			continue
		}
		m := r.Date.Month()
		row, ok := byMonth[m]
		if !ok {
			row = &MonthRow{Month: m}
			byMonth[m] = row
			clients[m] = make(map[string]struct{})
		}
		row.Sales += value(r, core.FieldSalesTotal)
		row.Profit += value(r, core.FieldProfit)
		row.Cost += value(r, core.FieldCostTotal)
		row.Weight += value(r, core.FieldWeight)
		row.Volume += value(r, core.FieldCBM)
		row.Shipments++
		if hasClients {
			clients[m][r.ClientCode] = struct{}{}
		}
	}

	out := make([]MonthRow, 0, len(byMonth))
	var total MonthRow
	for m := time.January; m <= time.December; m++ {
		row, ok := byMonth[m]
		if !ok {
			continue
		}
		row.Clients = len(clients[m])
		total.Sales += row.Sales
		total.Profit += row.Profit
		total.Cost += row.Cost
		total.Weight += row.Weight
		total.Volume += row.Volume
		total.Shipments += row.Shipments
		out = append(out, *row)
	}
	for i := range out {
		row := &out[i]
		row.SalesPct = share(row.Sales, total.Sales)
		row.ProfitPct = share(row.Profit, total.Profit)
		row.CostPct = share(row.Cost, total.Cost)
		row.WeightPct = share(row.Weight, total.Weight)
		row.VolumePct = share(row.Volume, total.Volume)
		row.ShipmentsPct = share(float64(row.Shipments), float64(total.Shipments))
	}
	return out, nil
}

func value(r core.Record, f core.Field) float64 {
	v, _ := r.Number(f)
	return v
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
