package http

import (
	"testing"

	"titus/internal/core"
	"titus/internal/engine"
	"titus/internal/services"
)

func TestBuildSidebar(t *testing.T) {
	tbl := core.NewTable(
		[]core.Field{core.FieldDestination, core.FieldShipmentNo, core.FieldDescription, core.FieldProfit},
		[]core.Record{
			{Destination: "Lagos", ShipmentNo: "S-1", Description: "Rice", Profit: core.Num(10)},
			{Destination: "Accra", ShipmentNo: "S-2", Description: "Nails", Profit: core.Num(20)},
		},
	)
	d := &services.Dataset{Table: tbl, Source: "test"}
	view := engine.Filtered(engine.FilterSpec{core.FieldShipmentNo: engine.In("S-2")}).WithPreset(engine.PresetLast30)

	sv := buildSidebar(d, view, false, false, 25)

	sets := map[core.Field][]option{}
	for _, sf := range sv.Sets {
		sets[sf.Field] = sf.Options
	}
	for _, f := range []core.Field{core.FieldDestination, core.FieldShipmentNo, core.FieldDescription} {
		if len(sets[f]) != 2 {
			t.Errorf("%s options = %v", f.Header(), sets[f])
		}
	}
	if opts := sets[core.FieldShipmentNo]; len(opts) == 2 && (opts[0].Selected || !opts[1].Selected) {
		t.Errorf("Shipment NO. selection = %v", opts)
	}
	if sv.Rows != 1 || sv.Total != 2 {
		t.Errorf("rows = %d of %d", sv.Rows, sv.Total)
	}
	if sv.DatePreset != "last30" {
		t.Errorf("DatePreset = %q", sv.DatePreset)
	}

	if sv := buildSidebar(d, engine.Unfiltered(), false, false, 25); sv.DatePreset != "custom" {
		t.Errorf("unfiltered DatePreset = %q", sv.DatePreset)
	}
}
