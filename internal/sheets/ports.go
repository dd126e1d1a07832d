package sheets

import "context"

// DataSheet is the worksheet holding the shipment table.
const DataSheet = "Data"

// Ports for outbound adapters.
type (
	// RowSource yields the raw cells of the shipment sheet, header row
	// included. Cells are returned as their unformatted text.
	RowSource interface {
		Rows(ctx context.Context) ([][]string, error)
		// Name identifies the source in logs and metrics.
		Name() string
	}
)
