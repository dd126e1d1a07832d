package core

import "strings"

// Field identifies one column of the shipment table. The set is closed:
// selections coming from the UI are resolved with ParseField and anything
// outside it is rejected.
type Field int

const (
	FieldNone Field = iota
	FieldDate
	FieldDestination
	FieldShipmentNo
	FieldClientCode
	FieldClientLevel
	FieldSalesperson
	FieldMark
	FieldCategory1
	FieldCategory2
	FieldDescription
	FieldGoodsType
	FieldTransportType
	FieldLoadingWarehouse
	FieldProfit
	FieldSalesTotal
	FieldCostTotal
	FieldWeight
	FieldCBM
	FieldCartons

	// Derived from FieldDate.
	FieldYear
	FieldMonth

	fieldCount
)

// Kind is the value type a field carries after normalization.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
)

// NotAvailable labels derived date parts of records without a date.
const NotAvailable = "Not Available"

type fieldInfo struct {
	key    string
	header string
	kind   Kind
}

var fields = [fieldCount]fieldInfo{
	FieldNone:             {},
	FieldDate:             {"date", "DATE", KindDate},
	FieldDestination:      {"destination", "Destination", KindText},
	FieldShipmentNo:       {"shipment_no", "Shipment NO.", KindText},
	FieldClientCode:       {"client_code", "Client code", KindText},
	FieldClientLevel:      {"client_level", "Client level", KindText},
	FieldSalesperson:      {"salesperson", "Sales", KindText},
	FieldMark:             {"mark", "Mark", KindText},
	FieldCategory1:        {"category1", "Category1", KindText},
	FieldCategory2:        {"category2", "Category2", KindText},
	FieldDescription:      {"description", "Description in E", KindText},
	FieldGoodsType:        {"goods_type", "goods tpye", KindText},
	FieldTransportType:    {"transport_type", "Type", KindText},
	FieldLoadingWarehouse: {"loading_warehouse", "Loading warehouse", KindText},
	FieldProfit:           {"profit", "Profit", KindNumber},
	FieldSalesTotal:       {"sales_total", "Sales total", KindNumber},
	FieldCostTotal:        {"cost_total", "Cost total", KindNumber},
	FieldWeight:           {"weight", "WEIGHT", KindNumber},
	FieldCBM:              {"cbm", "CBM", KindNumber},
	FieldCartons:          {"cartons", "CTNS", KindNumber},
	FieldYear:             {"year", "Year", KindText},
	FieldMonth:            {"month", "Month", KindText},
}

// SourceFields lists the spreadsheet columns in canonical order.
func SourceFields() []Field {
	out := make([]Field, 0, FieldCartons)
	for f := FieldDate; f <= FieldCartons; f++ {
		out = append(out, f)
	}
	return out
}

// NumericFields lists the columns coerced to numbers.
func NumericFields() []Field {
	return []Field{FieldProfit, FieldSalesTotal, FieldCostTotal, FieldWeight, FieldCBM, FieldCartons}
}

// Valid reports whether f is a member of the enumeration.
func (f Field) Valid() bool { return f > FieldNone && f < fieldCount }

// Derived reports whether f is computed rather than read from the sheet.
func (f Field) Derived() bool { return f == FieldYear || f == FieldMonth }

// Key is the stable identifier used in URLs and configuration.
func (f Field) Key() string {
	if !f.Valid() {
		return ""
	}
	return fields[f].key
}

// Header is the exact column title used by the spreadsheet.
func (f Field) Header() string {
	if !f.Valid() {
		return ""
	}
	return fields[f].header
}

func (f Field) Kind() Kind {
	if !f.Valid() {
		return KindText
	}
	return fields[f].kind
}

func (f Field) String() string {
	if !f.Valid() {
		return "none"
	}
	return fields[f].header
}

// ParseField resolves a header title or a field key. Matching is exact on
// the header and case-insensitive on the key.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for f := FieldDate; f < fieldCount; f++ {
		if fields[f].header == name || strings.EqualFold(fields[f].key, name) {
			return f, nil
		}
	}
	return FieldNone, &UnknownFieldError{Name: name}
}

// MarshalText encodes the field as its header so YAML and JSON carry the
// same names users see.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.Header()), nil
}

func (f *Field) UnmarshalText(b []byte) error {
	parsed, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
