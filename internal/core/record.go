package core

import (
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

type (
	// Date is a calendar date; the zero value means the cell was empty or
	// could not be parsed.
	Date struct {
		time.Time
	}

	// Number is a nullable float.
	Number struct {
		Value float64
		Valid bool
	}

	// Record is one shipment line of the normalized table. Text fields
	// keep the raw cell string and use "" for an unspecified category.
	Record struct {
		Date Date

		Destination      string
		ShipmentNo       string
		ClientCode       string
		ClientLevel      string
		Salesperson      string
		Mark             string
		Category1        string
		Category2        string
		Description      string
		GoodsType        string
		TransportType    string
		LoadingWarehouse string

		Profit     Number
		SalesTotal Number
		CostTotal  Number
		Weight     Number
		CBM        Number
		Cartons    Number
	}
)

// NewDate truncates t to a UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Valid() bool { return !d.IsZero() }

func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.Format(DateLayout)
}

// Num builds a valid Number.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// TextRef returns a pointer to the text field f, or nil when f is not a
// source text column.
func (r *Record) TextRef(f Field) *string {
	switch f {
	case FieldDestination:
		return &r.Destination
	case FieldShipmentNo:
		return &r.ShipmentNo
	case FieldClientCode:
		return &r.ClientCode
	case FieldClientLevel:
		return &r.ClientLevel
	case FieldSalesperson:
		return &r.Salesperson
	case FieldMark:
		return &r.Mark
	case FieldCategory1:
		return &r.Category1
	case FieldCategory2:
		return &r.Category2
	case FieldDescription:
		return &r.Description
	case FieldGoodsType:
		return &r.GoodsType
	case FieldTransportType:
		return &r.TransportType
	case FieldLoadingWarehouse:
		return &r.LoadingWarehouse
	}
	return nil
}

// NumberRef returns a pointer to the numeric field f, or nil.
func (r *Record) NumberRef(f Field) *Number {
	switch f {
	case FieldProfit:
		return &r.Profit
	case FieldSalesTotal:
		return &r.SalesTotal
	case FieldCostTotal:
		return &r.CostTotal
	case FieldWeight:
		return &r.Weight
	case FieldCBM:
		return &r.CBM
	case FieldCartons:
		return &r.Cartons
	}
	return nil
}

// Number returns the numeric value of f. ok is false for nulls and for
// fields that are not numeric.
func (r Record) Number(f Field) (float64, bool) {
	n := r.NumberRef(f)
	if n == nil || !n.Valid {
		return 0, false
	}
	return n.Value, true
}

// Text renders any field as the string used for grouping, set membership
// and export. Null dates and numbers render as "".
func (r Record) Text(f Field) string {
	if p := r.TextRef(f); p != nil {
		return *p
	}
	if n := r.NumberRef(f); n != nil {
		return n.String()
	}
	switch f {
	case FieldDate:
		return r.Date.String()
	case FieldYear:
		if !r.Date.Valid() {
			return NotAvailable
		}
		return strconv.Itoa(r.Date.Year())
	case FieldMonth:
		if !r.Date.Valid() {
			return NotAvailable
		}
		return r.Date.Month().String()
	}
	return ""
}

// Present reports whether f holds a non-null value. Text fields are never
// null.
func (r Record) Present(f Field) bool {
	switch f.Kind() {
	case KindNumber:
		_, ok := r.Number(f)
		return ok
	case KindDate:
		return r.Date.Valid()
	}
	return true
}
