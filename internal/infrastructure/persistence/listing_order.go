package persistence

import "strings"

// listingOrder whitelists the columns a listing may be sorted by. Anything
// else falls back, so order_by never reaches SQL unchecked. Rows equal on the
// sort column are ordered by the unique tie-break column so consecutive pages
// neither overlap nor skip rows.
type listingOrder struct {
	columns  map[string]bool
	fallback string
	tieBreak string
}

var (
	shipmentOrder = listingOrder{
		columns: columnSet("created_at", "updated_at", "reference_number", "route",
			"current_stage", "status", "last_sequence"),
		fallback: "created_at",
		tieBreak: "reference_number",
	}
	invoiceOrder = listingOrder{
		columns: columnSet("created_at", "updated_at", "invoice_number", "status", "due_date",
			"issued_at", "settled_at", "home_total", "remaining_home", "remaining_foreign"),
		fallback: "created_at",
		tieBreak: "invoice_number",
	}
)

func columnSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// clause returns the ORDER BY for the requested column and direction.
// Direction defaults to DESC, so the newest bookings and invoices come first.
func (o listingOrder) clause(column, direction string) string {
	column = strings.TrimSpace(column)
	if !o.columns[column] {
		column = o.fallback
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(direction), "asc") {
		dir = "ASC"
	}
	if column == o.tieBreak {
		return column + " " + dir
	}
	return column + " " + dir + ", " + o.tieBreak + " " + dir
}
