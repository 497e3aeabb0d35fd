package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListingOrder_Clause(t *testing.T) {
	tests := []struct {
		name      string
		order     listingOrder
		column    string
		direction string
		expected  string
	}{
		{"defaults to newest shipments first", shipmentOrder, "", "", "created_at DESC, reference_number DESC"},
		{"shipments by stage", shipmentOrder, "current_stage", "asc", "current_stage ASC, reference_number ASC"},
		{"direction is case insensitive", shipmentOrder, "route", " ASC ", "route ASC, reference_number ASC"},
		{"tie-break column is not repeated", shipmentOrder, "reference_number", "asc", "reference_number ASC"},
		{"invoices by due date", invoiceOrder, "due_date", "asc", "due_date ASC, invoice_number ASC"},
		{"invoices by outstanding foreign balance", invoiceOrder, " remaining_foreign ", "desc", "remaining_foreign DESC, invoice_number DESC"},
		{"unknown direction falls back to DESC", invoiceOrder, "invoice_number", "sideways", "invoice_number DESC"},
		{"column from the other listing is refused", invoiceOrder, "current_stage", "asc", "created_at ASC, invoice_number ASC"},
		{"tenant column is never sortable", shipmentOrder, "tenant_id", "asc", "created_at ASC, reference_number ASC"},
		{"injection attempt falls back", invoiceOrder, "status; DROP TABLE invoices;--", "asc", "created_at ASC, invoice_number ASC"},
		{"injection in direction falls back", shipmentOrder, "status", "ASC; DROP TABLE shipments;--", "status DESC, reference_number DESC"},
		{"column names are case sensitive", invoiceOrder, "DUE_DATE", "asc", "created_at ASC, invoice_number ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.order.clause(tt.column, tt.direction))
		})
	}
}
