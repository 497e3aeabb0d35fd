package router

import (
	"net/http"

	"github.com/freightdesk/backend/internal/interfaces/http/handler"
)

// ShipmentRoutes registers booking and OTIF progress endpoints
func ShipmentRoutes(h *handler.ShipmentHandler) Endpoints {
	return Endpoints{
		Prefix: "/shipments",
		Routes: []Route{
			{http.MethodPost, "", h.Book},
			{http.MethodGet, "", h.List},
			{http.MethodGet, "/:ref", h.Get},
			{http.MethodPost, "/:ref/otif", h.SubmitOtif},
			{http.MethodGet, "/:ref/otif", h.History},
			{http.MethodPost, "/:ref/otif/:stage/delays", h.AnnotateDelay},
			{http.MethodGet, "/:ref/otif/:stage/delays", h.Delays},
		},
	}
}

// InvoiceRoutes registers the invoice ledger and payment review endpoints
func InvoiceRoutes(h *handler.InvoiceHandler) Endpoints {
	return Endpoints{
		Prefix: "/invoices",
		Routes: []Route{
			{http.MethodPost, "", h.Open},
			{http.MethodGet, "", h.List},
			{http.MethodGet, "/:number", h.Get},
			{http.MethodPost, "/:number/issue", h.Issue},
			{http.MethodPost, "/:number/revision", h.MarkNeedsRevision},
			{http.MethodPost, "/:number/payments", h.SubmitPayment},
		},
		Nested: []Endpoints{{
			Prefix: "/:number/payments/:id",
			Routes: []Route{
				{http.MethodPost, "/confirm", h.ConfirmPayment},
				{http.MethodPost, "/reject", h.RejectPayment},
			},
		}},
	}
}

// OutboxRoutes registers the dead letter administration endpoints
func OutboxRoutes(h *handler.OutboxHandler) Endpoints {
	return Endpoints{
		Prefix: "/outbox",
		Routes: []Route{
			{http.MethodGet, "/dead", h.GetDeadLetterEntries},
			{http.MethodPost, "/dead/retry-all", h.RetryAllDeadEntries},
			{http.MethodGet, "/stats", h.GetStats},
			{http.MethodGet, "/:id", h.GetEntry},
			{http.MethodPost, "/:id/retry", h.RetryDeadEntry},
		},
	}
}
