package event

import (
	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
)

// RegisterFreightEvents registers every shipment and invoice event so the
// outbox processor can decode them
func RegisterFreightEvents(codec *Codec) {
	// Tracking
	codec.Register(tracking.EventTypeShipmentBooked, func() shared.DomainEvent { return &tracking.ShipmentBookedEvent{} })
	codec.Register(tracking.EventTypeOtifStageAdvanced, func() shared.DomainEvent { return &tracking.OtifStageAdvancedEvent{} })
	codec.Register(tracking.EventTypeShipmentFailed, func() shared.DomainEvent { return &tracking.ShipmentFailedEvent{} })
	codec.Register(tracking.EventTypeOtifDelayAnnotated, func() shared.DomainEvent { return &tracking.OtifDelayAnnotatedEvent{} })

	// Settlement
	codec.Register(settlement.EventTypeInvoiceOpened, func() shared.DomainEvent { return &settlement.InvoiceOpenedEvent{} })
	codec.Register(settlement.EventTypeInvoiceIssued, func() shared.DomainEvent { return &settlement.InvoiceIssuedEvent{} })
	codec.Register(settlement.EventTypeInvoicePartiallyPaid, func() shared.DomainEvent { return &settlement.InvoicePartiallyPaidEvent{} })
	codec.Register(settlement.EventTypeInvoiceSettled, func() shared.DomainEvent { return &settlement.InvoiceSettledEvent{} })
	codec.Register(settlement.EventTypeInvoiceNeedsRevision, func() shared.DomainEvent { return &settlement.InvoiceNeedsRevisionEvent{} })
	codec.Register(settlement.EventTypePaymentSubmitted, func() shared.DomainEvent { return &settlement.PaymentSubmittedEvent{} })
	codec.Register(settlement.EventTypePaymentConfirmed, func() shared.DomainEvent { return &settlement.PaymentConfirmedEvent{} })
	codec.Register(settlement.EventTypePaymentRejected, func() shared.DomainEvent { return &settlement.PaymentRejectedEvent{} })
}
