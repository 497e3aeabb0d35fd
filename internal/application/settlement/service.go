package settlement

import (
	"context"
	"fmt"

	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InvoiceService handles invoices and the review of their payments
type InvoiceService struct {
	invoices     settlement.InvoiceRepository
	shipments    tracking.ShipmentRepository
	scope        transaction.Scope
	guard        *transaction.Guard
	ledger       *settlement.InvoiceLedger
	reconciler   *settlement.PaymentReconciler
	homeCurrency valueobject.Currency
	clock        shared.Clock
	logger       *zap.Logger
}

// NewInvoiceService creates a new InvoiceService. Every invoice is booked
// with homeCurrency on the home side of its exchange rate.
func NewInvoiceService(
	invoices settlement.InvoiceRepository,
	shipments tracking.ShipmentRepository,
	scope transaction.Scope,
	guard *transaction.Guard,
	converter valueobject.CurrencyConverter,
	homeCurrency valueobject.Currency,
	clock shared.Clock,
	logger *zap.Logger,
) *InvoiceService {
	if clock == nil {
		clock = shared.SystemClock
	}
	ledger := settlement.NewInvoiceLedger(converter, clock)
	return &InvoiceService{
		invoices:     invoices,
		shipments:    shipments,
		scope:        scope,
		guard:        guard,
		ledger:       ledger,
		reconciler:   settlement.NewPaymentReconciler(ledger, clock),
		homeCurrency: homeCurrency,
		clock:        clock,
		logger:       logger,
	}
}

// Open creates a Proforma invoice for a shipment
func (s *InvoiceService) Open(ctx context.Context, tenantID, userID uuid.UUID, req OpenInvoiceRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "open_invoice",
		attribute.String("invoice.number", req.InvoiceNumber))
	defer func() { telemetry.EndSpan(span, err) }()

	shipment, err := s.shipments.FindByReference(ctx, tenantID, req.ShipmentReference)
	if err != nil {
		return nil, err
	}
	rate, err := s.exchangeRate(req.ForeignCurrency, req.ExchangeRate)
	if err != nil {
		return nil, err
	}
	total, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	inv, err := s.ledger.Open(settlement.OpenInvoiceParams{
		TenantID:          tenantID,
		InvoiceNumber:     req.InvoiceNumber,
		ShipmentID:        shipment.ID,
		ShipmentReference: shipment.ReferenceNumber,
		Total:             total,
		Rate:              rate,
		DueDate:           req.DueDate,
		CreatedBy:         userID,
	})
	if err != nil {
		return nil, err
	}

	// Under the shipment's lock no cancellation can slip between the check
	// for an invoice in force and the insert.
	err = s.guard.Run(ctx, shared.LockKey(tracking.AggregateTypeShipment, shipment.ID.String()), func(ctx context.Context, _ int) error {
		existing, err := s.invoices.FindByShipment(ctx, tenantID, shipment.ID)
		if err != nil {
			return err
		}
		if inForce := settlement.InForce(existing); inForce != nil {
			return shared.NewConflictError("SHIPMENT_INVOICED",
				fmt.Sprintf("Shipment %s is billed by invoice %s (%s); mark it for revision before opening another",
					shipment.ReferenceNumber, inForce.InvoiceNumber, inForce.Status))
		}
		return s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			exists, err := repos.Invoices().ExistsByNumber(ctx, tenantID, inv.InvoiceNumber)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewConflictError("INVOICE_EXISTS", "An invoice numbered "+inv.InvoiceNumber+" already exists")
			}
			if err := repos.Invoices().Create(ctx, inv); err != nil {
				return err
			}
			return repos.Events().Record(ctx, inv.GetDomainEvents()...)
		})
	})
	if err != nil {
		return nil, err
	}
	inv.ClearDomainEvents()

	logger.LOr(ctx, s.logger).Info("invoice opened",
		logger.Invoice(inv.InvoiceNumber),
		logger.Shipment(shipment.ReferenceNumber),
		zap.String("home_total", inv.HomeTotal.String()),
		zap.String("foreign_total", inv.ForeignTotal.String()))

	out := ToInvoiceResponse(inv, tracking.HasDeparted(shipment.Route, shipment.CurrentStage))
	return &out, nil
}

func (s *InvoiceService) exchangeRate(foreign, rate string) (valueobject.ExchangeRate, error) {
	foreignCurrency, err := valueobject.ParseCurrency(foreign)
	if err != nil {
		return valueobject.ExchangeRate{}, shared.NewValidationError("INVALID_CURRENCY", err.Error())
	}
	value, err := decimal.NewFromString(rate)
	if err != nil {
		return valueobject.ExchangeRate{}, shared.NewValidationError("INVALID_EXCHANGE_RATE", "Exchange rate must be a decimal number")
	}
	out, err := valueobject.NewExchangeRate(s.homeCurrency, foreignCurrency, value)
	if err != nil {
		return valueobject.ExchangeRate{}, shared.NewValidationError("INVALID_EXCHANGE_RATE", err.Error())
	}
	return out, nil
}

func parseMoney(amount, currency string) (valueobject.Money, error) {
	c, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return valueobject.Money{}, shared.NewValidationError("INVALID_CURRENCY", err.Error())
	}
	m, err := valueobject.NewMoneyFromString(amount, c)
	if err != nil {
		return valueobject.Money{}, shared.NewValidationError("INVALID_AMOUNT", err.Error())
	}
	return m, nil
}

// Issue moves a Proforma invoice to Issued
func (s *InvoiceService) Issue(ctx context.Context, tenantID uuid.UUID, number string, req IssueInvoiceRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "issue",
		attribute.String("invoice.number", number))
	defer func() { telemetry.EndSpan(span, err) }()

	inv, shipment, err := s.update(ctx, tenantID, number, func(ctx context.Context, inv *settlement.Invoice) error {
		if err := s.requireActiveShipment(ctx, tenantID, inv); err != nil {
			return err
		}
		return s.ledger.Issue(inv, req.DueDate)
	})
	if err != nil {
		return nil, err
	}

	logger.LOr(ctx, s.logger).Info("invoice issued", logger.Invoice(number))
	out := ToInvoiceResponse(inv, departed(shipment))
	return &out, nil
}

// MarkNeedsRevision retires an invoice so a corrected one can be opened
func (s *InvoiceService) MarkNeedsRevision(ctx context.Context, tenantID uuid.UUID, number string, req RevisionRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "mark_needs_revision",
		attribute.String("invoice.number", number))
	defer func() { telemetry.EndSpan(span, err) }()

	inv, shipment, err := s.update(ctx, tenantID, number, func(_ context.Context, inv *settlement.Invoice) error {
		return s.ledger.MarkNeedsRevision(inv, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	logger.LOr(ctx, s.logger).Info("invoice marked for revision",
		logger.Invoice(number), zap.String("reason", inv.RevisionReason))
	out := ToInvoiceResponse(inv, departed(shipment))
	return &out, nil
}

// SubmitPayment records a payment claim awaiting review
func (s *InvoiceService) SubmitPayment(ctx context.Context, tenantID, userID uuid.UUID, number string, req SubmitPaymentRequest) (resp *PaymentReviewResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "submit_payment",
		attribute.String("invoice.number", number),
		attribute.String("payment.currency", req.Currency))
	defer func() { telemetry.EndSpan(span, err) }()

	amount, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	var attempt *settlement.PaymentAttempt
	inv, shipment, err := s.update(ctx, tenantID, number, func(ctx context.Context, inv *settlement.Invoice) error {
		if err := s.requireActiveShipment(ctx, tenantID, inv); err != nil {
			return err
		}
		a, err := s.reconciler.Submit(inv, amount, req.EvidenceRef, userID)
		if err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.LOr(ctx, s.logger).Info("payment submitted",
		logger.Invoice(number),
		logger.Attempt(attempt.ID.String()),
		zap.String("amount", amount.String()))
	return &PaymentReviewResponse{
		Invoice: ToInvoiceResponse(inv, departed(shipment)),
		Attempt: ToPaymentAttemptResponse(attempt),
	}, nil
}

// ConfirmPayment accepts a waiting payment attempt and recomputes the
// remaining balances
func (s *InvoiceService) ConfirmPayment(ctx context.Context, tenantID, reviewerID uuid.UUID, number string, attemptID uuid.UUID) (resp *PaymentReviewResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "confirm_payment",
		attribute.String("invoice.number", number),
		attribute.String("payment.attempt_id", attemptID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	var attempt *settlement.PaymentAttempt
	inv, shipment, err := s.update(ctx, tenantID, number, func(_ context.Context, inv *settlement.Invoice) error {
		a, err := s.reconciler.Confirm(inv, attemptID, reviewerID)
		if err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, s.reviewFailed(ctx, number, attemptID, err)
	}

	logger.LOr(ctx, s.logger).Info("payment confirmed",
		logger.Invoice(number),
		logger.Attempt(attemptID.String()),
		zap.String("status", string(inv.Status)),
		zap.String("remaining_home", inv.RemainingHome.String()),
		zap.String("remaining_foreign", inv.RemainingForeign.String()))
	return &PaymentReviewResponse{
		Invoice: ToInvoiceResponse(inv, departed(shipment)),
		Attempt: ToPaymentAttemptResponse(attempt),
	}, nil
}

// RejectPayment declines a waiting payment attempt
func (s *InvoiceService) RejectPayment(ctx context.Context, tenantID, reviewerID uuid.UUID, number string, attemptID uuid.UUID, req RejectPaymentRequest) (resp *PaymentReviewResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "reject_payment",
		attribute.String("invoice.number", number),
		attribute.String("payment.attempt_id", attemptID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	var attempt *settlement.PaymentAttempt
	inv, shipment, err := s.update(ctx, tenantID, number, func(_ context.Context, inv *settlement.Invoice) error {
		a, err := s.reconciler.Reject(inv, attemptID, reviewerID, req.Reason)
		if err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, s.reviewFailed(ctx, number, attemptID, err)
	}

	logger.LOr(ctx, s.logger).Info("payment rejected",
		logger.Invoice(number),
		logger.Attempt(attemptID.String()),
		zap.String("reason", attempt.RejectionReason))
	return &PaymentReviewResponse{
		Invoice: ToInvoiceResponse(inv, departed(shipment)),
		Attempt: ToPaymentAttemptResponse(attempt),
	}, nil
}

func (s *InvoiceService) reviewFailed(ctx context.Context, number string, attemptID uuid.UUID, err error) error {
	log := logger.LOr(ctx, s.logger).With(logger.Invoice(number), logger.Attempt(attemptID.String()))
	switch {
	case shared.IsConsistency(err):
		log.Error("payment review broke ledger consistency", zap.Error(err))
	case shared.IsConflict(err):
		log.Warn("payment review conflict", zap.Error(err))
	}
	return err
}

// update runs apply against a freshly loaded invoice and saves the result
// with its domain events. It holds the shipment's lock, then the invoice's,
// the same order OTIF transitions take, so a cancellation and an invoice
// write never interleave. It is re-run from a fresh load when a concurrent
// writer wins.
func (s *InvoiceService) update(
	ctx context.Context,
	tenantID uuid.UUID,
	number string,
	apply func(ctx context.Context, inv *settlement.Invoice) error,
) (*settlement.Invoice, *tracking.Shipment, error) {
	found, err := s.invoices.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, nil, err
	}

	var updated *settlement.Invoice
	keys := []string{
		shared.LockKey(tracking.AggregateTypeShipment, found.ShipmentID.String()),
		shared.LockKey(settlement.AggregateTypeInvoice, found.ID.String()),
	}
	err = s.guard.RunAll(ctx, keys, func(ctx context.Context, attempt int) error {
		inv, err := s.invoices.FindByIDForTenant(ctx, tenantID, found.ID)
		if err != nil {
			return err
		}
		if err := apply(ctx, inv); err != nil {
			return err
		}
		err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			if err := repos.Invoices().SaveWithLock(ctx, inv); err != nil {
				return err
			}
			return repos.Events().Record(ctx, inv.GetDomainEvents()...)
		})
		if err != nil {
			if shared.IsConflict(err) {
				logger.LOr(ctx, s.logger).Warn("invoice update lost a concurrent update",
					logger.Invoice(number), zap.Int("attempt", attempt))
			}
			return err
		}
		inv.ClearDomainEvents()
		updated = inv
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// The shipment only feeds the departed flag of the response.
	shipment, _ := s.shipments.FindByIDForTenant(ctx, tenantID, updated.ShipmentID)
	return updated, shipment, nil
}

// requireActiveShipment refuses to move money for a failed shipment
func (s *InvoiceService) requireActiveShipment(ctx context.Context, tenantID uuid.UUID, inv *settlement.Invoice) error {
	shipment, err := s.shipments.FindByIDForTenant(ctx, tenantID, inv.ShipmentID)
	if err != nil {
		return fmt.Errorf("load shipment of invoice %s: %w", inv.InvoiceNumber, err)
	}
	if shipment.IsFailed() {
		return shared.NewInvalidStateError("SHIPMENT_FAILED",
			fmt.Sprintf("Shipment %s is %s; invoice %s cannot be settled", shipment.ReferenceNumber, shipment.CurrentStage, inv.InvoiceNumber))
	}
	return nil
}

func departed(shipment *tracking.Shipment) bool {
	return shipment != nil && tracking.HasDeparted(shipment.Route, shipment.CurrentStage)
}

// Get returns the invoice with the given number and its payment attempts
func (s *InvoiceService) Get(ctx context.Context, tenantID uuid.UUID, number string) (*InvoiceResponse, error) {
	inv, err := s.invoices.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, err
	}
	out := ToInvoiceResponse(inv, s.hasDeparted(ctx, tenantID, inv.ShipmentID))
	return &out, nil
}

// List returns a page of invoices
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, query InvoiceListQuery) (shared.Paginated[InvoiceResponse], error) {
	filter := query.ToFilter()
	rows, total, err := s.invoices.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	departedBy := make(map[uuid.UUID]bool)
	items := make([]InvoiceResponse, len(rows))
	for i := range rows {
		d, ok := departedBy[rows[i].ShipmentID]
		if !ok {
			d = s.hasDeparted(ctx, tenantID, rows[i].ShipmentID)
			departedBy[rows[i].ShipmentID] = d
		}
		items[i] = ToInvoiceResponse(&rows[i], d)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func (s *InvoiceService) hasDeparted(ctx context.Context, tenantID, shipmentID uuid.UUID) bool {
	shipment, err := s.shipments.FindByIDForTenant(ctx, tenantID, shipmentID)
	if err != nil {
		return false
	}
	return departed(shipment)
}
