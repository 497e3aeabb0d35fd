// Package memory holds in-process repositories with the same contracts as
// the GORM ones: tenant scoping, unique numbers and optimistic locking. They
// back service and handler tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/google/uuid"
)

// ShipmentRepository is an in-memory tracking.ShipmentRepository
type ShipmentRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]tracking.Shipment
}

// NewShipmentRepository creates an empty repository
func NewShipmentRepository() *ShipmentRepository {
	return &ShipmentRepository{rows: make(map[uuid.UUID]tracking.Shipment)}
}

func storedShipment(s *tracking.Shipment) tracking.Shipment {
	c := *s
	c.ClearDomainEvents()
	return c
}

func (r *ShipmentRepository) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*tracking.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *ShipmentRepository) FindByReference(_ context.Context, tenantID uuid.UUID, reference string) (*tracking.Shipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.rows {
		if s.TenantID == tenantID && s.ReferenceNumber == reference && s.IsActive {
			return &s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *ShipmentRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter tracking.ShipmentFilter) ([]tracking.Shipment, int64, error) {
	r.mu.RLock()
	var out []tracking.Shipment
	for _, s := range r.rows {
		switch {
		case s.TenantID != tenantID:
		case filter.Search != "" && !strings.Contains(s.ReferenceNumber, filter.Search):
		case filter.Status != nil && s.Status != *filter.Status:
		case filter.Route != nil && s.Route != *filter.Route:
		case filter.CustomerID != nil && s.CustomerID != *filter.CustomerID:
		default:
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b tracking.Shipment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return page(out, filter.Filter)
}

func (r *ShipmentRepository) ExistsByReference(_ context.Context, tenantID uuid.UUID, reference string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.rows {
		if s.TenantID == tenantID && s.ReferenceNumber == reference {
			return true, nil
		}
	}
	return false, nil
}

func (r *ShipmentRepository) Create(ctx context.Context, shipment *tracking.Shipment) error {
	if taken, _ := r.ExistsByReference(ctx, shipment.TenantID, shipment.ReferenceNumber); taken {
		return shared.NewConflictError("SHIPMENT_EXISTS", "A shipment with reference "+shipment.ReferenceNumber+" already exists")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[shipment.ID] = storedShipment(shipment)
	return nil
}

func (r *ShipmentRepository) SaveWithLock(_ context.Context, shipment *tracking.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[shipment.ID]
	if !ok || current.Version != shipment.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.rows[shipment.ID] = storedShipment(shipment)
	return nil
}

// InvoiceRepository is an in-memory settlement.InvoiceRepository
type InvoiceRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]settlement.Invoice
}

// NewInvoiceRepository creates an empty repository
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{rows: make(map[uuid.UUID]settlement.Invoice)}
}

func copyInvoice(inv settlement.Invoice) settlement.Invoice {
	inv.Attempts = slices.Clone(inv.Attempts)
	inv.ClearDomainEvents()
	return inv
}

func (r *InvoiceRepository) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*settlement.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.rows[id]
	if !ok || inv.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	c := copyInvoice(inv)
	return &c, nil
}

func (r *InvoiceRepository) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*settlement.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.rows {
		if inv.TenantID == tenantID && inv.InvoiceNumber == number {
			c := copyInvoice(inv)
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *InvoiceRepository) FindByShipment(_ context.Context, tenantID, shipmentID uuid.UUID) ([]settlement.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []settlement.Invoice
	for _, inv := range r.rows {
		if inv.TenantID == tenantID && inv.ShipmentID == shipmentID {
			out = append(out, copyInvoice(inv))
		}
	}
	slices.SortFunc(out, func(a, b settlement.Invoice) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *InvoiceRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.InvoiceFilter) ([]settlement.Invoice, int64, error) {
	r.mu.RLock()
	var out []settlement.Invoice
	for _, inv := range r.rows {
		switch {
		case inv.TenantID != tenantID:
		case filter.Search != "" && !strings.Contains(inv.InvoiceNumber, filter.Search):
		case filter.Status != nil && inv.Status != *filter.Status:
		case filter.ShipmentID != nil && inv.ShipmentID != *filter.ShipmentID:
		default:
			out = append(out, copyInvoice(inv))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b settlement.Invoice) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return page(out, filter.Filter)
}

func (r *InvoiceRepository) ExistsByNumber(_ context.Context, tenantID uuid.UUID, number string) (bool, error) {
	_, err := r.FindByNumber(context.Background(), tenantID, number)
	return err == nil, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *settlement.Invoice) error {
	if taken, _ := r.ExistsByNumber(ctx, invoice.TenantID, invoice.InvoiceNumber); taken {
		return shared.NewConflictError("INVOICE_EXISTS", "An invoice numbered "+invoice.InvoiceNumber+" already exists")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice.Status.IsInForce() {
		for _, inv := range r.rows {
			if inv.TenantID == invoice.TenantID && inv.ShipmentID == invoice.ShipmentID && inv.Status.IsInForce() {
				return shared.NewConflictError("INVOICE_EXISTS",
					"Shipment "+invoice.ShipmentReference+" already has invoice "+inv.InvoiceNumber+" in force")
			}
		}
	}
	r.rows[invoice.ID] = copyInvoice(*invoice)
	return nil
}

func (r *InvoiceRepository) SaveWithLock(_ context.Context, invoice *settlement.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[invoice.ID]
	if !ok || current.Version != invoice.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.rows[invoice.ID] = copyInvoice(*invoice)
	return nil
}

func page[T any](rows []T, f shared.Filter) ([]T, int64, error) {
	total := int64(len(rows))
	if f.PageSize <= 0 {
		return rows, total, nil
	}
	start := min(f.Offset(), len(rows))
	end := min(start+f.PageSize, len(rows))
	return rows[start:end], total, nil
}

var (
	_ tracking.ShipmentRepository  = (*ShipmentRepository)(nil)
	_ settlement.InvoiceRepository = (*InvoiceRepository)(nil)
)
