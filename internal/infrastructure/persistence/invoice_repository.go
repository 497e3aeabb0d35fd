package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func preloadAttempts(db *gorm.DB) *gorm.DB {
	return db.Order("submitted_at ASC")
}

func (r *GormInvoiceRepository) first(ctx context.Context, query string, args ...interface{}) (*settlement.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Attempts", preloadAttempts).
		Where(query, args...).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Invoice, error) {
	return r.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByNumber finds an invoice by number for a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*settlement.Invoice, error) {
	return r.first(ctx, "tenant_id = ? AND invoice_number = ?", tenantID, number)
}

// FindByShipment returns every invoice of a shipment, newest first
func (r *GormInvoiceRepository) FindByShipment(ctx context.Context, tenantID, shipmentID uuid.UUID) ([]settlement.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Attempts", preloadAttempts).
		Where("tenant_id = ? AND shipment_id = ?", tenantID, shipmentID).
		Order("created_at DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]settlement.Invoice, 0, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// FindAllForTenant lists invoices with filtering and returns the total count
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.InvoiceFilter) ([]settlement.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number LIKE ? OR shipment_reference LIKE ?", pattern, pattern)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ShipmentID != nil {
		query = query.Where("shipment_id = ?", *filter.ShipmentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(invoiceOrder.clause(filter.OrderBy, filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Preload("Attempts", preloadAttempts).Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	invoices := make([]settlement.Invoice, 0, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, nil
}

// ExistsByNumber checks if an invoice number is taken for a tenant
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a newly opened invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *settlement.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("INVOICE_EXISTS", fmt.Sprintf(
				"Invoice %s clashes with an existing invoice number or with the invoice in force for shipment %s",
				invoice.InvoiceNumber, invoice.ShipmentReference))
		}
		return err
	}
	return nil
}

// SaveWithLock saves the invoice header with optimistic locking and upserts
// its payment attempts. Call it inside a transaction so a lost race leaves
// the attempts untouched.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *settlement.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	db := r.db.WithContext(ctx)
	result := db.
		Model(model).
		Select("*").
		Omit(clause.Associations).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(model.Attempts) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reviewed_by", "reviewed_at", "rejection_reason", "updated_at"}),
	}).Create(&model.Attempts).Error
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ settlement.InvoiceRepository = (*GormInvoiceRepository)(nil)
