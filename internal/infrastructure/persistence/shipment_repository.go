package persistence

import (
	"context"
	"errors"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormShipmentRepository implements ShipmentRepository using GORM
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewGormShipmentRepository creates a new GormShipmentRepository
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// FindByIDForTenant finds a shipment by ID for a specific tenant
func (r *GormShipmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*tracking.Shipment, error) {
	var model models.ShipmentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByReference finds an active shipment by reference number for a tenant
func (r *GormShipmentRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*tracking.Shipment, error) {
	var model models.ShipmentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_number = ? AND is_active = ?", tenantID, reference, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists shipments with filtering and returns the total count
func (r *GormShipmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter tracking.ShipmentFilter) ([]tracking.Shipment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ShipmentModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyShipmentFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(shipmentOrder.clause(filter.OrderBy, filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var shipmentModels []models.ShipmentModel
	if err := query.Find(&shipmentModels).Error; err != nil {
		return nil, 0, err
	}
	shipments := make([]tracking.Shipment, len(shipmentModels))
	for i := range shipmentModels {
		shipments[i] = *shipmentModels[i].ToDomain()
	}
	return shipments, total, nil
}

// ExistsByReference checks if a reference number is taken for a tenant
func (r *GormShipmentRepository) ExistsByReference(ctx context.Context, tenantID uuid.UUID, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ShipmentModel{}).
		Where("tenant_id = ? AND reference_number = ?", tenantID, reference).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a newly booked shipment
func (r *GormShipmentRepository) Create(ctx context.Context, shipment *tracking.Shipment) error {
	model := models.ShipmentModelFromDomain(shipment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("SHIPMENT_EXISTS", "A shipment with reference "+shipment.ReferenceNumber+" already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The shipment's Version must
// already be incremented past the stored one.
func (r *GormShipmentRepository) SaveWithLock(ctx context.Context, shipment *tracking.Shipment) error {
	model := models.ShipmentModelFromDomain(shipment)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", shipment.ID, shipment.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormShipmentRepository) applyShipmentFilter(query *gorm.DB, filter tracking.ShipmentFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("reference_number LIKE ?", "%"+filter.Search+"%")
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Route != nil {
		query = query.Where("route = ?", *filter.Route)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	return query
}

// Ensure GormShipmentRepository implements ShipmentRepository
var _ tracking.ShipmentRepository = (*GormShipmentRepository)(nil)
