package persistence

import (
	"testing"
	"time"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testEpoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// setupFreightTestDB opens an in-memory SQLite database with the freight
// schema. A single connection keeps every statement on the same database.
func setupFreightTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func bookTestShipment(t *testing.T, tenantID uuid.UUID, reference string, route tracking.ServiceRoute, at time.Time) *tracking.Shipment {
	t.Helper()
	s, err := tracking.BookShipment(tenantID, reference, route, uuid.New(), uuid.New(), uuid.New(), at)
	require.NoError(t, err)
	s.ClearDomainEvents()
	return s
}

// openTestInvoice opens a 100 USD invoice at 10000 IDR per USD
func openTestInvoice(t *testing.T, shipment *tracking.Shipment, number string, at time.Time) *settlement.Invoice {
	t.Helper()
	rate, err := valueobject.NewExchangeRate(valueobject.IDR, valueobject.USD, decimal.NewFromInt(10000))
	require.NoError(t, err)
	ledger := settlement.NewInvoiceLedger(valueobject.NewRateConverter(), shared.FixedClock(at))
	inv, err := ledger.Open(settlement.OpenInvoiceParams{
		TenantID:          shipment.TenantID,
		InvoiceNumber:     number,
		ShipmentID:        shipment.ID,
		ShipmentReference: shipment.ReferenceNumber,
		Total:             valueobject.MustMoney("100", valueobject.USD),
		Rate:              rate,
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}
