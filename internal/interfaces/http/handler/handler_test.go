package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	eventapp "github.com/freightdesk/backend/internal/application/event"
	settlementapp "github.com/freightdesk/backend/internal/application/settlement"
	trackingapp "github.com/freightdesk/backend/internal/application/tracking"
	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/freightdesk/backend/internal/infrastructure/event"
	"github.com/freightdesk/backend/internal/infrastructure/lock"
	"github.com/freightdesk/backend/internal/infrastructure/persistence"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/models"
	"github.com/freightdesk/backend/internal/interfaces/http/dto"
	"github.com/freightdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const testBodyLimit = 4 << 10

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// testEnv is a full HTTP stack over an in-memory SQLite database
type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	engine   *gin.Engine
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	codec := event.NewCodec()
	event.RegisterFreightEvents(codec)

	shipments := persistence.NewGormShipmentRepository(db)
	eventLog := persistence.NewGormOtifEventLog(db)
	invoices := persistence.NewGormInvoiceRepository(db)
	outbox := persistence.NewGormOutboxRepository(db)
	scope := persistence.NewGormTransactionScope(db, codec, 3)
	guard := transaction.NewGuard(lock.NewMemoryLocker(time.Second), transaction.RetryPolicy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		LockTTL:        time.Second,
	})
	clock := shared.FixedClock(testNow)
	log := zap.NewNop()

	shipmentHandler := NewShipmentHandler(trackingapp.NewShipmentService(
		shipments, eventLog, invoices, scope, guard, clock, log))
	invoiceHandler := NewInvoiceHandler(settlementapp.NewInvoiceService(
		invoices, shipments, scope, guard, valueobject.NewRateConverter(), valueobject.IDR, clock, log))
	outboxHandler := NewOutboxHandler(eventapp.NewOutboxService(outbox, log))

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.BodyLimit(testBodyLimit))
	api := engine.Group("/api/v1", middleware.Actor())

	api.POST("/shipments", shipmentHandler.Book)
	api.GET("/shipments", shipmentHandler.List)
	api.GET("/shipments/:ref", shipmentHandler.Get)
	api.POST("/shipments/:ref/otif", shipmentHandler.SubmitOtif)
	api.GET("/shipments/:ref/otif", shipmentHandler.History)
	api.POST("/shipments/:ref/otif/:stage/delays", shipmentHandler.AnnotateDelay)
	api.GET("/shipments/:ref/otif/:stage/delays", shipmentHandler.Delays)

	api.POST("/invoices", invoiceHandler.Open)
	api.GET("/invoices", invoiceHandler.List)
	api.GET("/invoices/:number", invoiceHandler.Get)
	api.POST("/invoices/:number/issue", invoiceHandler.Issue)
	api.POST("/invoices/:number/revision", invoiceHandler.MarkNeedsRevision)
	api.POST("/invoices/:number/payments", invoiceHandler.SubmitPayment)
	api.POST("/invoices/:number/payments/:id/confirm", invoiceHandler.ConfirmPayment)
	api.POST("/invoices/:number/payments/:id/reject", invoiceHandler.RejectPayment)

	api.GET("/outbox/dead", outboxHandler.GetDeadLetterEntries)
	api.GET("/outbox/stats", outboxHandler.GetStats)
	api.POST("/outbox/dead/retry-all", outboxHandler.RetryAllDeadEntries)
	api.GET("/outbox/:id", outboxHandler.GetEntry)
	api.POST("/outbox/:id/retry", outboxHandler.RetryDeadEntry)

	return &testEnv{
		t:        t,
		db:       db,
		engine:   engine,
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
}

// do sends a request as the env's actor and returns the recorder
func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.doAs(e.tenantID, method, path, body)
}

func (e *testEnv) doAs(tenantID uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	req.Header.Set("X-User-ID", e.userID.String())
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the data field of a success envelope into out
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.True(t, resp.Success, w.Body.String())
	return resp.Data
}

// decodeError unmarshals the error field of a failure envelope
func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func (e *testEnv) book(reference, route string) trackingapp.ShipmentResponse {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/shipments", map[string]any{
		"reference_number": reference,
		"route":            route,
		"company_id":       uuid.New(),
		"customer_id":      uuid.New(),
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[trackingapp.ShipmentResponse](e.t, w)
}

func (e *testEnv) submit(reference, stage string, payload map[string]any) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(http.MethodPost, "/api/v1/shipments/"+reference+"/otif", map[string]any{
		"stage":   stage,
		"payload": payload,
	})
}

// openAndIssue opens a 100 USD invoice at 10000 IDR per USD and issues it
func (e *testEnv) openAndIssue(shipmentRef, number string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/invoices", map[string]any{
		"invoice_number":     number,
		"shipment_reference": shipmentRef,
		"amount":             "100",
		"currency":           "USD",
		"foreign_currency":   "USD",
		"exchange_rate":      "10000",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/v1/invoices/"+number+"/issue", nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
}

var (
	scheduledPayload = map[string]any{"etd": "2026-03-05", "eta": "2026-03-25"}
	departurePayload = map[string]any{
		"port_of_loading": "IDTPP",
		"shipping_line":   "Meratus",
		"vessel":          "KM Mutiara",
		"voyage":          "V-117",
	}
)

func jsonUnmarshal(w *httptest.ResponseRecorder, out any) error {
	return json.Unmarshal(w.Body.Bytes(), out)
}
