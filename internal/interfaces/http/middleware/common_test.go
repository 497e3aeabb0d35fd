package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const opsConsole = "https://ops.freightdesk.example"

// trackingAPI answers the shipment list and OTIF submission behind cors
func trackingAPI(cors gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(cors)
	engine.GET("/api/v1/shipments", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/api/v1/shipments/:ref/otif", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return engine
}

func crossOrigin(engine *gin.Engine, method, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Tenant-ID, X-User-ID")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCORS_DefaultsRejectEveryOrigin(t *testing.T) {
	engine := trackingAPI(CORS())

	w := crossOrigin(engine, http.MethodGet, "/api/v1/shipments", opsConsole)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = crossOrigin(engine, http.MethodGet, "/api/v1/shipments", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = crossOrigin(engine, http.MethodOptions, "/api/v1/shipments/SHP-001/otif", opsConsole)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig(t *testing.T) {
	console := DefaultCORSConfig()
	console.AllowOrigins = []string{opsConsole, "https://portal.freightdesk.example"}

	wildcard := DefaultCORSConfig()
	wildcard.AllowOrigins = []string{"*"}

	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		wantCode    int
		wantOrigin  string
		wantCreds   string
		wantHeaders bool
	}{
		{"console reads shipments", console, http.MethodGet, opsConsole, http.StatusOK, opsConsole, "true", true},
		{"second listed origin", console, http.MethodGet, "https://portal.freightdesk.example", http.StatusOK, "https://portal.freightdesk.example", "true", true},
		{"unlisted origin", console, http.MethodGet, "https://evil.example", http.StatusOK, "", "", false},
		{"preflight of an OTIF submission", console, http.MethodOptions, opsConsole, http.StatusNoContent, opsConsole, "true", true},
		{"preflight from an unlisted origin", console, http.MethodOptions, "https://evil.example", http.StatusNoContent, "", "", false},
		{"wildcard never sends credentials", wildcard, http.MethodGet, "https://anyone.example", http.StatusOK, "*", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/v1/shipments"
			if tt.method == http.MethodOptions {
				path = "/api/v1/shipments/SHP-001/otif"
			}
			w := crossOrigin(trackingAPI(CORSWithConfig(tt.cfg)), tt.method, path, tt.origin)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			if !tt.wantHeaders {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Headers"))
				return
			}
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-ID")
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
			assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
			assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.POST("/api/v1/invoices/:number/issue", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	issue := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/INV-001/issue", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	t.Run("assigns a uuid when the caller sends none", func(t *testing.T) {
		w := issue("")
		id := w.Header().Get("X-Request-ID")
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		w := issue("gateway-7f3a")
		assert.Equal(t, "gateway-7f3a", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "gateway-7f3a", w.Body.String())
	})

	t.Run("truncates an oversized id", func(t *testing.T) {
		w := issue(strings.Repeat("a", MaxRequestIDLength+50))
		assert.Len(t, w.Header().Get("X-Request-ID"), MaxRequestIDLength)
	})
}

func TestRequestIDReachesContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	engine := gin.New()
	engine.Use(RequestID())
	engine.POST("/api/v1/shipments/:ref/otif", func(c *gin.Context) {
		logger.LOr(c.Request.Context(), base).Info("otif stage recorded", logger.Shipment(c.Param("ref")))
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments/SHP-001/otif", nil)
	req.Header.Set("X-Request-ID", "req-42")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "SHP-001", fields["shipment_ref"])
}

func TestSecure(t *testing.T) {
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/api/v1/invoices/:number", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/INV-001", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowOrigins)
	assert.Subset(t, cfg.AllowHeaders, []string{"X-Request-ID", "X-Tenant-ID", "X-User-ID"})
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}
