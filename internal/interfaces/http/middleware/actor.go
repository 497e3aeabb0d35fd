package middleware

import (
	"net/http"

	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Actor resolves the tenant and user a request acts for from the X-Tenant-ID
// and X-User-ID headers. Both must be UUIDs; authentication happens in front
// of this service.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
		if err != nil || tenantID == uuid.Nil {
			respondUnauthorized(c, "X-Tenant-ID header must carry a tenant UUID")
			return
		}
		userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil || userID == uuid.Nil {
			respondUnauthorized(c, "X-User-ID header must carry a user UUID")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(
			logger.WithActor(c.Request.Context(), tenantID.String(), userID.String()))
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, GetRequestID(c)))
}

// GetTenantID returns the tenant resolved by Actor, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetUserID returns the user resolved by Actor, or uuid.Nil
func GetUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
