package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/posadahq/posada/pkg/tenantctx"
)

const (
	HeaderTenant   = "X-Tenant-ID"
	HeaderProperty = "X-Property-ID"
	HeaderActor    = "X-Actor"
)

// ScopeRequired resolves the (tenant, property, actor) triple from request
// headers and injects it into the request context. Every scoped route runs
// behind this.
func ScopeRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := parseHeaderID(c, HeaderTenant)
		if err != nil {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid or missing tenant header"))
			return
		}

		propertyID, err := parseHeaderID(c, HeaderProperty)
		if err != nil {
			AbortWithError(c, newValidationError("property_id", "invalid_property", "invalid or missing property header"))
			return
		}

		scope := tenantctx.Scope{
			TenantID:   tenantID,
			PropertyID: propertyID,
			Actor:      strings.TrimSpace(c.GetHeader(HeaderActor)),
		}
		c.Request = c.Request.WithContext(tenantctx.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

func parseHeaderID(c *gin.Context, header string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return 0, ErrInvalidRequest
	}
	return snowflake.ParseString(raw)
}

func parseParamID(c *gin.Context, param string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(param))
	if raw == "" {
		return 0, ErrInvalidRequest
	}
	return snowflake.ParseString(raw)
}
