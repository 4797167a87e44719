package middleware

import (
	"strings"

	"bulkprice/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	TenantHeader = "X-Tenant-ID"
	tenantKey    = "tenant_id"
)

// Tenant rejects requests without a tenant scope. Authentication happens
// upstream; the gateway is trusted to set the header.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			_ = c.Error(errutil.Unauthorized("missing "+TenantHeader+" header", nil))
			c.Abort()
			return
		}

		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant set by Tenant.
func TenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
