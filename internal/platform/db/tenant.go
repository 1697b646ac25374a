package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// TenantIDKey carries the resolved tenant identifier on the request context.
	TenantIDKey contextKey = "tenant_id"
)

// TenantHeader is the request header callers use to name a tenant before
// authentication (the login endpoint). Authenticated handlers ignore it and
// take the tenant bound to the session instead.
const TenantHeader = "X-Tenant-ID"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidTenantID reports whether the given tenant identifier is well formed.
// All session and principal tables are shared across tenants and every query
// filters on tenant_id, so a malformed identifier is rejected before it ever
// reaches a predicate.
func ValidTenantID(tenantID string) bool {
	return tenantID != "" && tenantIDPattern.MatchString(tenantID)
}

// TenantMiddleware resolves the tenant for unauthenticated routes (login):
// the X-Tenant-ID header when present, otherwise the configured default.
// Authenticated handlers never read this value; they use the tenant the auth
// middleware extracts from the session.
func TenantMiddleware(defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)

			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := context.WithValue(c.Request().Context(), TenantIDKey, tenantID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	return defaultTenant
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}
