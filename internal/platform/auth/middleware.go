package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	PrincipalIDKey contextKey = "principal_id"
	TenantIDKey    contextKey = "auth_tenant_id"
	SessionIDKey   contextKey = "session_id"
	RoleKey        contextKey = "role"
	CSRFSecretKey  contextKey = "csrf_secret"
)

// unauthenticated is the single 401 every failure branch returns. One
// message, one shape: the response must not reveal which check failed.
func unauthenticated() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
}

// Middleware returns the request gate for protected routes. It extracts the
// bearer token, runs it through the Authorizer, and either populates the
// request context with the authorized principal or rejects with a uniform
// 401.
func Middleware(authorizer *Authorizer, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthenticated()
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return unauthenticated()
			}

			principal, err := authorizer.Authorize(c.Request().Context(), parts[1])
			if err != nil {
				return unauthenticated()
			}

			// Echo-level values for the tenant and logging middleware.
			c.Set("session_tenant_id", principal.TenantID)
			c.Set("session_id", principal.SessionID.String())

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, PrincipalIDKey, principal.PrincipalID)
			ctx = context.WithValue(ctx, TenantIDKey, principal.TenantID)
			ctx = context.WithValue(ctx, SessionIDKey, principal.SessionID)
			ctx = context.WithValue(ctx, RoleKey, principal.Role)
			ctx = context.WithValue(ctx, CSRFSecretKey, principal.CSRFSecret)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// PrincipalIDFromContext retrieves the authenticated principal id.
func PrincipalIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(PrincipalIDKey).(uuid.UUID)
	return id
}

// TenantFromContext retrieves the authenticated tenant id.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// SessionIDFromContext retrieves the backing session id.
func SessionIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

// RoleFromContext retrieves the authenticated principal's role.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

// CSRFSecretFromContext retrieves the per-session CSRF secret.
func CSRFSecretFromContext(ctx context.Context) string {
	secret, _ := ctx.Value(CSRFSecretKey).(string)
	return secret
}
