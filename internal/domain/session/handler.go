package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/emsops/emsops/internal/platform/auth"
	"github.com/emsops/emsops/internal/platform/db"
	"github.com/emsops/emsops/internal/platform/middleware"
	"github.com/emsops/emsops/pkg/pagination"
)

// PrincipalStore is the slice of the identity service the session surface
// needs. Exists backs the admin bulk-revoke endpoint, so a privileged caller
// gets a real 404 for an unknown principal instead of a silent zero count;
// RecordLogin stamps last_login after a successful credential check.
type PrincipalStore interface {
	Exists(ctx context.Context, tenantID string, id uuid.UUID) (bool, error)
	RecordLogin(ctx context.Context, tenantID string, id uuid.UUID) error
}

type Handler struct {
	svc         *Service
	credentials *auth.CredentialVerifier
	principals  PrincipalStore
	logger      zerolog.Logger
}

func NewHandler(svc *Service, credentials *auth.CredentialVerifier, principals PrincipalStore, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, credentials: credentials, principals: principals, logger: logger}
}

// RegisterRoutes wires the auth surface. Login is public; everything else
// sits behind the auth middleware installed on the group by the caller.
func (h *Handler) RegisterRoutes(authGroup *echo.Group) {
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/sessions", h.ListSessions)
	authGroup.DELETE("/sessions/:id", h.RevokeSession)

	admin := authGroup.Group("/admin", auth.RequireRole("admin"))
	admin.POST("/revoke-user-sessions", h.RevokeUserSessions)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IDToken  string `json:"id_token"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	CSRFToken string    `json:"csrf_token"`
	SessionID uuid.UUID `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies credentials and mints a session plus its token. Every
// verification failure maps to the same 401 body; which usernames exist and
// why a login failed are not observable from the response.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	creds, err := credentialsFromRequest(req)
	if err != nil {
		return err
	}

	tenantID := db.TenantFromContext(c.Request().Context())
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant is required")
	}

	principal, err := h.credentials.Verify(c.Request().Context(), tenantID, creds)
	if err != nil {
		h.logger.Info().
			Str("tenant_id", tenantID).
			Str("request_id", requestID(c)).
			Err(err).
			Msg("login rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	// Best effort: a failed last_login update never fails the login.
	if err := h.principals.RecordLogin(c.Request().Context(), tenantID, principal.ID); err != nil {
		h.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("last-login update failed")
	}

	created, err := h.svc.Create(c.Request().Context(), principal, clientMeta(c))
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("session creation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     created.Token,
		CSRFToken: created.Session.CSRFSecret,
		SessionID: created.Session.ID,
		ExpiresAt: created.Session.ExpiresAt,
	})
}

// Logout revokes the caller's own session. Always 204: logging out an
// already dead session is not an error.
func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Revoke(ctx, auth.TenantFromContext(ctx), auth.SessionIDFromContext(ctx), ReasonLogout, clientMeta(c)); err != nil {
		h.logger.Error().Err(err).Msg("logout failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSessions returns the caller's own sessions, live and dead, newest
// first.
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	p := pagination.FromContext(c)

	sessions, total, err := h.svc.ListForPrincipal(ctx, auth.TenantFromContext(ctx), auth.PrincipalIDFromContext(ctx), p.Limit, p.Offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("session list failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(sessions, total, p.Limit, p.Offset))
}

// RevokeSession revokes one of the caller's own sessions by id. Revoking
// another principal's session, even a real one, is a 404.
func (h *Handler) RevokeSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	ctx := c.Request().Context()
	err = h.svc.RevokeOwned(ctx, auth.TenantFromContext(ctx), auth.PrincipalIDFromContext(ctx), id, clientMeta(c))
	if err == ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("session revoke failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke session")
	}
	return c.NoContent(http.StatusNoContent)
}

type revokeUserSessionsRequest struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Reason      string    `json:"reason"`
}

type revokeUserSessionsResponse struct {
	Revoked int64 `json:"revoked_count"`
}

// RevokeUserSessions is the break-glass endpoint: an admin cuts every live
// session of a principal in one call.
func (h *Handler) RevokeUserSessions(c echo.Context) error {
	var req revokeUserSessionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.PrincipalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "principal_id is required")
	}
	if req.Reason == "" {
		req.Reason = ReasonAdminBan
	}
	if !ValidReason(req.Reason) {
		return echo.NewHTTPError(http.StatusBadRequest, "unrecognized reason")
	}

	ctx := c.Request().Context()
	tenantID := auth.TenantFromContext(ctx)

	exists, err := h.principals.Exists(ctx, tenantID, req.PrincipalID)
	if err != nil {
		h.logger.Error().Err(err).Msg("principal lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke sessions")
	}
	if !exists {
		return echo.NewHTTPError(http.StatusNotFound, "principal not found")
	}

	n, err := h.svc.RevokeAllForPrincipal(ctx, tenantID, req.PrincipalID, req.Reason, clientMeta(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("bulk revoke failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke sessions")
	}
	return c.JSON(http.StatusOK, revokeUserSessionsResponse{Revoked: n})
}

func credentialsFromRequest(req loginRequest) (auth.Credentials, error) {
	switch {
	case req.IDToken != "" && req.Username == "" && req.Password == "":
		return auth.DelegatedAssertion{IDToken: req.IDToken}, nil
	case req.IDToken == "" && req.Username != "" && req.Password != "":
		return auth.PasswordCredential{Username: req.Username, Password: req.Password}, nil
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, "provide either username and password or id_token")
	}
}

func clientMeta(c echo.Context) ClientMeta {
	return ClientMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		RequestID: requestID(c),
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(middleware.RequestIDHeader)
}
