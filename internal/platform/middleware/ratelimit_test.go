package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func doRequest(t *testing.T, mw echo.MiddlewareFunc, ip string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
}

func TestRateLimitPerClient_AllowsWithinBurst(t *testing.T) {
	mw := RateLimitPerClient(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := doRequest(t, mw, "10.0.0.1"); err != nil {
			t.Fatalf("request %d unexpectedly limited: %v", i, err)
		}
	}
}

func TestRateLimitPerClient_BlocksOverBurst(t *testing.T) {
	mw := RateLimitPerClient(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	doRequest(t, mw, "10.0.0.2")
	doRequest(t, mw, "10.0.0.2")

	err := doRequest(t, mw, "10.0.0.2")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", err)
	}
}

func TestRateLimitPerClient_IsolatesClients(t *testing.T) {
	mw := RateLimitPerClient(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	doRequest(t, mw, "10.0.0.3")
	if err := doRequest(t, mw, "10.0.0.4"); err != nil {
		t.Errorf("different client should not be limited: %v", err)
	}
}
