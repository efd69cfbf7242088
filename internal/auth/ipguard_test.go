package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestIPGuard(t *testing.T) {
	guard := NewIPGuard(IPGuardConfig{RequestsPerSecond: 0.001, Burst: 2, CleanupInterval: time.Hour})
	t.Cleanup(guard.Stop)

	e := echo.New()
	handler := guard.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	send := func(ip string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	for i := 0; i < 2; i++ {
		if err := send("10.0.0.1"); err != nil {
			t.Fatalf("request %d within burst: %v", i+1, err)
		}
	}

	status, code := apiErrorCode(t, send("10.0.0.1"))
	if status != http.StatusTooManyRequests || code != "rate_limit_exceeded" {
		t.Errorf("got %d %s, want 429 rate_limit_exceeded", status, code)
	}

	if err := send("10.0.0.2"); err != nil {
		t.Errorf("other IPs have their own bucket: %v", err)
	}
}

func TestIPGuard_GetLimiterReuses(t *testing.T) {
	guard := NewIPGuard(DefaultIPGuardConfig())
	t.Cleanup(guard.Stop)

	if guard.getLimiter("1.2.3.4") != guard.getLimiter("1.2.3.4") {
		t.Error("expected the same limiter for the same IP")
	}
	if guard.getLimiter("1.2.3.4") == guard.getLimiter("5.6.7.8") {
		t.Error("expected distinct limiters per IP")
	}
}

func TestIPGuard_StopIsIdempotent(t *testing.T) {
	guard := NewIPGuard(DefaultIPGuardConfig())
	guard.Stop()
	guard.Stop()
}
