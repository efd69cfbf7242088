package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eleven-am/zentoria-gateway/internal/dto"
	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

type mockInvalidator struct {
	invalidated []string
	err         error
}

func (m *mockInvalidator) InvalidateUserCache(ctx context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, userID)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *mockInvalidator, *ratelimit.Limiter) {
	t.Helper()
	limiter, _ := setupLimiter(t)
	inv := &mockInvalidator{}
	return NewHandler(inv, limiter, testLogger()), inv, limiter
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e.Group("/v1/me"))

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{"GET /v1/me", "POST /v1/me/logout", "GET /v1/me/limits"} {
		if !routePaths[want] {
			t.Errorf("expected route %s to be registered", want)
		}
	}
}

func TestHandler_Me(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/me", nil), rec)
	SetPrincipalForTest(c, &shared.Principal{
		ID:         "user_1",
		Email:      "dev@example.com",
		Scopes:     shared.Scopes{shared.ScopeFilesRead},
		AuthMethod: shared.AuthMethodAPIKey,
		KeyID:      "key_1",
	})

	if err := h.Me(c); err != nil {
		t.Fatalf("Me() error = %v", err)
	}

	var resp dto.MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "user_1" || resp.AuthMethod != "api_key" || resp.KeyID != "key_1" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Scopes) != 1 || resp.Scopes[0] != "files.read" {
		t.Errorf("Scopes = %v", resp.Scopes)
	}
}

func TestHandler_Me_Unauthorized(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/me", nil), httptest.NewRecorder())

	status, code := apiErrorCode(t, h.Me(c))
	if status != http.StatusUnauthorized || code != "auth_required" {
		t.Errorf("got %d %s", status, code)
	}
}

func TestHandler_Logout(t *testing.T) {
	h, inv, _ := newTestHandler(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/me/logout", nil), rec)
	SetPrincipalForTest(c, &shared.Principal{ID: "user_1", AuthMethod: shared.AuthMethodBearer})

	if err := h.Logout(c); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if len(inv.invalidated) != 1 || inv.invalidated[0] != "user_1" {
		t.Errorf("invalidated = %v", inv.invalidated)
	}
}

func TestHandler_Logout_Failure(t *testing.T) {
	h, inv, _ := newTestHandler(t)
	inv.err = errors.New("redis down")
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/me/logout", nil), httptest.NewRecorder())
	SetPrincipalForTest(c, &shared.Principal{ID: "user_1"})

	status, code := apiErrorCode(t, h.Logout(c))
	if status != http.StatusInternalServerError || code != "logout_failed" {
		t.Errorf("got %d %s", status, code)
	}
}

func TestHandler_Limits(t *testing.T) {
	h, _, limiter := newTestHandler(t)
	e := echo.New()
	p := &shared.Principal{ID: "user_1"}

	cfg, _ := ratelimit.DefaultConfig(ratelimit.ActionAICommand)
	limiter.Check(context.Background(), "user_1", ratelimit.ActionAICommand, cfg)

	fetch := func() dto.LimitsResponse {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/me/limits", nil), rec)
		SetPrincipalForTest(c, p)
		if err := h.Limits(c); err != nil {
			t.Fatalf("Limits() error = %v", err)
		}
		var resp dto.LimitsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return resp
	}

	first := fetch()
	second := fetch()

	if len(first.Limits) != len(ratelimit.Actions()) {
		t.Fatalf("got %d windows, want %d", len(first.Limits), len(ratelimit.Actions()))
	}
	for i, w := range first.Limits {
		if w.Remaining != second.Limits[i].Remaining {
			t.Errorf("reading limits consumed quota: %+v then %+v", w, second.Limits[i])
		}
		if w.Action == string(ratelimit.ActionAICommand) && w.Remaining != 59 {
			t.Errorf("ai_command remaining = %d, want 59", w.Remaining)
		}
	}
}

func TestHandler_Limits_WithKeyOverrides(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	perDay := 1000
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/me/limits", nil), rec)
	SetPrincipalForTest(c, &shared.Principal{ID: "user_1", KeyID: "key_1", Limits: &shared.KeyLimits{PerDay: &perDay}})

	if err := h.Limits(c); err != nil {
		t.Fatalf("Limits() error = %v", err)
	}
	var resp dto.LimitsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)

	// ai_command and api_request each gain a daily window.
	if want := len(ratelimit.Actions()) + 2; len(resp.Limits) != want {
		t.Errorf("got %d windows, want %d", len(resp.Limits), want)
	}
}
