package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/zentoria-gateway/internal/apikey"
	"github.com/eleven-am/zentoria-gateway/internal/dto"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx/fxtest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gateway struct {
	e    *echo.Echo
	keys *apikey.Service
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(idp.Close)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := &Config{
		RedisAddr:      mr.Addr(),
		KeyEnvironment: "test",
		IDPBaseURL:     idp.URL,
		IDPTokenURL:    idp.URL + "/oauth/token",
		IDPTimeout:     time.Second,
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	keyStore := ProvideAPIKeyStore(db)
	auditStore := ProvideAuditStore(db, log)
	if err := RunMigrations(keyStore, auditStore); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	rc := ProvideRedisClient(cfg)
	t.Cleanup(func() { _ = rc.Close() })
	c := ProvideCache(rc, log)
	limiter := ProvideLimiter(rc, log)

	keys, err := ProvideAPIKeyService(cfg, keyStore, c, auditStore, log)
	if err != nil {
		t.Fatalf("ProvideAPIKeyService() error = %v", err)
	}
	tokens := ProvideIdentityService(cfg, ProvideIdentityProvider(cfg), c, ProvideBreakers(cfg, log), log)

	lc := fxtest.NewLifecycle(t)
	guard := ProvideIPGuard(lc, cfg)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	e := NewEchoServer()
	RegisterRoutes(e, HandlerParams{
		APIKeyHandler:  ProvideAPIKeyHandler(keys, limiter, log),
		AuthHandler:    ProvideAuthHandler(tokens, limiter, log),
		AuthMiddleware: ProvideAuthMiddleware(keys, tokens, log),
		IPGuard:        guard,
		Limiter:        limiter,
	})

	return &gateway{e: e, keys: keys}
}

func (g *gateway) issue(t *testing.T, scopes ...string) string {
	t.Helper()
	_, secret, err := g.keys.CreateKey(context.Background(), "user_1", "dev@example.com", apikey.CreateRequest{
		Name:   "test",
		Scopes: scopes,
	})
	if err != nil {
		t.Fatalf("CreateKey() error = %v", err)
	}
	return secret
}

func (g *gateway) do(method, path, header, value, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr shared.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return apiErr.Code
}

func TestRoutes_Keys(t *testing.T) {
	g := newGateway(t)
	manager := g.issue(t, "keys.manage")
	reader := g.issue(t, "files.read")

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
		wantErr  string
	}{
		{"no credentials", "", "", http.StatusUnauthorized, "missing_credentials"},
		{"missing scope", "X-API-Key", reader, http.StatusForbidden, "insufficient_scope"},
		{"rejected bearer token", "Authorization", "Bearer opaque-token", http.StatusUnauthorized, "invalid_token"},
		{"key manager", "X-API-Key", manager, http.StatusOK, ""},
		{"key as bearer", "Authorization", "Bearer " + manager, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := g.do(http.MethodGet, "/v1/keys", tt.header, tt.value, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if code := errorCode(t, rec); code != tt.wantErr {
					t.Errorf("code = %q, want %q", code, tt.wantErr)
				}
			}
		})
	}
}

func TestRoutes_CreateKey(t *testing.T) {
	g := newGateway(t)
	manager := g.issue(t, "keys.manage")

	rec := g.do(http.MethodPost, "/v1/keys", "X-API-Key", manager, `{"name":"CI Key","scopes":["files.read"],"expires_in":"30d"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}

	var resp dto.CreateAPIKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Secret, "znt_test_sk_") {
		t.Errorf("secret = %q", resp.Secret)
	}

	me := g.do(http.MethodGet, "/v1/me", "X-API-Key", resp.Secret, "")
	if me.Code != http.StatusOK {
		t.Fatalf("new key rejected: %d %s", me.Code, me.Body.String())
	}
}

func TestRoutes_Me(t *testing.T) {
	g := newGateway(t)
	key := g.issue(t, "files.read")

	rec := g.do(http.MethodGet, "/v1/me", "X-API-Key", key, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q, want 99", got)
	}

	var me dto.MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if me.ID != "user_1" || me.AuthMethod != "api_key" {
		t.Errorf("unexpected response %+v", me)
	}
}
