package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/eleven-am/zentoria-gateway/internal/credential"
	"github.com/eleven-am/zentoria-gateway/internal/identity"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

const apiKeyHeader = "X-API-Key"

// KeyAuthenticator resolves a raw API key. Unknown, malformed and expired keys
// report shared.ErrNotFound; any other error is a lookup fault.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*shared.Principal, error)
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) identity.Result
}

type Middleware struct {
	keys   KeyAuthenticator
	tokens TokenValidator
	logger *slog.Logger
}

func NewMiddleware(keys KeyAuthenticator, tokens TokenValidator, logger *slog.Logger) *Middleware {
	return &Middleware{
		keys:   keys,
		tokens: tokens,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate resolves the request's credential to a Principal. A value
// shaped like an API key is treated as one; anything else in the
// Authorization header is a bearer token for the identity provider.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		var (
			principal *shared.Principal
			err       error
		)

		if raw := strings.TrimSpace(req.Header.Get(apiKeyHeader)); raw != "" {
			principal, err = m.authenticateKey(c, raw)
		} else {
			authHeader := req.Header.Get("Authorization")
			if authHeader == "" {
				return shared.Unauthorized("missing_credentials", "api key or bearer token required")
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				return shared.Unauthorized("invalid_token", "bearer token required")
			}
			if credential.Valid(token) {
				principal, err = m.authenticateKey(c, token)
			} else {
				principal, err = m.authenticateToken(c, token)
			}
		}
		if err != nil {
			return err
		}

		ctx = context.WithValue(ctx, principalKey, principal)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (m *Middleware) authenticateKey(c echo.Context, raw string) (*shared.Principal, error) {
	if !credential.Valid(raw) {
		m.logger.Warn("malformed api key", "ip", c.RealIP())
		return nil, shared.Unauthorized("invalid_api_key", "invalid or expired api key")
	}

	principal, err := m.keys.Authenticate(c.Request().Context(), raw)
	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, shared.ErrNotFound):
		m.logger.Warn("api key rejected", "ip", c.RealIP(), "prefix", credential.LookupPrefix(raw))
		return nil, shared.Unauthorized("invalid_api_key", "invalid or expired api key")
	default:
		m.logger.Error("api key lookup failed", "error", err)
		return nil, shared.ServiceUnavailable("auth_unavailable", "authentication is temporarily unavailable")
	}
}

func (m *Middleware) authenticateToken(c echo.Context, token string) (*shared.Principal, error) {
	res := m.tokens.ValidateToken(c.Request().Context(), token)
	switch res.Status {
	case identity.StatusValid:
		return res.Principal, nil
	case identity.StatusInvalid:
		m.logger.Warn("bearer token rejected", "ip", c.RealIP())
		return nil, shared.Unauthorized("invalid_token", "invalid or expired token")
	default:
		if errors.Is(res.Err, shared.ErrServiceUnavailable) {
			return nil, shared.ServiceUnavailable("auth_unavailable", "authentication is temporarily unavailable")
		}
		return nil, shared.Unauthorized("auth_provider_error", "could not verify token")
	}
}

func GetPrincipal(c echo.Context) *shared.Principal {
	p, ok := c.Request().Context().Value(principalKey).(*shared.Principal)
	if !ok {
		return nil
	}
	return p
}

func RequirePrincipal(c echo.Context) (*shared.Principal, error) {
	p := GetPrincipal(c)
	if p == nil {
		return nil, shared.Unauthorized("auth_required", "authentication required")
	}
	return p, nil
}

func SetPrincipalForTest(c echo.Context, p *shared.Principal) {
	ctx := context.WithValue(c.Request().Context(), principalKey, p)
	c.SetRequest(c.Request().WithContext(ctx))
}
