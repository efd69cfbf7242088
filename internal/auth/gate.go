package auth

import (
	"net/http"
	"strings"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

// Authorize decides whether p may act with every scope in required. Admin
// holds every scope. Required scopes are conjunctive.
func Authorize(p *shared.Principal, required ...shared.Scope) error {
	if p == nil {
		return shared.ErrUnauthorized
	}
	if p.Scopes.IsAdmin() {
		return nil
	}
	if len(p.Scopes.Missing(required...)) > 0 {
		return shared.ErrForbidden
	}
	return nil
}

// RequireScope must run after Middleware.Authenticate.
func RequireScope(required ...shared.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			switch Authorize(p, required...) {
			case nil:
				return next(c)
			case shared.ErrUnauthorized:
				return shared.Unauthorized("auth_required", "authentication required")
			default:
				missing := p.Scopes.Missing(required...)
				names := make([]string, len(missing))
				for i, s := range missing {
					names[i] = s.String()
				}
				return shared.NewAPIError("insufficient_scope", "missing required scope: "+strings.Join(names, ", ")).
					WithDetails(map[string]any{"required": names}).
					ToHTTP(http.StatusForbidden)
			}
		}
	}
}
