package auth

import (
	"net/http"
	"strconv"

	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

// subjectFor picks the counter a request is charged to. Keys with their own
// limits are counted per key; everyone else per principal, or per IP when
// unauthenticated.
func subjectFor(c echo.Context, p *shared.Principal, action ratelimit.Action) string {
	if p == nil {
		return "ip:" + c.RealIP()
	}
	if p.KeyID != "" && ratelimit.Overridden(action, p.Limits) {
		return p.KeyID
	}
	return p.ID
}

// RateLimit charges the request to action. It belongs after authentication
// and scope checks so rejected requests never consume quota.
func RateLimit(limiter *ratelimit.Limiter, action ratelimit.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			var limits *shared.KeyLimits
			if p != nil {
				limits = p.Limits
			}

			res := limiter.CheckAll(c.Request().Context(), subjectFor(c, p, action), action, ratelimit.ConfigFor(action, limits))

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter(limiter.Now()).Seconds())
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return shared.NewAPIError("rate_limit_exceeded", "too many requests").
					WithDetails(map[string]any{"action": string(action), "retry_after": retryAfter}).
					ToHTTP(http.StatusTooManyRequests)
			}

			return next(c)
		}
	}
}
