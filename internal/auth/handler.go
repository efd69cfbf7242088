package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/dto"
	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

type UserCacheInvalidator interface {
	InvalidateUserCache(ctx context.Context, userID string) error
}

type Handler struct {
	users   UserCacheInvalidator
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func NewHandler(users UserCacheInvalidator, limiter *ratelimit.Limiter, logger *slog.Logger) *Handler {
	return &Handler{
		users:   users,
		limiter: limiter,
		logger:  logger.With("handler", "me"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Me)
	g.POST("/logout", h.Logout)
	g.GET("/limits", h.Limits)
}

// Me godoc
// @Summary      Current principal
// @Description  Returns the identity and scopes the request authenticated as
// @Tags         me
// @Produce      json
// @Success      200  {object}  dto.MeResponse
// @Failure      401  {object}  shared.APIError
// @Router       /me [get]
func (h *Handler) Me(c echo.Context) error {
	p, err := RequirePrincipal(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.MeResponse{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Scopes:     p.Scopes.Strings(),
		Roles:      p.Roles,
		Metadata:   p.Metadata,
		AuthMethod: string(p.AuthMethod),
		KeyID:      p.KeyID,
	})
}

// Logout godoc
// @Summary      Drop cached identity
// @Description  Invalidates every cached principal for the caller so the next request is re-verified
// @Tags         me
// @Success      204  "No Content"
// @Failure      401  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /me/logout [post]
func (h *Handler) Logout(c echo.Context) error {
	p, err := RequirePrincipal(c)
	if err != nil {
		return err
	}

	if err := h.users.InvalidateUserCache(c.Request().Context(), p.ID); err != nil {
		h.logger.Error("failed to invalidate principal cache", "error", err, "user_id", p.ID)
		return shared.InternalError("logout_failed", "failed to invalidate session")
	}

	return c.NoContent(http.StatusNoContent)
}

// Limits godoc
// @Summary      Rate limit status
// @Description  Reports the caller's remaining quota per action without consuming any
// @Tags         me
// @Produce      json
// @Success      200  {object}  dto.LimitsResponse
// @Failure      401  {object}  shared.APIError
// @Router       /me/limits [get]
func (h *Handler) Limits(c echo.Context) error {
	p, err := RequirePrincipal(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var windows []dto.RateLimitWindow
	for _, action := range ratelimit.Actions() {
		subject := subjectFor(c, p, action)
		configs := ratelimit.ConfigFor(action, p.Limits)
		for i, res := range h.limiter.StatusAll(ctx, subject, action, configs) {
			windows = append(windows, dto.RateLimitWindow{
				Action:    string(action),
				Window:    configs[i].Window.String(),
				Limit:     res.Limit,
				Remaining: res.Remaining,
				ResetAt:   res.ResetAt.UTC().Format(time.RFC3339),
			})
		}
	}

	return c.JSON(http.StatusOK, dto.LimitsResponse{Limits: windows})
}
