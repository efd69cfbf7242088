package apikey

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/auth"
	"github.com/eleven-am/zentoria-gateway/internal/credential"
	"github.com/eleven-am/zentoria-gateway/internal/dto"
	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service *Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func NewHandler(service *Service, limiter *ratelimit.Limiter, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		limiter: limiter,
		logger:  logger.With("handler", "apikey"),
	}
}

// RegisterRoutes expects g to already authenticate and require keys.manage.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create, auth.RateLimit(h.limiter, ratelimit.ActionKeyCreate))
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/rotate", h.Rotate)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func keyToResponse(k *APIKey) dto.APIKeyResponse {
	resp := dto.APIKeyResponse{
		ID:                 k.ID,
		Name:               k.Name,
		Prefix:             credential.Mask(k.Prefix),
		Scopes:             k.Scopes.Strings(),
		RateLimitPerMinute: k.RateLimitPerMinute,
		RateLimitPerDay:    k.RateLimitPerDay,
		CreatedAt:          formatTime(k.CreatedAt),
	}

	if k.ExpiresAt != nil {
		expiresAt := formatTime(*k.ExpiresAt)
		resp.ExpiresAt = &expiresAt
	}

	if k.LastUsedAt != nil {
		lastUsed := formatTime(*k.LastUsedAt)
		resp.LastUsed = &lastUsed
	}

	return resp
}

func (h *Handler) keyError(err error, op, keyID string) error {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return shared.NotFound("key_not_found", "API key not found")
	case errors.Is(err, shared.ErrForbidden):
		return shared.Forbidden("not_owner", "you don't own this API key")
	default:
		h.logger.Error("api key operation failed", "error", err, "op", op, "key_id", keyID)
		return shared.InternalError(op+"_failed", "failed to "+op+" API key")
	}
}

// List godoc
// @Summary      List API keys
// @Description  Returns all API keys owned by the caller. Secrets are never returned.
// @Tags         keys
// @Produce      json
// @Success      200  {object}  dto.APIKeyListResponse
// @Failure      401  {object}  shared.APIError
// @Failure      403  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /keys [get]
func (h *Handler) List(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}

	keys, err := h.service.ListKeys(c.Request().Context(), p.ID)
	if err != nil {
		h.logger.Error("failed to list API keys", "error", err, "user_id", p.ID)
		return shared.InternalError("list_failed", "failed to list API keys")
	}

	response := make([]dto.APIKeyResponse, len(keys))
	for i, k := range keys {
		response[i] = keyToResponse(k)
	}

	return c.JSON(http.StatusOK, dto.APIKeyListResponse{APIKeys: response})
}

// Create godoc
// @Summary      Create an API key
// @Description  Issues a new API key. The secret is returned once and cannot be recovered.
// @Tags         keys
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CreateAPIKeyRequest  true  "API key details"
// @Success      201      {object}  dto.CreateAPIKeyResponse
// @Failure      400      {object}  shared.APIError
// @Failure      401      {object}  shared.APIError
// @Failure      403      {object}  shared.APIError
// @Failure      409      {object}  shared.APIError
// @Failure      422      {object}  shared.APIError
// @Failure      429      {object}  shared.APIError
// @Failure      500      {object}  shared.APIError
// @Router       /keys [post]
func (h *Handler) Create(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	key, secret, err := h.service.CreateKey(c.Request().Context(), p.ID, p.Email, CreateRequest{
		Name:               req.Name,
		Scopes:             req.Scopes,
		ExpiresIn:          req.ExpiresIn,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerDay:    req.RateLimitPerDay,
	})
	if err != nil {
		var ve *shared.ValidationError
		if errors.As(err, &ve) {
			return shared.Invalid(ve)
		}
		if errors.Is(err, shared.ErrConflict) {
			h.logger.Warn("api key collided with an existing digest", "user_id", p.ID)
			return shared.Conflict("key_conflict", "could not issue a unique API key, retry")
		}
		h.logger.Error("failed to create API key", "error", err, "user_id", p.ID)
		return shared.InternalError("create_failed", "failed to create API key")
	}

	h.logger.Info("api key created", "user_id", p.ID, "key_id", key.ID)
	return c.JSON(http.StatusCreated, dto.CreateAPIKeyResponse{
		APIKeyResponse: keyToResponse(key),
		Secret:         secret,
	})
}

// Get godoc
// @Summary      Get an API key
// @Description  Returns metadata for one API key owned by the caller
// @Tags         keys
// @Produce      json
// @Param        id   path      string  true  "API Key ID"
// @Success      200  {object}  dto.APIKeyResponse
// @Failure      401  {object}  shared.APIError
// @Failure      403  {object}  shared.APIError
// @Failure      404  {object}  shared.APIError
// @Router       /keys/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}

	keyID := c.Param("id")
	key, err := h.service.GetKey(c.Request().Context(), p.ID, keyID)
	if err != nil {
		return h.keyError(err, "get", keyID)
	}

	return c.JSON(http.StatusOK, keyToResponse(key))
}

// Delete godoc
// @Summary      Revoke an API key
// @Description  Permanently deletes an API key owned by the caller
// @Tags         keys
// @Param        id  path  string  true  "API Key ID"
// @Success      204  "No Content"
// @Failure      401  {object}  shared.APIError
// @Failure      403  {object}  shared.APIError
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /keys/{id} [delete]
func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}

	keyID := c.Param("id")
	if err := h.service.RevokeKey(c.Request().Context(), p.ID, keyID); err != nil {
		return h.keyError(err, "revoke", keyID)
	}

	h.logger.Info("api key revoked", "user_id", p.ID, "key_id", keyID)
	return c.NoContent(http.StatusNoContent)
}

// Rotate godoc
// @Summary      Rotate an API key
// @Description  Issues a replacement with the same name, scopes, expiry and limits, then revokes the original
// @Tags         keys
// @Produce      json
// @Param        id   path      string  true  "API Key ID"
// @Success      201  {object}  dto.CreateAPIKeyResponse
// @Failure      401  {object}  shared.APIError
// @Failure      403  {object}  shared.APIError
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /keys/{id}/rotate [post]
func (h *Handler) Rotate(c echo.Context) error {
	p, err := auth.RequirePrincipal(c)
	if err != nil {
		return err
	}

	keyID := c.Param("id")
	key, secret, err := h.service.RotateKey(c.Request().Context(), p.ID, keyID)
	if err != nil {
		return h.keyError(err, "rotate", keyID)
	}

	h.logger.Info("api key rotated", "user_id", p.ID, "old_key_id", keyID, "key_id", key.ID)
	return c.JSON(http.StatusCreated, dto.CreateAPIKeyResponse{
		APIKeyResponse: keyToResponse(key),
		Secret:         secret,
	})
}
