package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/zentoria-gateway/internal/apikey"
	"github.com/eleven-am/zentoria-gateway/internal/auth"
	"github.com/eleven-am/zentoria-gateway/internal/identity"
	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	APIKeyHandler  *apikey.Handler
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	IPGuard        *auth.IPGuard
	Limiter        *ratelimit.Limiter
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1", params.IPGuard.Middleware())

	keysGroup := api.Group("/keys")
	keysGroup.Use(params.AuthMiddleware.Authenticate, auth.RequireScope(shared.ScopeKeysManage))
	params.APIKeyHandler.RegisterRoutes(keysGroup)

	meGroup := api.Group("/me")
	meGroup.Use(params.AuthMiddleware.Authenticate, auth.RateLimit(params.Limiter, ratelimit.ActionAPIRequest))
	params.AuthHandler.RegisterRoutes(meGroup)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideAPIKeyHandler(service *apikey.Service, limiter *ratelimit.Limiter, log *slog.Logger) *apikey.Handler {
	return apikey.NewHandler(service, limiter, log)
}

func ProvideAuthHandler(tokens *identity.Service, limiter *ratelimit.Limiter, log *slog.Logger) *auth.Handler {
	return auth.NewHandler(tokens, limiter, log)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideAPIKeyHandler,
		ProvideAuthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
