package bootstrap

import (
	"github.com/eleven-am/zentoria-gateway/internal/health"
	"github.com/eleven-am/zentoria-gateway/internal/identity"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(db *gorm.DB, redis *redis.Client, tokens *identity.Service) *health.Handler {
	return health.NewHandler(db, redis, tokens, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(h.Track)
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
