package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/zentoria-gateway/internal/breaker"
	"github.com/eleven-am/zentoria-gateway/internal/cache"
	"github.com/eleven-am/zentoria-gateway/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

func ProvideBreakers(cfg *Config, log *slog.Logger) *breaker.Registry {
	bc := breaker.DefaultConfig()
	if cfg.BreakerFailureThreshold > 0 {
		bc.FailureThreshold = uint32(cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerCooldown > 0 {
		bc.Cooldown = cfg.BreakerCooldown
	}
	return breaker.NewRegistry(bc, log)
}

func ProvideCache(redisClient *redis.Client, log *slog.Logger) cache.Cache {
	return cache.NewRedisCache(redisClient, log)
}

func ProvideLimiter(redisClient *redis.Client, log *slog.Logger) *ratelimit.Limiter {
	return ratelimit.NewLimiter(redisClient, log)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideDatabase,
		ProvideBreakers,
		ProvideCache,
		ProvideLimiter,
	),
)
