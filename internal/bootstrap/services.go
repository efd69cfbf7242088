package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/eleven-am/zentoria-gateway/internal/apikey"
	"github.com/eleven-am/zentoria-gateway/internal/audit"
	"github.com/eleven-am/zentoria-gateway/internal/auth"
	"github.com/eleven-am/zentoria-gateway/internal/breaker"
	"github.com/eleven-am/zentoria-gateway/internal/cache"
	"github.com/eleven-am/zentoria-gateway/internal/credential"
	"github.com/eleven-am/zentoria-gateway/internal/identity"
	"go.uber.org/fx"
)

func ProvideAPIKeyService(cfg *Config, store *apikey.Store, c cache.Cache, auditStore *audit.Store, log *slog.Logger) (*apikey.Service, error) {
	env, err := credential.ParseEnvironment(cfg.KeyEnvironment)
	if err != nil {
		return nil, fmt.Errorf("KEY_ENVIRONMENT: %w", err)
	}
	return apikey.NewService(apikey.ServiceConfig{
		Store:       store,
		Cache:       c,
		Audit:       auditStore,
		Environment: env,
		Logger:      log,
	}), nil
}

func ProvideIdentityProvider(cfg *Config) identity.Provider {
	return identity.NewHTTPProvider(identity.HTTPProviderConfig{
		BaseURL:      cfg.IDPBaseURL,
		ClientID:     cfg.IDPClientID,
		ClientSecret: cfg.IDPClientSecret,
		TokenURL:     cfg.IDPTokenURL,
		HTTPClient:   &http.Client{Timeout: cfg.IDPTimeout},
	})
}

func ProvideIdentityService(cfg *Config, provider identity.Provider, c cache.Cache, breakers *breaker.Registry, log *slog.Logger) *identity.Service {
	return identity.NewService(identity.ServiceConfig{
		Provider: provider,
		Cache:    c,
		Breakers: breakers,
		Timeout:  cfg.IDPTimeout,
		Logger:   log,
	})
}

func ProvideAuthMiddleware(keys *apikey.Service, tokens *identity.Service, log *slog.Logger) *auth.Middleware {
	return auth.NewMiddleware(keys, tokens, log)
}

func ProvideIPGuard(lc fx.Lifecycle, cfg *Config) *auth.IPGuard {
	gc := auth.DefaultIPGuardConfig()
	if cfg.IPGuardRPS > 0 {
		gc.RequestsPerSecond = cfg.IPGuardRPS
	}
	if cfg.IPGuardBurst > 0 {
		gc.Burst = cfg.IPGuardBurst
	}

	guard := auth.NewIPGuard(gc)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			guard.Stop()
			return nil
		},
	})
	return guard
}

var ServicesModule = fx.Options(
	fx.Provide(
		ProvideAPIKeyService,
		ProvideIdentityProvider,
		ProvideIdentityService,
		ProvideAuthMiddleware,
		ProvideIPGuard,
	),
)
