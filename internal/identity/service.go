package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/breaker"
	"github.com/eleven-am/zentoria-gateway/internal/cache"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
)

const (
	// BreakerName is the circuit guarding identity provider calls.
	BreakerName = "identity"

	PrincipalCacheTTL = 5 * time.Minute
	DefaultTimeout    = 3 * time.Second
)

type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return "unavailable"
	}
}

// Result separates "the provider said no" from "the provider could not be
// asked". Err is set only for StatusUnavailable and wraps both
// shared.ErrServiceUnavailable and breaker.ErrOpen when the circuit refused
// the call.
type Result struct {
	Status    Status
	Principal *shared.Principal
	Err       error
}

func valid(p *shared.Principal) Result { return Result{Status: StatusValid, Principal: p} }
func invalid() Result                  { return Result{Status: StatusInvalid} }

func unavailable(err error) Result {
	if errors.Is(err, breaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	return Result{Status: StatusUnavailable, Err: err}
}

type Service struct {
	provider Provider
	cache    cache.Cache
	breakers *breaker.Registry
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceConfig struct {
	Provider Provider
	Cache    cache.Cache
	Breakers *breaker.Registry
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		breakers: cfg.Breakers,
		timeout:  timeout,
		logger:   cfg.Logger.With("component", "identity"),
		now:      time.Now,
	}
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "principal:token:" + hex.EncodeToString(sum[:])
}

func userCacheKey(userID string) string {
	return "principal:user:" + userID
}

func userTokensKey(userID string) string {
	return "principal:user:" + userID + ":tokens"
}

func (s *Service) ValidateToken(ctx context.Context, token string) Result {
	if token == "" || expiredLocally(token, s.now()) {
		return invalid()
	}

	key := tokenCacheKey(token)
	if p, ok := s.cached(ctx, key); ok {
		return valid(p)
	}

	info, err := breaker.Do(ctx, s.breakers, BreakerName, s.timeout, func(ctx context.Context) (*UserInfo, error) {
		info, err := s.provider.ValidateToken(ctx, token)
		if errors.Is(err, ErrInvalidToken) {
			// Rejections are answers, not circuit failures.
			return nil, nil
		}
		return info, err
	})
	if err != nil {
		s.logger.Warn("token validation unavailable", "error", err)
		return unavailable(fmt.Errorf("validating token: %w", err))
	}
	if info == nil {
		return invalid()
	}

	p := s.principal(info)
	s.store(ctx, key, p)
	if err := s.cache.Index(ctx, userTokensKey(p.ID), key, PrincipalCacheTTL); err != nil {
		s.logger.Warn("failed to index token cache entry", "error", err, "user_id", p.ID)
	}
	return valid(p)
}

func (s *Service) GetUser(ctx context.Context, userID string) Result {
	if userID == "" {
		return invalid()
	}

	key := userCacheKey(userID)
	if p, ok := s.cached(ctx, key); ok {
		return valid(p)
	}

	info, err := breaker.Do(ctx, s.breakers, BreakerName, s.timeout, func(ctx context.Context) (*UserInfo, error) {
		return s.provider.GetUser(ctx, userID)
	})
	if err != nil {
		s.logger.Warn("user lookup unavailable", "error", err, "user_id", userID)
		return unavailable(fmt.Errorf("looking up user: %w", err))
	}
	if info == nil {
		return invalid()
	}

	p := s.principal(info)
	s.store(ctx, key, p)
	return valid(p)
}

// InvalidateUserCache drops the user's entry and every token entry resolved
// to that user.
func (s *Service) InvalidateUserCache(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, userCacheKey(userID)); err != nil {
		return fmt.Errorf("deleting user cache entry: %w", err)
	}
	if err := s.cache.Purge(ctx, userTokensKey(userID)); err != nil {
		return fmt.Errorf("purging token cache entries: %w", err)
	}
	return nil
}

// ProviderState reports the identity circuit for health checks.
func (s *Service) ProviderState() breaker.State {
	return s.breakers.State(BreakerName)
}

func (s *Service) cached(ctx context.Context, key string) (*shared.Principal, bool) {
	var p shared.Principal
	found, err := s.cache.Get(ctx, key, &p)
	if err != nil {
		s.logger.Warn("principal cache read failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &p, true
}

func (s *Service) store(ctx context.Context, key string, p *shared.Principal) {
	if err := s.cache.Set(ctx, key, p, PrincipalCacheTTL); err != nil {
		s.logger.Warn("principal cache write failed", "error", err, "user_id", p.ID)
	}
}

func (s *Service) principal(info *UserInfo) *shared.Principal {
	scopes := shared.KnownScopes(info.Scopes)
	if len(scopes) != len(info.Scopes) {
		s.logger.Debug("dropped unknown provider scopes", "user_id", info.ID, "granted", len(scopes), "received", len(info.Scopes))
	}
	return &shared.Principal{
		ID:         info.ID,
		Email:      info.Email,
		Name:       info.Name,
		Scopes:     scopes,
		Roles:      info.Roles,
		Metadata:   info.Metadata,
		AuthMethod: shared.AuthMethodBearer,
	}
}
