package apikey

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/audit"
	"github.com/eleven-am/zentoria-gateway/internal/cache"
	"github.com/eleven-am/zentoria-gateway/internal/credential"
	"github.com/eleven-am/zentoria-gateway/internal/shared"
)

// KeyCacheTTL bounds both how long a validated key is served from cache and
// how long a key deleted outside RevokeKey can keep authenticating.
const KeyCacheTTL = 5 * time.Minute

const lastUsedTimeout = 5 * time.Second

type Service struct {
	store  CredentialStore
	cache  cache.Cache
	audit  audit.Logger
	env    credential.Environment
	logger *slog.Logger
	now    func() time.Time
}

type ServiceConfig struct {
	Store       CredentialStore
	Cache       cache.Cache
	Audit       audit.Logger
	Environment credential.Environment
	Logger      *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	env := cfg.Environment
	if env == "" {
		env = credential.EnvTest
	}
	return &Service{
		store:  cfg.Store,
		cache:  cfg.Cache,
		audit:  cfg.Audit,
		env:    env,
		logger: cfg.Logger.With("component", "apikey"),
		now:    time.Now,
	}
}

func keyCacheKey(digest string) string {
	return "apikey:" + digest
}

// CreateKey issues a new key. The returned secret is the only copy of the
// raw credential that will ever exist outside the caller.
func (s *Service) CreateKey(ctx context.Context, ownerID, ownerEmail string, req CreateRequest) (*APIKey, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	scopes, err := shared.ParseScopes(req.Scopes)
	if err != nil {
		return nil, "", shared.NewValidationError("scopes", err.Error())
	}

	key := &APIKey{
		OwnerID:            ownerID,
		OwnerEmail:         ownerEmail,
		Name:               req.Name,
		Scopes:             scopes,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerDay:    req.RateLimitPerDay,
	}

	if req.ExpiresIn != "" {
		lifetime, err := ParseExpiresIn(req.ExpiresIn)
		if err != nil {
			return nil, "", shared.NewValidationError("expires_in", err.Error())
		}
		expiresAt := s.now().UTC().Add(lifetime)
		key.ExpiresAt = &expiresAt
	}

	secret, err := s.issue(ctx, key)
	if err != nil {
		return nil, "", err
	}

	s.record(ctx, audit.ActionAPIKeyCreated, ownerID, audit.Metadata{
		"key_id": key.ID,
		"name":   key.Name,
		"scopes": key.Scopes.Strings(),
	})
	return key, secret, nil
}

func (s *Service) issue(ctx context.Context, key *APIKey) (string, error) {
	secret, err := credential.Generate(s.env)
	if err != nil {
		return "", err
	}

	key.ID = shared.NewID("key_")
	key.Prefix = credential.LookupPrefix(secret)
	key.SecretHash = credential.Hash(secret)

	if err := s.store.Create(ctx, key); err != nil {
		return "", fmt.Errorf("persisting api key: %w", err)
	}
	return secret, nil
}

// ValidateKey resolves a raw credential to its record. Unknown, malformed and
// expired credentials all report shared.ErrNotFound.
func (s *Service) ValidateKey(ctx context.Context, raw string) (*APIKey, error) {
	if !credential.Valid(raw) {
		return nil, shared.ErrNotFound
	}

	digest := credential.Hash(raw)
	cacheKey := keyCacheKey(digest)
	now := s.now()

	var cached APIKey
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.logger.Warn("key cache read failed", "error", err)
	}
	if found {
		if cached.ExpiredAt(now) {
			s.evict(ctx, cacheKey)
			return nil, shared.ErrNotFound
		}
		return &cached, nil
	}

	candidates, err := s.store.FindByPrefix(ctx, credential.LookupPrefix(raw))
	if err != nil {
		return nil, fmt.Errorf("looking up key candidates: %w", err)
	}

	var match *APIKey
	for _, c := range candidates {
		// Every candidate is compared so the loop time does not depend on
		// where the match sits.
		if subtle.ConstantTimeCompare([]byte(c.SecretHash), []byte(digest)) == 1 && match == nil {
			match = c
		}
	}

	if match == nil || match.ExpiredAt(now) {
		return nil, shared.ErrNotFound
	}

	go s.touch(match.ID)

	if err := s.cache.Set(ctx, cacheKey, match, KeyCacheTTL); err != nil {
		s.logger.Warn("key cache write failed", "error", err, "key_id", match.ID)
	}
	return match, nil
}

// Authenticate resolves a raw credential to the principal it acts as.
func (s *Service) Authenticate(ctx context.Context, raw string) (*shared.Principal, error) {
	key, err := s.ValidateKey(ctx, raw)
	if err != nil {
		return nil, err
	}
	return key.Principal(), nil
}

func (s *Service) ListKeys(ctx context.Context, ownerID string) ([]*APIKey, error) {
	keys, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		k.SecretHash = ""
	}
	return keys, nil
}

func (s *Service) GetKey(ctx context.Context, ownerID, keyID string) (*APIKey, error) {
	key, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key.OwnerID != ownerID {
		return nil, shared.ErrForbidden
	}
	key.SecretHash = ""
	return key, nil
}

// RevokeKey hard-deletes a key owned by ownerID and drops its cache entry.
func (s *Service) RevokeKey(ctx context.Context, ownerID, keyID string) error {
	key, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key.OwnerID != ownerID {
		return shared.ErrForbidden
	}

	if err := s.revoke(ctx, key); err != nil {
		return err
	}

	s.record(ctx, audit.ActionAPIKeyRevoked, ownerID, audit.Metadata{
		"key_id": key.ID,
		"name":   key.Name,
	})
	return nil
}

func (s *Service) revoke(ctx context.Context, key *APIKey) error {
	if err := s.store.Delete(ctx, key.ID); err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	s.evict(ctx, keyCacheKey(key.SecretHash))
	return nil
}

// RotateKey issues a replacement carrying the same name, scopes, expiry and
// limits, then revokes the original.
func (s *Service) RotateKey(ctx context.Context, ownerID, keyID string) (*APIKey, string, error) {
	old, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		return nil, "", err
	}
	if old.OwnerID != ownerID {
		return nil, "", shared.ErrForbidden
	}

	replacement := &APIKey{
		OwnerID:            old.OwnerID,
		OwnerEmail:         old.OwnerEmail,
		Name:               old.Name,
		Scopes:             old.Scopes,
		RateLimitPerMinute: old.RateLimitPerMinute,
		RateLimitPerDay:    old.RateLimitPerDay,
		ExpiresAt:          old.ExpiresAt,
	}

	secret, err := s.issue(ctx, replacement)
	if err != nil {
		return nil, "", err
	}

	if err := s.revoke(ctx, old); err != nil {
		// A replacement whose secret was never returned must not stay valid.
		if derr := s.store.Delete(ctx, replacement.ID); derr != nil {
			s.logger.Error("failed to discard replacement key", "error", derr, "key_id", replacement.ID, "old_key_id", old.ID)
		}
		return nil, "", err
	}

	s.record(ctx, audit.ActionAPIKeyRotated, ownerID, audit.Metadata{
		"key_id":   replacement.ID,
		"replaced": old.ID,
		"name":     replacement.Name,
	})
	return replacement, secret, nil
}

func (s *Service) evict(ctx context.Context, cacheKey string) {
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.logger.Warn("key cache eviction failed", "error", err)
	}
}

func (s *Service) touch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
	defer cancel()

	if err := s.store.UpdateLastUsed(ctx, id); err != nil {
		s.logger.Warn("failed to update key last_used_at", "error", err, "key_id", id)
	}
}

func (s *Service) record(ctx context.Context, action audit.Action, ownerID string, metadata audit.Metadata) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, action, ownerID, metadata); err != nil {
		s.logger.Error("failed to write audit entry", "error", err, "action", action, "owner_id", ownerID)
	}
}
