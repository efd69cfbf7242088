package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"gorm.io/gorm"
)

// CredentialStore is the sole source of truth for issued keys.
type CredentialStore interface {
	Create(ctx context.Context, key *APIKey) error
	FindByID(ctx context.Context, id string) (*APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) ([]*APIKey, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*APIKey, error)
	UpdateLastUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&APIKey{})
}

func (s *Store) Create(ctx context.Context, key *APIKey) error {
	if key.ID == "" {
		key.ID = shared.NewID("key_")
	}
	err := s.db.WithContext(ctx).Create(key).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrConflict
	}
	return err
}

func (s *Store) FindByID(ctx context.Context, id string) (*APIKey, error) {
	var key APIKey
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) FindByPrefix(ctx context.Context, prefix string) ([]*APIKey, error) {
	var keys []*APIKey
	err := s.db.WithContext(ctx).Where("prefix = ?", prefix).Find(&keys).Error
	return keys, err
}

func (s *Store) FindByOwner(ctx context.Context, ownerID string) ([]*APIKey, error) {
	var keys []*APIKey
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (s *Store) UpdateLastUsed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&APIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", time.Now().UTC()).Error
}

// Delete is idempotent: deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&APIKey{}, "id = ?", id).Error
}
