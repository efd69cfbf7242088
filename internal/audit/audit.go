package audit

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionAPIKeyCreated Action = "api_key_created"
	ActionAPIKeyRevoked Action = "api_key_revoked"
	ActionAPIKeyRotated Action = "api_key_rotated"
)

// Metadata is free-form context stored as a JSON column. Never put secrets
// or digests in it.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}
	return json.Unmarshal(bytes, m)
}

type Entry struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Action    Action    `gorm:"not null;index" json:"action"`
	OwnerID   string    `gorm:"not null;index" json:"owner_id"`
	Metadata  Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Entry) TableName() string {
	return "audit_entries"
}

// Logger records security-relevant actions.
type Logger interface {
	Log(ctx context.Context, action Action, ownerID string, metadata Metadata) error
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "audit")}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Entry{})
}

func (s *Store) Log(ctx context.Context, action Action, ownerID string, metadata Metadata) error {
	e := &Entry{
		ID:        uuid.New().String(),
		Action:    action,
		OwnerID:   ownerID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("audit entry recorded", "id", e.ID, "action", action, "owner_id", ownerID)
	return nil
}
