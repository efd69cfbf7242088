package apikey

import (
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
)

type APIKey struct {
	ID                 string        `gorm:"primaryKey" json:"id"`
	OwnerID            string        `gorm:"not null;index" json:"owner_id"`
	OwnerEmail         string        `gorm:"not null" json:"owner_email"`
	Name               string        `gorm:"not null;size:100" json:"name"`
	Scopes             shared.Scopes `gorm:"type:text;not null" json:"scopes"`
	Prefix             string        `gorm:"not null;index" json:"prefix"`
	SecretHash         string        `gorm:"uniqueIndex;not null" json:"-"`
	RateLimitPerMinute *int          `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerDay    *int          `json:"rate_limit_per_day,omitempty"`
	LastUsedAt         *time.Time    `json:"last_used_at,omitempty"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (k *APIKey) ExpiredAt(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return now.After(*k.ExpiresAt)
}

func (k *APIKey) Limits() *shared.KeyLimits {
	limits := &shared.KeyLimits{
		PerMinute: k.RateLimitPerMinute,
		PerDay:    k.RateLimitPerDay,
	}
	if limits.Empty() {
		return nil
	}
	return limits
}

// Principal is the identity a request authenticated with this key acts as.
func (k *APIKey) Principal() *shared.Principal {
	return &shared.Principal{
		ID:         k.OwnerID,
		Email:      k.OwnerEmail,
		Scopes:     k.Scopes,
		AuthMethod: shared.AuthMethodAPIKey,
		KeyID:      k.ID,
		Limits:     k.Limits(),
		Metadata: map[string]string{
			"key_name": k.Name,
		},
	}
}
