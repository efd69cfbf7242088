package apikey

import (
	"testing"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
)

func TestAPIKey_ExpiredAt(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{
			name:      "no expiration",
			expiresAt: nil,
			want:      false,
		},
		{
			name:      "expired",
			expiresAt: timePtr(time.Now().Add(-time.Hour)),
			want:      true,
		},
		{
			name:      "not expired",
			expiresAt: timePtr(time.Now().Add(time.Hour)),
			want:      false,
		},
		{
			name:      "expired just now",
			expiresAt: timePtr(time.Now().Add(-time.Millisecond)),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &APIKey{ExpiresAt: tt.expiresAt}
			if got := key.ExpiredAt(time.Now()); got != tt.want {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIKey_Limits(t *testing.T) {
	key := &APIKey{}
	if key.Limits() != nil {
		t.Error("expected nil limits without overrides")
	}

	perMinute := 30
	key.RateLimitPerMinute = &perMinute
	limits := key.Limits()
	if limits == nil || limits.PerMinute == nil || *limits.PerMinute != 30 {
		t.Errorf("Limits() = %+v", limits)
	}
	if limits.PerDay != nil {
		t.Error("PerDay should stay nil")
	}
}

func TestAPIKey_Principal(t *testing.T) {
	key := &APIKey{
		ID:         "key_1",
		OwnerID:    "user_1",
		OwnerEmail: "dev@example.com",
		Name:       "CI Key",
		Scopes:     shared.Scopes{shared.ScopeFilesRead},
		SecretHash: "deadbeef",
	}

	p := key.Principal()
	if p.ID != "user_1" || p.Email != "dev@example.com" {
		t.Errorf("unexpected identity %+v", p)
	}
	if p.AuthMethod != shared.AuthMethodAPIKey || p.KeyID != "key_1" {
		t.Errorf("unexpected key binding %+v", p)
	}
	if !p.Scopes.Has(shared.ScopeFilesRead) || len(p.Scopes) != 1 {
		t.Errorf("Scopes = %v", p.Scopes)
	}
	for _, v := range p.Metadata {
		if v == key.SecretHash {
			t.Error("principal must not carry the digest")
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
