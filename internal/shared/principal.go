package shared

type AuthMethod string

const (
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodBearer AuthMethod = "bearer"
)

// KeyLimits carries per-key rate overrides. A nil field means no override.
type KeyLimits struct {
	PerMinute *int `json:"per_minute,omitempty"`
	PerDay    *int `json:"per_day,omitempty"`
}

func (l *KeyLimits) Empty() bool {
	return l == nil || (l.PerMinute == nil && l.PerDay == nil)
}

// Principal is the resolved identity behind a request.
type Principal struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Name       string            `json:"name,omitempty"`
	Scopes     Scopes            `json:"scopes"`
	Roles      []string          `json:"roles,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	AuthMethod AuthMethod        `json:"auth_method"`
	KeyID      string            `json:"key_id,omitempty"`
	Limits     *KeyLimits        `json:"limits,omitempty"`
}
