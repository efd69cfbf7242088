package dto

type MeResponse struct {
	ID         string            `json:"id" example:"usr_abc123"`
	Email      string            `json:"email,omitempty" example:"user@example.com"`
	Name       string            `json:"name,omitempty" example:"Jane Doe"`
	Scopes     []string          `json:"scopes" example:"files.read,ai.chat"`
	Roles      []string          `json:"roles,omitempty" example:"member"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	AuthMethod string            `json:"auth_method" example:"api_key"`
	KeyID      string            `json:"key_id,omitempty" example:"key_abc123"`
}

type RateLimitWindow struct {
	Action    string `json:"action" example:"ai_command"`
	Window    string `json:"window" example:"1m0s"`
	Limit     int    `json:"limit" example:"60"`
	Remaining int    `json:"remaining" example:"42"`
	ResetAt   string `json:"reset_at" example:"2024-01-15T10:31:00Z"`
}

type LimitsResponse struct {
	Limits []RateLimitWindow `json:"limits"`
}
