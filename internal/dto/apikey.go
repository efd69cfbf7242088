package dto

type APIKeyResponse struct {
	ID                 string   `json:"id" example:"key_3f9a1c0d2b7e4a8f9c1d2e3f4a5b6c7d"`
	Name               string   `json:"name" example:"CI Key"`
	Prefix             string   `json:"prefix" example:"znt_live_sk_…"`
	Scopes             []string `json:"scopes" example:"files.read,ai.chat"`
	RateLimitPerMinute *int     `json:"rate_limit_per_minute,omitempty" example:"60"`
	RateLimitPerDay    *int     `json:"rate_limit_per_day,omitempty" example:"10000"`
	CreatedAt          string   `json:"created_at" example:"2024-01-15T10:30:00Z"`
	ExpiresAt          *string  `json:"expires_at,omitempty" example:"2024-12-31T23:59:59Z"`
	LastUsed           *string  `json:"last_used_at,omitempty" example:"2024-01-20T15:45:00Z"`
}

type APIKeyListResponse struct {
	APIKeys []APIKeyResponse `json:"api_keys"`
}

type CreateAPIKeyRequest struct {
	Name               string   `json:"name" example:"CI Key"`
	Scopes             []string `json:"scopes" example:"files.read"`
	ExpiresIn          string   `json:"expires_in,omitempty" example:"90d"`
	RateLimitPerMinute *int     `json:"rate_limit_per_minute,omitempty" example:"60"`
	RateLimitPerDay    *int     `json:"rate_limit_per_day,omitempty" example:"10000"`
}

// CreateAPIKeyResponse is the only response that ever carries the secret.
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Secret string `json:"secret" example:"znt_live_sk_AbCdEfGhIjKlMnOpQrStUvWxYz012345"`
}
