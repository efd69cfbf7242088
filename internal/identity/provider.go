package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrInvalidToken means the provider answered and rejected the token.
var ErrInvalidToken = errors.New("token rejected by identity provider")

type UserInfo struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Scopes   []string          `json:"scopes"`
	Roles    []string          `json:"roles"`
	Metadata map[string]string `json:"metadata"`
}

type Provider interface {
	// ValidateToken returns ErrInvalidToken when the provider rejects the
	// token and any other error when it could not be asked.
	ValidateToken(ctx context.Context, token string) (*UserInfo, error)
	// GetUser returns nil, nil for an unknown user.
	GetUser(ctx context.Context, userID string) (*UserInfo, error)
}

type HTTPProviderConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
}

type HTTPProvider struct {
	baseURL       string
	httpClient    *http.Client
	serviceTokens oauth2.TokenSource
}

func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	p := &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}

	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		p.serviceTokens = cc.TokenSource(ctx)
	}
	return p
}

func (p *HTTPProvider) clientFor(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return oauth2.NewClient(ctx, ts)
}

func (p *HTTPProvider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	client := p.clientFor(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	resp, err := p.get(ctx, client, p.baseURL+"/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeUser(resp.Body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}
}

func (p *HTTPProvider) GetUser(ctx context.Context, userID string) (*UserInfo, error) {
	client := p.httpClient
	if p.serviceTokens != nil {
		client = p.clientFor(ctx, p.serviceTokens)
	}

	resp, err := p.get(ctx, client, p.baseURL+"/users/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeUser(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}
}

func (p *HTTPProvider) get(ctx context.Context, client *http.Client, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}
	return resp, nil
}

func decodeUser(r io.Reader) (*UserInfo, error) {
	var info UserInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if info.ID == "" {
		return nil, errors.New("identity provider returned a user without an id")
	}
	return &info, nil
}
