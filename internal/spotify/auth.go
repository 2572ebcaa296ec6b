package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/franz/spotify-manager/internal/util"
)

// TokenURL is the accounts service endpoint for client credentials
const TokenURL = "https://accounts.spotify.com/api/token"

// expiryMargin renews a cached token this long before it expires, or a
// quarter of its lifetime for short-lived tokens
const expiryMargin = 30 * time.Second

// cacheLifetime returns how long a token issued for expiresIn seconds is
// reused
func cacheLifetime(expiresIn int) time.Duration {
	lifetime := time.Duration(expiresIn) * time.Second
	if lifetime <= 0 {
		return 0
	}
	return lifetime - min(expiryMargin, lifetime/4)
}

// TokenSource supplies bearer tokens for API requests
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-issued bearer token
type StaticToken string

// Token returns the token itself
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty token: %w", util.ErrUnauthorized)
	}
	return string(t), nil
}

// ClientCredentials obtains app tokens with the client credentials grant and
// caches each one until shortly before it expires
type ClientCredentials struct {
	ID       string
	Secret   string
	TokenURL string // defaults to TokenURL

	HTTPClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentials creates a token source for the given app credentials
func NewClientCredentials(id, secret string) *ClientCredentials {
	return &ClientCredentials{
		ID:       id,
		Secret:   secret,
		TokenURL: TokenURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// Token returns the cached token or requests a new one
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	if c.token != "" && now().Before(c.expires) {
		return c.token, nil
	}

	tok, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	c.token = tok.AccessToken
	c.expires = now().Add(cacheLifetime(tok.ExpiresIn))
	util.DebugLog("Spotify: obtained app token valid for %ds", tok.ExpiresIn)

	return c.token, nil
}

func (c *ClientCredentials) request(ctx context.Context) (*tokenResponse, error) {
	if c.ID == "" || c.Secret == "" {
		return nil, fmt.Errorf("missing client id or secret: %w", util.ErrUnauthorized)
	}

	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.ID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("token request rejected: %w: %w", util.ErrUnauthorized, statusErr)
		}
		return nil, fmt.Errorf("token request failed: %w", statusErr)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response without access token: %w", util.ErrUnauthorized)
	}

	return &tok, nil
}
