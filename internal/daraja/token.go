package daraja

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// tokenSafetyMargin is subtracted from the provider-declared TTL so a token
// is never used right at its expiry edge.
const tokenSafetyMargin = 60 * time.Second

// TokenService manages Daraja OAuth tokens with thread-safe access
type TokenService struct {
	consumerKey    string
	consumerSecret string
	authURL        string
	client         *http.Client
	now            func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// TokenResponse represents the Daraja OAuth response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // Duration in seconds as string
}

// NewTokenService creates a new token service with SSL verification enforced
func NewTokenService(consumerKey, consumerSecret, authURL string) *TokenService {
	return &TokenService{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		authURL:        authURL,
		now:            time.Now,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// WithClock overrides the clock, for tests.
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	ts.now = now
	return ts
}

// GetToken returns a valid access token, refreshing if necessary
func (ts *TokenService) GetToken(ctx context.Context) (string, error) {
	// Fast path: check if current token is valid (read lock)
	ts.mu.RLock()
	if ts.now().Before(ts.expiresAt) && ts.token != "" {
		token := ts.token
		ts.mu.RUnlock()
		return token, nil
	}
	ts.mu.RUnlock()

	// Slow path: token expired or missing, need to refresh
	return ts.refreshTokenSafe(ctx)
}

// refreshTokenSafe ensures only one goroutine refreshes the token at a time
func (ts *TokenService) refreshTokenSafe(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if ts.now().Before(ts.expiresAt) && ts.token != "" {
		return ts.token, nil
	}

	if err := ts.refreshToken(ctx); err != nil {
		return "", err
	}

	return ts.token, nil
}

// refreshToken fetches a new token from the provider (caller must hold write lock)
func (ts *TokenService) refreshToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.authURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create auth request: %v", ErrAuth, err)
	}

	// Set Basic Auth header
	auth := base64.StdEncoding.EncodeToString(
		[]byte(ts.consumerKey + ":" + ts.consumerSecret),
	)
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: token request failed: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: token request returned status %d: %s", ErrAuth, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("%w: failed to decode token response: %v", ErrAuth, err)
	}

	if tokenResp.AccessToken == "" {
		return fmt.Errorf("%w: received empty access token", ErrAuth)
	}

	// Parse expiry (the provider returns seconds as string, typically "3599")
	expiresIn := 3599 * time.Second
	if tokenResp.ExpiresIn != "" {
		var seconds int
		if _, err := fmt.Sscanf(tokenResp.ExpiresIn, "%d", &seconds); err == nil {
			expiresIn = time.Duration(seconds) * time.Second
		}
	}

	ts.token = tokenResp.AccessToken
	ts.expiresAt = ts.now().Add(expiresIn - tokenSafetyMargin)

	return nil
}
