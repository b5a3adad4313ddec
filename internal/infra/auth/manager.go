// Package auth manages Spotify access tokens obtained from a long-lived
// refresh token.
package auth

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

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultTokenURL = "https://accounts.spotify.com/api/token"

	// Access tokens are treated as expired this long before their
	// reported lifetime ends, so a token in flight never expires
	// mid-request.
	expiryMargin = 60 * time.Second
)

// ErrCredentialsMissing indicates that client credentials or the refresh
// token are not configured.
var ErrCredentialsMissing = errors.New("spotify credentials missing")

// TokenExchangeError represents a failed token request against the
// Spotify accounts service.
type TokenExchangeError struct {
	Status      int
	Description string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (status %d): %s", e.Status, e.Description)
}

// Credentials holds the app credentials and the user's refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Manager caches an access token and refreshes it on demand.
// It implements oauth2.TokenSource.
type Manager struct {
	mu          sync.Mutex
	creds       Credentials
	accessToken string
	expiresAt   time.Time

	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// tokenResponse represents the accounts service token endpoint response.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// New creates a new token manager.
func New(creds Credentials) (*Manager, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, ErrCredentialsMissing
	}

	return &Manager{
		creds:      creds,
		tokenURL:   defaultTokenURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}, nil
}

// GetAccessToken returns a cached access token, refreshing it first if it
// has expired or was never fetched.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.now().Before(m.expiresAt) {
		return m.accessToken, nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.accessToken, nil
}

// Refresh discards the cached token and fetches a new one.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.creds.RefreshToken == "" {
		return errors.WithMessage(ErrCredentialsMissing, "no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.creds.RefreshToken)

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return err
	}

	m.adoptLocked(token)
	zlog.Debug().Msgf("access token refreshed, valid until %s", m.expiresAt.Format(time.RFC3339))
	return nil
}

// ExchangeCode trades an authorization code for tokens. Used by the
// one-time authorization flow to obtain the initial refresh token.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURI string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.adoptLocked(token)
	m.mu.Unlock()
	return nil
}

func (m *Manager) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	if resp.StatusCode != http.StatusOK || token.Error != "" {
		description := token.ErrorDescription
		if description == "" {
			description = token.Error
		}
		if description == "" {
			description = http.StatusText(resp.StatusCode)
		}
		return nil, &TokenExchangeError{Status: resp.StatusCode, Description: description}
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	return &token, nil
}

// adoptLocked stores a token response. The accounts service may rotate
// the refresh token; when it does, the new one replaces the old.
func (m *Manager) adoptLocked(token *tokenResponse) {
	m.accessToken = token.AccessToken
	m.expiresAt = m.now().Add(time.Duration(token.ExpiresIn)*time.Second - expiryMargin)
	if token.RefreshToken != "" {
		m.creds.RefreshToken = token.RefreshToken
	}
}

// RefreshToken returns the current refresh token. It may differ from the
// configured one after a rotation.
func (m *Manager) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.RefreshToken
}

// Token implements oauth2.TokenSource, letting the manager back an
// authenticated *http.Client via oauth2.NewClient.
func (m *Manager) Token() (*oauth2.Token, error) {
	accessToken, err := m.GetAccessToken(context.Background())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	expiry := m.expiresAt
	m.mu.Unlock()

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
