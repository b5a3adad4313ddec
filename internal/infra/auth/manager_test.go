package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func newTestManager(t *testing.T, serverURL string) *Manager {
	t.Helper()

	m, err := New(Credentials{
		ClientID:     "test_client",
		ClientSecret: "test_secret",
		RefreshToken: "test_refresh",
	})
	assert.NoError(t, err)
	m.tokenURL = serverURL
	return m
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(Credentials{ClientID: "only_id"})
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = New(Credentials{ClientSecret: "only_secret"})
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestGetAccessToken_RefreshesAndCaches(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test_client", user)
		assert.Equal(t, "test_secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test_refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh_token", "expires_in": 3600}`)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	token, err := m.GetAccessToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "fresh_token", token)
	assert.Equal(t, 1, requests)

	// Expiry carries the safety margin.
	assert.Equal(t, now.Add(3600*time.Second-expiryMargin), m.expiresAt)

	// Second call within the lifetime reuses the cached token.
	token, err = m.GetAccessToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "fresh_token", token)
	assert.Equal(t, 1, requests)

	// Once the margin-adjusted expiry passes, the token is refreshed.
	now = now.Add(3600*time.Second - expiryMargin)
	token, err = m.GetAccessToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "fresh_token", token)
	assert.Equal(t, 2, requests)
}

func TestGetAccessToken_ExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "Refresh token revoked"}`)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	_, err := m.GetAccessToken(context.Background())
	assert.Error(t, err)

	var exchangeErr *TokenExchangeError
	assert.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Equal(t, "Refresh token revoked", exchangeErr.Description)
}

func TestGetAccessToken_NoRefreshToken(t *testing.T) {
	m, err := New(Credentials{ClientID: "test_client", ClientSecret: "test_secret"})
	assert.NoError(t, err)

	_, err = m.GetAccessToken(context.Background())
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestRefresh_AdoptsRotatedToken(t *testing.T) {
	refreshTokens := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		refreshTokens = append(refreshTokens, r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh_token", "expires_in": 3600, "refresh_token": "rotated_refresh"}`)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	ctx := context.Background()
	assert.NoError(t, m.Refresh(ctx))
	assert.Equal(t, "rotated_refresh", m.RefreshToken())

	// The rotated token is used for subsequent refreshes.
	assert.NoError(t, m.Refresh(ctx))
	assert.Equal(t, []string{"test_refresh", "rotated_refresh"}, refreshTokens)
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test_code", r.PostForm.Get("code"))
		assert.Equal(t, "http://127.0.0.1:8888/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "initial_token", "expires_in": 3600, "refresh_token": "initial_refresh"}`)
	}))
	defer server.Close()

	m, err := New(Credentials{ClientID: "test_client", ClientSecret: "test_secret"})
	assert.NoError(t, err)
	m.tokenURL = server.URL

	err = m.ExchangeCode(context.Background(), "test_code", "http://127.0.0.1:8888/callback")
	assert.NoError(t, err)
	assert.Equal(t, "initial_refresh", m.RefreshToken())

	token, err := m.Token()
	assert.NoError(t, err)
	assert.Equal(t, "initial_token", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
}
