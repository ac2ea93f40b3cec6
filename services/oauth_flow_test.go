package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/toolbridge/cache"
	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
	"go.pilab.hu/toolbridge/internal/metrics"
	"go.pilab.hu/toolbridge/secrets"
)

func newTestFlow(t *testing.T, configs *fakeConfigRepo, creds *fakeCredRepo, c cache.Cache) *OAuthFlow {
	t.Helper()
	syncer := secrets.NewSyncer(secrets.NewMemory(), "tb")
	resolver := NewAuthResolver(newFakeToolRepo(testTool()), configs, creds, c, syncer, metrics.NewUnregistered())
	return NewOAuthFlow(resolver, c, metrics.NewUnregistered(), "https://bridge.example.com", nil)
}

func flowOAuthConfig(authorizeURL, tokenURL string) *domain.OrgAuthConfig {
	return &domain.OrgAuthConfig{
		OrgID: "O1", ToolID: "T1",
		Type: domain.AuthTypeOAuth2,
		Config: map[string]any{
			"clientId":     "cid",
			"clientSecret": "csecret",
			"authorizeUrl": authorizeURL,
			"tokenUrl":     tokenURL,
			"scope":        "read write",
			"redirectUris": []any{"https://bridge.example.com/auth/oauth/callback"},
		},
	}
}

func TestGetAuthorizeURL(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)
	ctx := context.Background()

	redirect, err := flow.GetAuthorizeURL(ctx, "T1", "O1", "U1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, redirect.State)
	assert.Equal(t, "x", redirect.ToolKey)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, redirect.State, q.Get("state"))
	assert.Equal(t, "https://bridge.example.com/auth/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "read write", q.Get("scope"))

	// The state doc is in the cache, bound to the initiating identities.
	raw, ok := mem.Get(ctx, cache.StateKey(redirect.State))
	require.True(t, ok)
	var st domain.OAuthState
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, "O1", st.OrgID)
	assert.Equal(t, "U1", st.UserID)
	assert.Equal(t, "T1", st.ToolID)
}

func TestGetAuthorizeURLRejectsAPIKeyConfig(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := &domain.OrgAuthConfig{
		OrgID: "O1", ToolID: "T1",
		Type:   domain.AuthTypeAPIKey,
		Config: map[string]any{"apiKey": "k"},
	}
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)

	_, err := flow.GetAuthorizeURL(context.Background(), "T1", "O1", "U1", "")
	assert.True(t, errors.IsBadRequest(err))
}

func TestGetAuthorizeURLRequiresAuthorizeEndpoint(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	// A lone tokenUrl is enough for refresh but not for starting the flow.
	cfg := flowOAuthConfig("", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)

	_, err := flow.GetAuthorizeURL(context.Background(), "T1", "O1", "U1", "")
	assert.True(t, errors.IsBadRequest(err))
}

func TestGetAuthorizeURLRefusesWithoutStateStore(t *testing.T) {
	cfg := flowOAuthConfig("https://idp.example.com/authorize", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), cache.Noop{})

	_, err := flow.GetAuthorizeURL(context.Background(), "T1", "O1", "U1", "")
	assert.True(t, errors.IsUpstreamFailure(err))
}

func TestGetAuthorizeURLTenantMismatch(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)

	_, err := flow.GetAuthorizeURL(context.Background(), "T1", "other-org", "U1", "")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestHandleCallbackPersistsCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "code-1", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", server.URL)
	creds := newFakeCredRepo()
	flow := newTestFlow(t, newFakeConfigRepo(cfg), creds, mem)
	ctx := context.Background()

	redirect, err := flow.GetAuthorizeURL(ctx, "T1", "O1", "U1", "")
	require.NoError(t, err)

	result, err := flow.HandleCallback(ctx, "code-1", redirect.State, "")
	require.NoError(t, err)
	assert.Equal(t, "T1", result.ToolID)
	assert.Equal(t, "O1", result.OrgID)
	assert.NotEmpty(t, result.CredentialID)

	stored, err := creds.GetCredential(ctx, "O1", "U1", "T1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, 10*time.Second)
}

func TestHandleCallbackStateIsSingleUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "access-1", "expires_in": 3600})
	}))
	defer server.Close()

	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", server.URL)
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)
	ctx := context.Background()

	redirect, err := flow.GetAuthorizeURL(ctx, "T1", "O1", "U1", "")
	require.NoError(t, err)

	_, err = flow.HandleCallback(ctx, "code-1", redirect.State, "")
	require.NoError(t, err)

	// Replaying the same state must fail: it was consumed on first use.
	_, err = flow.HandleCallback(ctx, "code-1", redirect.State, "")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestHandleCallbackUnknownState(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)

	_, err := flow.HandleCallback(context.Background(), "code-1", "never-issued", "")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestHandleCallbackExpiredState(t *testing.T) {
	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", "https://idp.example.com/token")
	flow := newTestFlow(t, newFakeConfigRepo(cfg), newFakeCredRepo(), mem)
	ctx := context.Background()

	// Insert a state doc whose timestamp predates the allowed window, as if
	// the cache TTL had not fired yet.
	stale, err := json.Marshal(domain.OAuthState{
		OrgID: "O1", UserID: "U1", ToolID: "T1",
		Timestamp: time.Now().UTC().Add(-10 * time.Minute),
	})
	require.NoError(t, err)
	mem.Set(ctx, cache.StateKey("stale-state"), string(stale), time.Minute)

	_, err = flow.HandleCallback(ctx, "code-1", "stale-state", "")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	mem := cache.NewMemory()
	t.Cleanup(mem.Close)
	cfg := flowOAuthConfig("https://idp.example.com/authorize", server.URL)
	creds := newFakeCredRepo()
	flow := newTestFlow(t, newFakeConfigRepo(cfg), creds, mem)
	ctx := context.Background()

	redirect, err := flow.GetAuthorizeURL(ctx, "T1", "O1", "U1", "")
	require.NoError(t, err)

	_, err = flow.HandleCallback(ctx, "bad-code", redirect.State, "")
	assert.True(t, errors.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Equal(t, 0, creds.upserts)
}

func TestStateTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := newStateToken()
		require.NoError(t, err)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
