package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"go.pilab.hu/toolbridge/cache"
	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
	"go.pilab.hu/toolbridge/internal/metrics"
)

const stateTokenBytes = 32

// OAuthFlow drives the authorization-code flow for user credentials:
// redirect generation with a CSRF state token, then callback validation,
// code-for-token exchange and credential persistence.
type OAuthFlow struct {
	resolver *AuthResolver
	cache    cache.Cache
	metrics  *metrics.Metrics

	baseURL        string
	allowedDomains []string
	httpClient     *http.Client
}

// NewOAuthFlow wires the flow controller. baseURL is the externally visible
// address used when no request host is available; allowedDomains bounds
// dynamically built redirect URIs.
func NewOAuthFlow(resolver *AuthResolver, c cache.Cache, m *metrics.Metrics, baseURL string, allowedDomains []string) *OAuthFlow {
	return &OAuthFlow{
		resolver:       resolver,
		cache:          c,
		metrics:        m,
		baseURL:        baseURL,
		allowedDomains: allowedDomains,
		httpClient:     &http.Client{Timeout: oauthHTTPTimeout},
	}
}

// AuthorizeRedirect is the outcome of GetAuthorizeURL.
type AuthorizeRedirect struct {
	URL     string
	State   string
	ToolKey string
}

// CallbackResult identifies the credential persisted by a completed
// callback; the HTTP layer renders it.
type CallbackResult struct {
	CredentialID string
	ToolKey      string
	ToolID       string
	OrgID        string
}

// GetAuthorizeURL validates tool access and the org's OAuth2 config, stores
// a single-use state token in the cache and returns the provider redirect.
func (f *OAuthFlow) GetAuthorizeURL(ctx context.Context, toolID, orgID, userID, requestHost string) (*AuthorizeRedirect, error) {
	tool, err := f.resolver.ValidateToolAccess(ctx, toolID, orgID)
	if err != nil {
		return nil, err
	}

	cfg, err := f.resolver.GetOrgAuthConfig(ctx, orgID, toolID)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.OAuth2()
	if err != nil {
		return nil, err
	}
	if settings.ClientID == "" || settings.ClientSecret == "" {
		return nil, errors.NewBadRequest("oauth2 config for tool " + toolID + " is missing clientId or clientSecret")
	}

	endpoint, err := endpointFor(settings, tool)
	if err != nil {
		return nil, err
	}
	if endpoint.AuthURL == "" {
		return nil, errors.NewBadRequest("oauth2 config for tool " + toolID + " has no authorizeUrl")
	}

	redirectURI, err := SelectRedirectURI(settings, requestHost, f.baseURL, f.allowedDomains)
	if err != nil {
		return nil, err
	}

	// The state is cache-resident only; without a reachable cache the
	// callback could never validate it, so refuse up front.
	if !f.cache.Available() {
		return nil, errors.NewUpstreamFailure("state store unavailable, cannot start authorization")
	}

	state, err := newStateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	stateDoc, err := json.Marshal(domain.OAuthState{
		OrgID:     orgID,
		UserID:    userID,
		ToolID:    toolID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	f.cache.Set(ctx, cache.StateKey(state), string(stateDoc), domain.OAuthStateTTL)

	conf := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       settings.Scopes(),
		Endpoint:     endpoint,
	}

	log.Info().Str("toolID", toolID).Str("orgID", orgID).Str("userID", userID).
		Str("redirect_uri", redirectURI).Msg("OAuth authorization started")

	return &AuthorizeRedirect{
		URL:     conf.AuthCodeURL(state),
		State:   state,
		ToolKey: tool.Name,
	}, nil
}

// HandleCallback consumes the state token, exchanges the code for tokens and
// persists the credential. The state is deleted on first lookup, before any
// further validation, so it can never be replayed.
func (f *OAuthFlow) HandleCallback(ctx context.Context, code, state, requestHost string) (*CallbackResult, error) {
	key := cache.StateKey(state)
	raw, ok := f.cache.Get(ctx, key)
	f.cache.Del(ctx, key)
	if !ok {
		f.metrics.OAuthCallbacksTotal.WithLabelValues("invalid_state").Inc()
		return nil, errors.NewUnauthorized("invalid or expired OAuth state")
	}

	var st domain.OAuthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		f.metrics.OAuthCallbacksTotal.WithLabelValues("invalid_state").Inc()
		return nil, errors.NewUnauthorized("invalid or expired OAuth state")
	}
	// Defense in depth beyond the cache TTL.
	if st.Expired(time.Now().UTC()) {
		f.metrics.OAuthCallbacksTotal.WithLabelValues("expired_state").Inc()
		return nil, errors.NewUnauthorized("OAuth state has expired")
	}

	// The tool identity comes from the stored state, never from the caller.
	tool, err := f.resolver.ValidateToolAccess(ctx, st.ToolID, st.OrgID)
	if err != nil {
		return nil, err
	}

	cfg, err := f.resolver.GetOrgAuthConfig(ctx, st.OrgID, st.ToolID)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.OAuth2()
	if err != nil {
		return nil, err
	}

	endpoint, err := endpointFor(settings, tool)
	if err != nil {
		return nil, err
	}

	// Must match the URI sent at authorize time; providers verify exact
	// equality.
	redirectURI, err := SelectRedirectURI(settings, requestHost, f.baseURL, f.allowedDomains)
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     endpoint,
	}

	exchangeCtx, cancel := context.WithTimeout(
		context.WithValue(ctx, oauth2.HTTPClient, f.httpClient), oauthHTTPTimeout)
	defer cancel()

	tok, err := conf.Exchange(exchangeCtx, code)
	if err != nil {
		f.metrics.OAuthCallbacksTotal.WithLabelValues("exchange_failed").Inc()
		if retrieveErr, ok := err.(*oauth2.RetrieveError); ok && len(retrieveErr.Body) > 0 {
			return nil, errors.NewUpstreamFailure("token exchange rejected: " + string(retrieveErr.Body))
		}
		return nil, errors.NewUpstreamFailure("token exchange failed: " + err.Error())
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	cred := &domain.UserCredential{
		OrgID:        st.OrgID,
		UserID:       st.UserID,
		ToolID:       st.ToolID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := f.resolver.SetUserCredentials(ctx, cred); err != nil {
		return nil, err
	}

	f.metrics.OAuthCallbacksTotal.WithLabelValues("success").Inc()
	log.Info().Str("toolID", st.ToolID).Str("orgID", st.OrgID).Str("userID", st.UserID).
		Str("credentialID", cred.ID).Msg("OAuth callback completed")

	return &CallbackResult{
		CredentialID: cred.ID,
		ToolKey:      tool.Name,
		ToolID:       st.ToolID,
		OrgID:        st.OrgID,
	}, nil
}

// newStateToken returns a cryptographically random, URL-safe token.
func newStateToken() (string, error) {
	buf := make([]byte, stateTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
