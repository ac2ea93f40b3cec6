// Package services contains the credential resolution, OAuth2 authorization
// and action dispatch logic sitting between the HTTP surface and the
// cache/store/secret tiers.
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"go.pilab.hu/toolbridge/cache"
	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
	"go.pilab.hu/toolbridge/internal/besteffort"
	"go.pilab.hu/toolbridge/internal/metrics"
	"go.pilab.hu/toolbridge/secrets"
)

const (
	// orgConfigCacheTTL bounds staleness of cached org auth configs.
	orgConfigCacheTTL = 10 * time.Minute
	// tokenCacheTTL is how long a freshly refreshed access token is kept in
	// the cache under token:{credentialId}.
	tokenCacheTTL = 5 * time.Minute
	// refreshExpiryBuffer: tokens expiring within this window are refreshed.
	refreshExpiryBuffer = 5 * time.Minute
	// oauthHTTPTimeout applies to token refresh and exchange calls.
	oauthHTTPTimeout = 30 * time.Second
	// defaultTokenLifetime is assumed when the provider omits expires_in.
	defaultTokenLifetime = time.Hour
)

// AuthResolver resolves org auth configs and user credentials, performing
// cache-then-store reads, best-effort secret mirroring and token refresh.
//
// Reads favor the cache with store fallback; writes invalidate the cache
// synchronously before returning; the tenant-isolation check always runs
// before any cache lookup.
type AuthResolver struct {
	tools   domain.ToolRepository
	configs domain.AuthConfigRepository
	creds   domain.CredentialRepository
	cache   cache.Cache
	syncer  *secrets.Syncer
	metrics *metrics.Metrics

	httpClient *http.Client

	// refreshGroup serializes concurrent refreshes per credential id, so two
	// requests racing on the same expiring credential issue one provider call.
	refreshGroup singleflight.Group
}

// NewAuthResolver wires the resolver. syncer may be nil when no secret store
// is configured.
func NewAuthResolver(
	tools domain.ToolRepository,
	configs domain.AuthConfigRepository,
	creds domain.CredentialRepository,
	c cache.Cache,
	syncer *secrets.Syncer,
	m *metrics.Metrics,
) *AuthResolver {
	return &AuthResolver{
		tools:      tools,
		configs:    configs,
		creds:      creds,
		cache:      c,
		syncer:     syncer,
		metrics:    m,
		httpClient: &http.Client{Timeout: oauthHTTPTimeout},
	}
}

// ValidateToolAccess fetches the tool and enforces tenant isolation. A tool
// belonging to a different organization is an authorization failure, not a
// not-found.
func (r *AuthResolver) ValidateToolAccess(ctx context.Context, toolID, orgID string) (*domain.Tool, error) {
	tool, err := r.tools.GetToolByID(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if tool.OrgID != orgID {
		return nil, errors.NewUnauthorized("tool " + toolID + " does not belong to organization " + orgID)
	}
	return tool, nil
}

// GetOrgAuthConfig resolves the org-level auth config for a tool, cache
// first, then the durable store. On a store read the config is mirrored into
// the secret store best-effort and cached before returning.
func (r *AuthResolver) GetOrgAuthConfig(ctx context.Context, orgID, toolID string) (*domain.OrgAuthConfig, error) {
	if _, err := r.ValidateToolAccess(ctx, toolID, orgID); err != nil {
		return nil, err
	}

	key := cache.OrgAuthKey(orgID, toolID)
	if raw, ok := r.cache.Get(ctx, key); ok {
		var cfg domain.OrgAuthConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
			return &cfg, nil
		}
		log.Warn().Str("key", key).Msg("dropping undecodable cached auth config")
		r.cache.Del(ctx, key)
	}

	cfg, err := r.configs.GetAuthConfig(ctx, orgID, toolID)
	if err != nil {
		return nil, err
	}

	if r.syncer != nil {
		besteffort.Attempt(func() (struct{}, error) {
			return struct{}{}, r.syncer.MirrorConfig(ctx, cfg)
		}).Log(ctx, "secret store sync failed, serving config anyway")
	}

	if raw, err := json.Marshal(cfg); err == nil {
		r.cache.Set(ctx, key, string(raw), orgConfigCacheTTL)
	}
	return cfg, nil
}

// GetUserCredentials reads the user's credential from the durable store.
// Tokens are short-lived and security-sensitive, so this path never serves
// from cache.
func (r *AuthResolver) GetUserCredentials(ctx context.Context, orgID, userID, toolID string) (*domain.UserCredential, error) {
	if _, err := r.ValidateToolAccess(ctx, toolID, orgID); err != nil {
		return nil, err
	}
	return r.creds.GetCredential(ctx, orgID, userID, toolID)
}

// RefreshUserToken returns a usable access token for the credential,
// refreshing it against the provider when it expires within the buffer.
// Refresh failures propagate: a stale token must not be used.
func (r *AuthResolver) RefreshUserToken(ctx context.Context, cred *domain.UserCredential) (string, error) {
	if !cred.ExpiresWithin(refreshExpiryBuffer) {
		return cred.AccessToken, nil
	}

	v, err, _ := r.refreshGroup.Do(cred.ID, func() (any, error) {
		return r.refresh(ctx, cred)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *AuthResolver) refresh(ctx context.Context, cred *domain.UserCredential) (string, error) {
	tool, err := r.ValidateToolAccess(ctx, cred.ToolID, cred.OrgID)
	if err != nil {
		return "", err
	}

	cfg, err := r.GetOrgAuthConfig(ctx, cred.OrgID, cred.ToolID)
	if err != nil {
		return "", err
	}
	settings, err := cfg.OAuth2()
	if err != nil {
		return "", err
	}
	if settings.ClientID == "" || settings.ClientSecret == "" {
		return "", errors.NewBadRequest("oauth2 config for tool " + cred.ToolID + " is missing clientId or clientSecret")
	}

	endpoint, err := endpointFor(settings, tool)
	if err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint:     endpoint,
	}

	refreshCtx, cancel := context.WithTimeout(
		context.WithValue(ctx, oauth2.HTTPClient, r.httpClient), oauthHTTPTimeout)
	defer cancel()

	tok, err := conf.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		r.metrics.TokenRefreshFailTotal.Inc()
		return "", errors.NewUpstreamFailure("token refresh failed: " + err.Error())
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		cred.ExpiresAt = time.Now().Add(defaultTokenLifetime)
	} else {
		cred.ExpiresAt = tok.Expiry
	}

	if err := r.SetUserCredentials(ctx, cred); err != nil {
		return "", err
	}
	r.metrics.TokensRefreshedTotal.Inc()

	r.cache.Set(ctx, cache.TokenKey(cred.ID), tok.AccessToken, tokenCacheTTL)

	log.Debug().Str("credentialID", cred.ID).Time("expires_at", cred.ExpiresAt).Msg("user token refreshed")
	return tok.AccessToken, nil
}

// SetOrgAuthConfig upserts the org auth config and invalidates its cache key
// before returning.
func (r *AuthResolver) SetOrgAuthConfig(ctx context.Context, orgID, toolID string, typ domain.AuthType, config map[string]any) (*domain.OrgAuthConfig, error) {
	if _, err := r.ValidateToolAccess(ctx, toolID, orgID); err != nil {
		return nil, err
	}
	if !domain.ValidAuthType(typ) {
		return nil, errors.NewBadRequest("unsupported auth type: " + string(typ))
	}

	cfg := &domain.OrgAuthConfig{
		OrgID:  orgID,
		ToolID: toolID,
		Type:   typ,
		Config: config,
	}
	if err := r.configs.UpsertAuthConfig(ctx, cfg); err != nil {
		return nil, err
	}
	r.cache.Del(ctx, cache.OrgAuthKey(orgID, toolID))
	return cfg, nil
}

// DeleteOrgAuthConfig removes the config, invalidates the cache key and
// removes the mirrored secret best-effort.
func (r *AuthResolver) DeleteOrgAuthConfig(ctx context.Context, orgID, toolID string) error {
	if _, err := r.ValidateToolAccess(ctx, toolID, orgID); err != nil {
		return err
	}
	if err := r.configs.DeleteAuthConfig(ctx, orgID, toolID); err != nil {
		return err
	}
	r.cache.Del(ctx, cache.OrgAuthKey(orgID, toolID))

	if r.syncer != nil {
		besteffort.Attempt(func() (struct{}, error) {
			return struct{}{}, r.syncer.RemoveConfig(ctx, orgID, toolID)
		}).Log(ctx, "secret store delete failed, config removed anyway")
	}
	return nil
}

// SetUserCredentials upserts the credential and invalidates both of its
// cache keys before returning.
func (r *AuthResolver) SetUserCredentials(ctx context.Context, cred *domain.UserCredential) error {
	if err := r.creds.UpsertCredential(ctx, cred); err != nil {
		return err
	}
	r.cache.Del(ctx, cache.UserCredKey(cred.OrgID, cred.UserID, cred.ToolID))
	r.cache.Del(ctx, cache.TokenKey(cred.ID))
	return nil
}

// DeleteUserCredentials removes the credential and invalidates its cache
// keys.
func (r *AuthResolver) DeleteUserCredentials(ctx context.Context, orgID, userID, toolID string) error {
	if _, err := r.ValidateToolAccess(ctx, toolID, orgID); err != nil {
		return err
	}

	cred, err := r.creds.GetCredential(ctx, orgID, userID, toolID)
	if err != nil {
		return err
	}
	if err := r.creds.DeleteCredential(ctx, orgID, userID, toolID); err != nil {
		return err
	}
	r.cache.Del(ctx, cache.UserCredKey(orgID, userID, toolID))
	r.cache.Del(ctx, cache.TokenKey(cred.ID))
	return nil
}
