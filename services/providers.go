package services

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

// defaultEndpoints maps well-known provider names to their OAuth2 endpoints.
// The table is static; a provider outside it must carry explicit
// authorizeUrl/tokenUrl in its org config.
var defaultEndpoints = map[string]oauth2.Endpoint{
	"google":     endpoints.Google,
	"github":     endpoints.GitHub,
	"gitlab":     endpoints.GitLab,
	"slack":      endpoints.Slack,
	"microsoft":  endpoints.Microsoft,
	"linkedin":   endpoints.LinkedIn,
	"spotify":    endpoints.Spotify,
	"zoom":       endpoints.Zoom,
	"facebook":   endpoints.Facebook,
	"instagram":  endpoints.Instagram,
	"twitch":     endpoints.Twitch,
	"paypal":     endpoints.PayPal,
	"bitbucket":  endpoints.Bitbucket,
	"amazon":     endpoints.Amazon,
	"yahoo":      endpoints.Yahoo,
	"salesforce": {
		AuthURL:  "https://login.salesforce.com/services/oauth2/authorize",
		TokenURL: "https://login.salesforce.com/services/oauth2/token",
	},
	"hubspot": {
		AuthURL:  "https://app.hubspot.com/oauth/authorize",
		TokenURL: "https://api.hubapi.com/oauth/v1/token",
	},
}

// endpointFor resolves the OAuth2 endpoints for a tool's settings. Explicit
// URLs in the config win; otherwise the provider name (falling back to the
// tool name) is looked up in the static table. An unknown provider without
// explicit URLs is a bad_request.
func endpointFor(settings *domain.OAuth2Settings, tool *domain.Tool) (oauth2.Endpoint, error) {
	if settings.AuthorizeURL != "" && settings.TokenURL != "" {
		return oauth2.Endpoint{AuthURL: settings.AuthorizeURL, TokenURL: settings.TokenURL}, nil
	}

	provider := settings.Provider
	if provider == "" {
		provider = tool.Name
	}
	ep, ok := defaultEndpoints[strings.ToLower(provider)]
	if !ok {
		// A lone tokenUrl still serves refresh and exchange; callers that
		// need the authorize endpoint must check AuthURL themselves.
		if settings.TokenURL != "" {
			return oauth2.Endpoint{AuthURL: settings.AuthorizeURL, TokenURL: settings.TokenURL}, nil
		}
		return oauth2.Endpoint{}, errors.NewBadRequest(
			"unknown OAuth2 provider " + provider + " and no tokenUrl configured")
	}
	if settings.AuthorizeURL != "" {
		ep.AuthURL = settings.AuthorizeURL
	}
	if settings.TokenURL != "" {
		ep.TokenURL = settings.TokenURL
	}
	return ep, nil
}
