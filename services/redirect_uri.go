package services

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

// callbackPath is where providers send the browser back to.
const callbackPath = "/auth/oauth/callback"

// suspiciousParams are query parameters commonly abused for open redirects.
// Their presence is logged, not rejected: some providers legitimately carry
// them.
var suspiciousParams = []string{"redirect", "redirect_uri", "url", "next", "return_to"}

// SelectRedirectURI picks the redirect URI for an OAuth2 authorization, by
// priority: a single configured URI, the best host match among several
// configured URIs, then a URI built from the request host and validated
// against the allowed-domain list. It is a pure function of its inputs so
// the callback can deterministically re-derive the same URI; providers
// validate an exact match.
func SelectRedirectURI(settings *domain.OAuth2Settings, requestHost, baseURL string, allowedDomains []string) (string, error) {
	uris := settings.RedirectURIs

	if len(uris) == 1 {
		if err := validateRedirectURI(uris[0]); err != nil {
			return "", err
		}
		return uris[0], nil
	}

	if len(uris) > 1 {
		selected := uris[0]
		for _, candidate := range uris {
			u, err := url.Parse(candidate)
			if err != nil {
				continue
			}
			if requestHost != "" && u.Host == requestHost {
				selected = candidate
				break
			}
		}
		if err := validateRedirectURI(selected); err != nil {
			return "", err
		}
		return selected, nil
	}

	built, err := buildRedirectURI(requestHost, baseURL)
	if err != nil {
		return "", err
	}
	if err := checkAllowedDomain(built, allowedDomains); err != nil {
		return "", err
	}
	if err := validateRedirectURI(built); err != nil {
		return "", err
	}
	return built, nil
}

// buildRedirectURI derives a callback URI from the request host, falling
// back to the configured base URL.
func buildRedirectURI(requestHost, baseURL string) (string, error) {
	if requestHost != "" {
		scheme := "https"
		if isLocalHost(requestHost) {
			scheme = "http"
		}
		return scheme + "://" + requestHost + callbackPath, nil
	}
	if baseURL == "" {
		return "", errors.NewBadRequest("no redirect URI configured and no base URL to build one from")
	}
	return strings.TrimSuffix(baseURL, "/") + callbackPath, nil
}

// checkAllowedDomain rejects dynamically built URIs whose host is outside the
// allow-list. Configured URIs skip this check: the org explicitly chose them.
func checkAllowedDomain(rawURI string, allowedDomains []string) error {
	if len(allowedDomains) == 0 {
		return nil
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return errors.NewBadRequest("invalid redirect URI: " + rawURI)
	}
	host := u.Hostname()
	if isLocalHost(host) {
		return nil
	}
	for _, d := range allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return errors.NewBadRequest("redirect URI host " + host + " is not in the allowed domain list")
}

// validateRedirectURI enforces the protocol policy and logs suspicious
// patterns without rejecting them.
func validateRedirectURI(rawURI string) error {
	u, err := url.Parse(rawURI)
	if err != nil {
		return errors.NewBadRequest("invalid redirect URI: " + rawURI)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewBadRequest("redirect URI scheme must be http or https, got " + u.Scheme)
	}

	query := u.Query()
	for _, p := range suspiciousParams {
		if query.Has(p) {
			log.Warn().Str("redirect_uri", rawURI).Str("param", p).
				Msg("redirect URI carries an open-redirect style query parameter")
		}
	}
	if isLocalHost(u.Hostname()) {
		log.Warn().Str("redirect_uri", rawURI).Msg("redirect URI points at localhost")
	}
	return nil
}

func isLocalHost(host string) bool {
	if host == "::1" || host == "[::1]" {
		return true
	}
	h := host
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	return h == "localhost" || h == "127.0.0.1"
}
