package domain

import "time"

// OAuthStateTTL bounds the lifetime of an authorization state token. The
// cache entry carries the same TTL; the timestamp check in the callback is
// defense in depth on top of it.
const OAuthStateTTL = 300 * time.Second

// OAuthState binds an authorization redirect to its callback. It lives only
// in the cache, keyed by a random state token, and is consumed exactly once:
// deleted on first lookup whether or not the callback succeeds.
//
// ToolID (not a human-readable key) is stored so the callback never has to
// trust a client-supplied tool identifier.
type OAuthState struct {
	OrgID     string    `json:"orgId"`
	UserID    string    `json:"userId"`
	ToolID    string    `json:"toolId"`
	Timestamp time.Time `json:"timestamp"`
}

// Expired reports whether the state is older than the allowed TTL.
func (s *OAuthState) Expired(now time.Time) bool {
	return now.Sub(s.Timestamp) > OAuthStateTTL
}
