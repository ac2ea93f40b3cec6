package domain

import (
	"strings"
	"time"

	"go.pilab.hu/toolbridge/errors"
)

// AuthType enumerates the supported org-level auth mechanisms for a tool.
type AuthType string

const (
	AuthTypeAPIKey AuthType = "apiKey"
	AuthTypeOAuth2 AuthType = "oauth2"
)

// OrgAuthConfig holds organization-level credentials for calling a tool.
// At most one active config exists per (org, tool) pair; it is mutated only
// through explicit upsert and never deleted implicitly.
type OrgAuthConfig struct {
	ID        string         `bson:"_id" json:"id"`
	OrgID     string         `bson:"org_id" json:"orgId"`
	ToolID    string         `bson:"tool_id" json:"toolId"`
	Type      AuthType       `bson:"type" json:"type"`
	Config    map[string]any `bson:"config" json:"config"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// OAuth2Settings is the typed view of an oauth2 config map.
type OAuth2Settings struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	Scope        string
	RedirectURIs []string
}

// APIKeySettings is the typed view of an apiKey config map. When only the
// generic APIKey field is present the key is sent as a bearer token in the
// Authorization header.
type APIKeySettings struct {
	HeaderName  string
	HeaderValue string
	APIKey      string
}

func configString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// OAuth2 parses the config map into OAuth2Settings. It fails bad_request
// when the config is not of type oauth2.
func (c *OrgAuthConfig) OAuth2() (*OAuth2Settings, error) {
	if c.Type != AuthTypeOAuth2 {
		return nil, errors.NewBadRequest("auth config is not of type oauth2")
	}

	s := &OAuth2Settings{
		Provider:     configString(c.Config, "provider"),
		ClientID:     configString(c.Config, "clientId"),
		ClientSecret: configString(c.Config, "clientSecret"),
		AuthorizeURL: configString(c.Config, "authorizeUrl"),
		TokenURL:     configString(c.Config, "tokenUrl"),
		Scope:        configString(c.Config, "scope"),
	}

	switch v := c.Config["redirectUris"].(type) {
	case []string:
		s.RedirectURIs = v
	case []any:
		for _, u := range v {
			if str, ok := u.(string); ok {
				s.RedirectURIs = append(s.RedirectURIs, str)
			}
		}
	case string:
		if v != "" {
			s.RedirectURIs = []string{v}
		}
	}
	if single := configString(c.Config, "redirectUri"); single != "" {
		s.RedirectURIs = append([]string{single}, s.RedirectURIs...)
	}

	return s, nil
}

// APIKey parses the config map into APIKeySettings.
func (c *OrgAuthConfig) APIKey() (*APIKeySettings, error) {
	if c.Type != AuthTypeAPIKey {
		return nil, errors.NewBadRequest("auth config is not of type apiKey")
	}
	return &APIKeySettings{
		HeaderName:  configString(c.Config, "headerName"),
		HeaderValue: configString(c.Config, "headerValue"),
		APIKey:      configString(c.Config, "apiKey"),
	}, nil
}

// AuthHeader returns the header to inject for an apiKey config.
func (s *APIKeySettings) AuthHeader() (name, value string, ok bool) {
	if s.HeaderName != "" && s.HeaderValue != "" {
		return s.HeaderName, s.HeaderValue, true
	}
	if s.APIKey != "" {
		return "Authorization", "Bearer " + s.APIKey, true
	}
	return "", "", false
}

// Scopes splits the space- or comma-separated scope string.
func (s *OAuth2Settings) Scopes() []string {
	raw := strings.FieldsFunc(s.Scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
	scopes := make([]string, 0, len(raw))
	for _, sc := range raw {
		if sc != "" {
			scopes = append(scopes, sc)
		}
	}
	return scopes
}

// ValidAuthType reports whether t is a supported auth type.
func ValidAuthType(t AuthType) bool {
	return t == AuthTypeAPIKey || t == AuthTypeOAuth2
}
