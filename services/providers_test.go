package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

func TestEndpointForExplicitURLsWin(t *testing.T) {
	settings := &domain.OAuth2Settings{
		Provider:     "google",
		AuthorizeURL: "https://custom.example.com/authorize",
		TokenURL:     "https://custom.example.com/token",
	}

	ep, err := endpointFor(settings, testTool())
	require.NoError(t, err)
	assert.Equal(t, "https://custom.example.com/authorize", ep.AuthURL)
	assert.Equal(t, "https://custom.example.com/token", ep.TokenURL)
}

func TestEndpointForKnownProvider(t *testing.T) {
	ep, err := endpointFor(&domain.OAuth2Settings{Provider: "GitHub"}, testTool())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login/oauth/authorize", ep.AuthURL)
	assert.Equal(t, "https://github.com/login/oauth/access_token", ep.TokenURL)
}

func TestEndpointForFallsBackToToolName(t *testing.T) {
	tool := testTool()
	tool.Name = "slack"

	ep, err := endpointFor(&domain.OAuth2Settings{}, tool)
	require.NoError(t, err)
	assert.Contains(t, ep.AuthURL, "slack.com")
}

func TestEndpointForPartialOverride(t *testing.T) {
	settings := &domain.OAuth2Settings{
		Provider: "github",
		TokenURL: "https://ghe.acme.com/login/oauth/access_token",
	}

	ep, err := endpointFor(settings, testTool())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login/oauth/authorize", ep.AuthURL)
	assert.Equal(t, "https://ghe.acme.com/login/oauth/access_token", ep.TokenURL)
}

func TestEndpointForUnknownProvider(t *testing.T) {
	_, err := endpointFor(&domain.OAuth2Settings{Provider: "homegrown"}, testTool())
	assert.True(t, errors.IsBadRequest(err))
}

func TestEndpointForUnknownProviderLoneTokenURL(t *testing.T) {
	settings := &domain.OAuth2Settings{
		Provider: "homegrown",
		TokenURL: "https://auth.acme.com/oauth/token",
	}

	ep, err := endpointFor(settings, testTool())
	require.NoError(t, err)
	assert.Equal(t, "https://auth.acme.com/oauth/token", ep.TokenURL)
	assert.Empty(t, ep.AuthURL)
}
