// Package echo exposes the integration backend over HTTP using labstack/echo.
package echo

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
	"go.pilab.hu/toolbridge/mongodb"
	"go.pilab.hu/toolbridge/services"
)

// orgHeader carries the caller's organization identity. Upstream auth
// middleware is expected to have verified it.
const orgHeader = "X-Org-ID"

// userHeader optionally carries the acting user for action execution.
const userHeader = "X-User-ID"

// IntegrationAPI holds the handler dependencies.
type IntegrationAPI struct {
	resolver *services.AuthResolver
	flow     *services.OAuthFlow
	actions  *services.ActionService
	registry *prometheus.Registry
}

// NewIntegrationAPI initializes the integration API.
func NewIntegrationAPI(
	resolver *services.AuthResolver,
	flow *services.OAuthFlow,
	actions *services.ActionService,
	registry *prometheus.Registry,
) *IntegrationAPI {
	return &IntegrationAPI{
		resolver: resolver,
		flow:     flow,
		actions:  actions,
		registry: registry,
	}
}

// RegisterRoutes registers the integration routes.
func (a *IntegrationAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/auth/:toolId/login", a.LoginHandler)
	e.GET("/auth/oauth/callback", a.CallbackHandler)

	e.POST("/tools/:toolId/auth", a.SetAuthConfigHandler)
	e.GET("/tools/:toolId/auth", a.GetAuthConfigHandler)
	e.DELETE("/tools/:toolId/auth", a.DeleteAuthConfigHandler)
	e.DELETE("/tools/:toolId/credentials", a.DeleteCredentialsHandler)

	e.POST("/actions/:key/execute", a.ExecuteActionHandler)

	e.GET("/healthz", a.HealthHandler)
	if a.registry != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}
}

func errorJSON(c echo.Context, err error) error {
	status := errors.StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	code := "internal_error"
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		code = typed.Code
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"code":    code,
		"message": err.Error(),
	})
}

func orgID(c echo.Context) (string, error) {
	org := c.Request().Header.Get(orgHeader)
	if org == "" {
		return "", errors.NewBadRequest(orgHeader + " header is required")
	}
	return org, nil
}

// LoginHandler starts the OAuth2 authorization flow for a tool and redirects
// the browser to the provider.
func (a *IntegrationAPI) LoginHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}
	userID := c.QueryParam("userId")
	if userID == "" {
		return errorJSON(c, errors.NewBadRequest("userId query parameter is required"))
	}

	redirect, err := a.flow.GetAuthorizeURL(
		c.Request().Context(), c.Param("toolId"), org, userID, c.Request().Host)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Redirect(http.StatusFound, redirect.URL)
}

// CallbackHandler completes the OAuth2 flow. It renders HTML because the
// other party is a browser the provider redirected, not an API client.
func (a *IntegrationAPI) CallbackHandler(c echo.Context) error {
	// Provider-reported denial: the state is left untouched so nothing
	// half-completed is consumed.
	if provErr := c.QueryParam("error"); provErr != "" {
		desc := c.QueryParam("error_description")
		log.Warn().Str("error", provErr).Str("description", desc).
			Msg("OAuth provider returned an error on callback")
		return c.HTML(http.StatusBadRequest, errorPage(provErr, desc))
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.HTML(http.StatusBadRequest, errorPage("invalid_request", "missing code or state parameter"))
	}

	result, err := a.flow.HandleCallback(c.Request().Context(), code, state, c.Request().Host)
	if err != nil {
		return c.HTML(errors.StatusOf(err), errorPage("authorization_failed", err.Error()))
	}

	return c.HTML(http.StatusOK, successPage(result.ToolKey))
}

type setAuthConfigRequest struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// SetAuthConfigHandler upserts the org-level auth config for a tool.
func (a *IntegrationAPI) SetAuthConfigHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}

	var req setAuthConfigRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, errors.NewBadRequest("invalid request body"))
	}

	cfg, err := a.resolver.SetOrgAuthConfig(
		c.Request().Context(), org, c.Param("toolId"), domain.AuthType(req.Type), req.Config)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"type":    cfg.Type,
		"config":  maskConfig(cfg.Config),
	})
}

// GetAuthConfigHandler returns the config with secret values masked.
func (a *IntegrationAPI) GetAuthConfigHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}

	cfg, err := a.resolver.GetOrgAuthConfig(c.Request().Context(), org, c.Param("toolId"))
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"type":    cfg.Type,
		"config":  maskConfig(cfg.Config),
	})
}

// DeleteAuthConfigHandler removes the org-level auth config.
func (a *IntegrationAPI) DeleteAuthConfigHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}

	if err := a.resolver.DeleteOrgAuthConfig(c.Request().Context(), org, c.Param("toolId")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// DeleteCredentialsHandler removes a single user's credential for a tool.
func (a *IntegrationAPI) DeleteCredentialsHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}
	userID := c.QueryParam("userId")
	if userID == "" {
		return errorJSON(c, errors.NewBadRequest("userId query parameter is required"))
	}

	if err := a.resolver.DeleteUserCredentials(c.Request().Context(), org, userID, c.Param("toolId")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ExecuteActionHandler runs a named action for the caller's organization.
// The request body is the raw input object; the acting user, when present,
// rides in the userId query parameter or the X-User-ID header.
func (a *IntegrationAPI) ExecuteActionHandler(c echo.Context) error {
	org, err := orgID(c)
	if err != nil {
		return errorJSON(c, err)
	}

	userID := c.QueryParam("userId")
	if userID == "" {
		userID = c.Request().Header.Get(userHeader)
	}

	var inputs map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&inputs); err != nil && err != io.EOF {
		return errorJSON(c, errors.NewBadRequest("invalid request body"))
	}

	result, err := a.actions.ExecuteAction(
		c.Request().Context(), org, userID, c.Param("key"), inputs)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// HealthHandler reports liveness and storage reachability.
func (a *IntegrationAPI) HealthHandler(c echo.Context) error {
	if err := mongodb.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "mongo": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// secretConfigKeys are config map entries whose values never leave the
// backend unmasked.
var secretConfigKeys = map[string]bool{
	"clientSecret": true,
	"apiKey":       true,
	"headerValue":  true,
}

func maskConfig(config map[string]any) map[string]any {
	masked := make(map[string]any, len(config))
	for k, v := range config {
		if secretConfigKeys[k] {
			masked[k] = "********"
			continue
		}
		masked[k] = v
	}
	return masked
}
