package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
	"go.pilab.hu/toolbridge/internal/besteffort"
	"go.pilab.hu/toolbridge/internal/metrics"
)

// InputValidator checks action inputs against the action's declared schema.
// Validation is an external collaborator; tag names the validation context
// for error reporting.
type InputValidator interface {
	Validate(ctx context.Context, schema map[string]any, inputs map[string]any, tag string) (map[string]any, error)
}

// PassthroughValidator accepts all inputs unchanged; wired when no schema
// validation backend is configured.
type PassthroughValidator struct{}

func (PassthroughValidator) Validate(_ context.Context, _ map[string]any, inputs map[string]any, _ string) (map[string]any, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return inputs, nil
}

// ExecutionResult is the dispatcher's caller-facing envelope.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

// ActionService loads action definitions, resolves auth headers, templates
// the target URL and dispatches the call through a Transport.
type ActionService struct {
	actions   domain.ActionRepository
	resolver  *AuthResolver
	validator InputValidator
	transport Transport
	metrics   *metrics.Metrics
}

// NewActionService wires the dispatcher.
func NewActionService(
	actions domain.ActionRepository,
	resolver *AuthResolver,
	validator InputValidator,
	transport Transport,
	m *metrics.Metrics,
) *ActionService {
	return &ActionService{
		actions:   actions,
		resolver:  resolver,
		validator: validator,
		transport: transport,
		metrics:   m,
	}
}

// ExecuteAction runs the named action for the organization. userID may be
// empty for anonymous/service contexts; auth header resolution is
// best-effort and the called API remains the final authority on whether the
// request was sufficiently authenticated.
func (s *ActionService) ExecuteAction(ctx context.Context, orgID, userID, actionKey string, inputs map[string]any) (*ExecutionResult, error) {
	action, err := s.actions.GetActionByKey(ctx, orgID, actionKey)
	if err != nil {
		return nil, err
	}
	tool, err := s.resolver.ValidateToolAccess(ctx, action.ToolID, orgID)
	if err != nil {
		return nil, err
	}

	labels := []string{orgID, tool.Name, actionKey}
	// Started counts attempts, not successes: validation or dispatch may
	// still fail after this fires.
	s.metrics.ActionsStarted.WithLabelValues(labels...).Inc()

	validated, err := s.validator.Validate(ctx, action.InputSchema, inputs, "action:"+actionKey)
	if err != nil {
		if errors.IsBadRequest(err) {
			return nil, err
		}
		return nil, errors.NewBadRequest("input validation failed: " + err.Error())
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for name, value := range action.Headers {
		headers[name] = value
	}
	authHeaders := besteffort.Attempt(func() (map[string]string, error) {
		return s.authHeaders(ctx, orgID, userID, action.ToolID)
	}).Log(ctx, "auth resolution failed, dispatching without auth headers").Or(nil)
	for name, value := range authHeaders {
		headers[name] = value
	}

	targetURL := ResolveTemplate(resolveEndpointURL(tool.BaseURL, action.Endpoint), validated)

	method := strings.ToUpper(action.Method)
	if method == "" {
		method = http.MethodGet
	}

	req := &DispatchRequest{
		Method:  method,
		URL:     targetURL,
		Headers: headers,
	}
	if method != http.MethodGet {
		body, err := json.Marshal(validated)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize inputs: %w", err)
		}
		req.Body = body
	}

	start := time.Now()
	result, err := s.transport.Dispatch(ctx, req)
	if err != nil {
		// The transport returned no result to read a duration from, so the
		// observation uses the elapsed wall time.
		s.metrics.ActionsError.WithLabelValues(labels...).Inc()
		s.metrics.ActionDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return nil, errors.NewUpstreamFailure("action dispatch failed: " + err.Error())
	}

	s.metrics.ActionDuration.WithLabelValues(labels...).Observe(result.Duration.Seconds())

	if !result.Success {
		s.metrics.ActionsError.WithLabelValues(labels...).Inc()
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("action returned status %d", result.StatusCode)
		}
		return nil, errors.NewUpstreamFailure(msg)
	}

	s.metrics.ActionsSuccess.WithLabelValues(labels...).Inc()
	log.Debug().Str("orgID", orgID).Str("actionKey", actionKey).Int("status", result.StatusCode).
		Msg("action dispatched")

	return &ExecutionResult{
		Success: true,
		Data:    result.Data,
		Outputs: map[string]any{
			"orgId":      orgID,
			"actionKey":  actionKey,
			"toolKey":    tool.Name,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"statusCode": result.StatusCode,
			"url":        targetURL,
		},
	}, nil
}

// authHeaders resolves the auth headers for the action's tool. Failures
// propagate to the caller, which logs and continues without them.
func (s *ActionService) authHeaders(ctx context.Context, orgID, userID, toolID string) (map[string]string, error) {
	cfg, err := s.resolver.GetOrgAuthConfig(ctx, orgID, toolID)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case domain.AuthTypeAPIKey:
		settings, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		name, value, ok := settings.AuthHeader()
		if !ok {
			return nil, errors.NewBadRequest("apiKey config has no usable header or key")
		}
		return map[string]string{name: value}, nil

	case domain.AuthTypeOAuth2:
		if userID == "" {
			// Anonymous/service context: dispatch without user auth.
			return nil, nil
		}
		cred, err := s.resolver.GetUserCredentials(ctx, orgID, userID, toolID)
		if err != nil {
			return nil, err
		}
		token, err := s.resolver.RefreshUserToken(ctx, cred)
		if err != nil {
			return nil, err
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil

	default:
		return nil, errors.NewBadRequest("unsupported auth type: " + string(cfg.Type))
	}
}

// resolveEndpointURL joins the action endpoint with the tool base URL.
// Absolute endpoints bypass the base URL entirely.
func resolveEndpointURL(baseURL, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// ResolveTemplate substitutes {{name}} placeholders with values from inputs.
// Unresolved placeholders are left verbatim, never dropped.
func ResolveTemplate(target string, inputs map[string]any) string {
	return templatePattern.ReplaceAllStringFunc(target, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		value, ok := inputs[name]
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", value)
	})
}
