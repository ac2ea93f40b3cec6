package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// dispatchTimeout bounds a single outbound action call.
const dispatchTimeout = 30 * time.Second

// DispatchRequest is the outbound call handed to a Transport.
type DispatchRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is nil for GET requests.
	Body []byte
}

// DispatchResult is the transport-level outcome. Success reflects what the
// backend reported (2xx for direct HTTP); a sandboxed executor fills the
// same shape.
type DispatchResult struct {
	Success    bool
	StatusCode int
	Data       any
	Error      string
	Duration   time.Duration
}

// Transport dispatches an outbound HTTP call. Implementations are
// interchangeable: the direct client below, or a sandboxed execution
// backend.
type Transport interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResult, error)
}

// HTTPTransport performs the call directly with net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a direct transport with the fixed dispatch
// timeout.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: dispatchTimeout}}
}

// Dispatch implements Transport.
func (t *HTTPTransport) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResult, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{
		StatusCode: resp.StatusCode,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		Duration:   duration,
	}

	var parsed any
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		result.Data = parsed
	} else if len(raw) > 0 {
		result.Data = string(raw)
	}
	if !result.Success {
		result.Error = http.StatusText(resp.StatusCode)
		if len(raw) > 0 {
			result.Error = string(raw)
		}
	}
	return result, nil
}

var _ Transport = (*HTTPTransport)(nil)
