package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/agriroute/envelope"
)

// ErrInvalidConfig indicates an unusable adapter configuration.
var ErrInvalidConfig = errors.New("upstream: invalid adapter config")

// DefaultMaxBodyBytes caps how much of a response is read.
const DefaultMaxBodyBytes int64 = 1 << 20

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	// Category is the tool category served. Required.
	Category string

	// Endpoint is the provider URL. Required.
	Endpoint string

	// Method is GET (arguments as query string) or POST (arguments as a
	// JSON body).
	// Default: POST
	Method string

	// Headers are sent with every request, e.g. an API key.
	Headers map[string]string

	// Client performs requests.
	// Default: an http.Client with Timeout
	Client *http.Client

	// Timeout bounds each request when Client is nil.
	// Default: 0 (the caller's deadline applies)
	Timeout time.Duration

	// MaxBodyBytes caps the response body; longer bodies are upstream errors.
	// Default: 1 MiB
	MaxBodyBytes int64

	// Logger receives request failures.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// HTTPAdapter is a tool adapter backed by one JSON HTTP endpoint.
type HTTPAdapter struct {
	config   HTTPConfig
	endpoint *url.URL
	logger   *zap.Logger
}

// NewHTTPAdapter validates config and builds the adapter.
func NewHTTPAdapter(config HTTPConfig) (*HTTPAdapter, error) {
	if config.Category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidConfig)
	}
	u, err := url.Parse(config.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %s: endpoint %q is not an absolute URL", ErrInvalidConfig, config.Category, config.Endpoint)
	}
	config.Method = strings.ToUpper(config.Method)
	switch config.Method {
	case "":
		config.Method = http.MethodPost
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("%w: %s: unsupported method %q", ErrInvalidConfig, config.Category, config.Method)
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: config.Timeout}
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPAdapter{
		config:   config,
		endpoint: u,
		logger:   logger.With(zap.String("component", "upstream"), zap.String("category", config.Category)),
	}, nil
}

// Category returns the served category.
func (a *HTTPAdapter) Category() string {
	return a.config.Category
}

// Invoke calls the endpoint with args.
func (a *HTTPAdapter) Invoke(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	req, err := a.newRequest(ctx, args)
	if err != nil {
		return nil, err
	}

	resp, err := a.config.Client.Do(req)
	if err != nil {
		a.logger.Warn("upstream request failed", zap.Error(err))
		return nil, transportError(ctx, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.config.MaxBodyBytes+1))
	if err != nil {
		return nil, transportError(ctx, err, "reading response")
	}
	if int64(len(body)) > a.config.MaxBodyBytes {
		return nil, envelope.Upstream(nil, "response exceeds %d bytes", a.config.MaxBodyBytes)
	}

	if err := mapStatus(resp.StatusCode, body); err != nil {
		a.logger.Debug("upstream answered with an error status",
			zap.Int("status", resp.StatusCode), zap.String("error_type", string(err.Type)))
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, envelope.DataMissingf("empty response")
	}
	if !json.Valid(body) {
		return nil, envelope.Upstream(nil, "response is not JSON")
	}
	return json.RawMessage(body), nil
}

// transportError types a failed round trip. The caller's context error wins;
// a client-side timeout is a timeout, anything else an upstream failure.
func transportError(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &envelope.Error{Type: envelope.TypeTimeout, Message: op + ": deadline exceeded", Err: err}
	}
	return envelope.Upstream(err, "%s: %v", op, err)
}

func (a *HTTPAdapter) newRequest(ctx context.Context, args map[string]any) (*http.Request, error) {
	u := *a.endpoint
	var body io.Reader

	if a.config.Method == http.MethodGet {
		q := u.Query()
		for _, k := range sortedKeys(args) {
			q.Set(k, fmt.Sprint(args[k]))
		}
		u.RawQuery = q.Encode()
	} else {
		payload, err := json.Marshal(args)
		if err != nil {
			return nil, envelope.Validationf("arguments are not serializable: %v", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, a.config.Method, u.String(), body)
	if err != nil {
		return nil, envelope.Validationf("building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// mapStatus maps an HTTP status onto the error taxonomy. It returns nil for
// statuses that carry data.
func mapStatus(status int, body []byte) *envelope.Error {
	msg := statusMessage(status, body)
	switch {
	case status == http.StatusNoContent, status == http.StatusNotFound:
		return envelope.DataMissingf("%s", msg)
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return envelope.Validationf("%s", msg)
	case status == http.StatusTooManyRequests:
		return envelope.Upstream(nil, "rate limited: %s", msg)
	default:
		return envelope.Upstream(nil, "%s", msg)
	}
}

func statusMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, text)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
