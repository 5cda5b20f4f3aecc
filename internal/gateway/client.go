// Package gateway implements the HTTP client every action goes through:
// one base address, bearer-token injection, JSON vs multipart content-type
// negotiation, a global unauthorized handler and a pluggable diagnostic
// hook. Transport failures and non-2xx statuses are mapped into the
// application's error taxonomy here, once, so callers never see raw HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"twitline/internal/config"
	"twitline/internal/models"
	"twitline/internal/observability"

	"github.com/google/uuid"
)

// SessionSource supplies the bearer token and is cleared on unauthorized
// responses. *session.Store satisfies it.
type SessionSource interface {
	Token() string
	Clear() error
}

// Client is the API gateway client. All verbs return the raw response body
// on success and a *models.AppError on failure.
type Client struct {
	baseURL        string
	http           *http.Client
	session        SessionSource
	logger         observability.HTTPLogger
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger replaces the diagnostic hook.
func WithLogger(l observability.HTTPLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUnauthorizedHook sets the handler invoked after an unauthorized
// response has cleared the session. The presentation layer uses it to
// redirect to the sign-in view. Invoked exactly once per failing response.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a gateway client over the configured base address.
func New(cfg *config.Config, sess SessionSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: sess,
		logger:  observability.NewSlogHTTPLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, "", nil)
}

// Post issues a POST request with a JSON body. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body. A nil body sends no payload.
func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

// PostForm issues a POST request with a multipart form body.
func (c *Client) PostForm(ctx context.Context, path string, form *Form) ([]byte, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, models.NewValidationError("Invalid form payload")
	}
	return c.do(ctx, http.MethodPost, path, contentType, body)
}

// PutForm issues a PUT request with a multipart form body.
func (c *Client) PutForm(ctx context.Context, path string, form *Form) ([]byte, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, models.NewValidationError("Invalid form payload")
	}
	return c.do(ctx, http.MethodPut, path, contentType, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, models.NewValidationError("Invalid request payload")
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, "application/json", reader)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path
	ctx = observability.WithCorrelationID(ctx, uuid.NewString())
	ctx, span := observability.StartClientSpan(ctx, method, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		observability.EndClientSpan(span, 0, err)
		return nil, models.NewValidationError("Invalid request")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		// The multipart content type carries the writer's boundary; a
		// manually-set boundary would desynchronize the body.
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", observability.ExtractCorrelationID(ctx))

	c.logger.LogRequest(ctx, method, url, contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		// No response received: transport failure or cancellation.
		c.logger.LogResponse(ctx, method, url, 0, err)
		observability.EndClientSpan(span, 0, err)
		return nil, models.NewNetworkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.LogResponse(ctx, method, url, resp.StatusCode, err)
		observability.EndClientSpan(span, resp.StatusCode, err)
		return nil, models.NewNetworkError(err)
	}

	c.logger.LogResponse(ctx, method, url, resp.StatusCode, nil)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		observability.EndClientSpan(span, resp.StatusCode, nil)
		return payload, nil
	}

	mapped := c.mapFailure(ctx, resp.StatusCode, payload)
	observability.EndClientSpan(span, resp.StatusCode, mapped)
	return nil, mapped
}

// mapFailure converts a non-2xx response into the error taxonomy and runs
// the unauthorized side effects.
func (c *Client) mapFailure(ctx context.Context, status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		// Clear the session and hand control to the sign-in redirect,
		// exactly once per failing response.
		_ = c.session.Clear()
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return models.NewAuthError("")
	case http.StatusUnsupportedMediaType:
		detail := fmt.Errorf("unsupported media type: %s", strings.TrimSpace(string(body)))
		observability.LogActionError(ctx, "request", detail, map[string]interface{}{"status": status})
		return models.NewUnsupportedMediaError(detail)
	case http.StatusNotFound:
		return &models.AppError{Code: models.CodeNotFound, Message: serverMessage(body, "Not found.")}
	default:
		return models.NewServerError(
			serverMessage(body, ""),
			fmt.Errorf("server returned status %d", status),
		)
	}
}

// serverMessage extracts the server-provided message from an error body,
// falling back to the given default.
func serverMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fallback
}

// IsAuthError reports whether err is the unauthorized taxonomy error.
func IsAuthError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized
}
