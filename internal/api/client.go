// Package api is the HTTP client for the CampusCircle backend API.
//
// The backend owns accounts, credentials and profiles. This package sends
// login, registration and user lookup requests and maps HTTP failures to
// domain errors whose messages are safe to show to the user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/campuscircle/internal/domain"
)

const (
	// DefaultTimeout bounds every backend request.
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20

	// RequestIDHeader is sent with every request for tracing across services.
	RequestIDHeader = "X-Request-ID"
)

// UnreachableMessage is shown when the backend cannot be contacted at all.
const UnreachableMessage = "Unable to reach CampusCircle right now. Please check your connection and try again."

// Client talks to the backend API rooted at BaseURL (for example http://localhost:8010/api).
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a backend API client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL: base,
		http:    hc,
		logger:  logger.With("component", "api"),
	}, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends a JSON request and decodes a JSON response into out (which may be nil).
// Non-2xx responses become domain errors carrying the backend message, or
// fallback when the body has none.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.Internal(err, op, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Internal(err, op, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			"op", op,
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", err,
		)
		return domain.Unavailable(err, op, UnreachableMessage)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Unavailable(err, op, UnreachableMessage)
	}

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapHTTPError(op, resp.StatusCode, respBody, fallback)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.Internal(err, op, "decode response")
	}
	return nil
}

// mapHTTPError maps HTTP status codes to domain errors
func mapHTTPError(op string, status int, body []byte, fallback string) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := strings.TrimSpace(eb.Message)
	if msg == "" {
		msg = fallback
	}

	var code string
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = domain.EINVALID
	case status == http.StatusUnauthorized:
		code = domain.EUNAUTHORIZED
	case status == http.StatusForbidden:
		code = domain.EFORBIDDEN
	case status == http.StatusNotFound:
		code = domain.ENOTFOUND
	case status == http.StatusConflict:
		code = domain.ECONFLICT
	case status == http.StatusTooManyRequests:
		code = domain.ERATELIMIT
	default:
		// 5xx and anything unexpected: the backend message is still what the user sees.
		code = domain.EUNAVAILABLE
	}

	return &domain.Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Err:     fmt.Errorf("backend status %d", status),
	}
}
