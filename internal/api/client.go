// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/scribe-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for transient
	// errors. Retrying a send is safe because every send carries a client
	// idempotency token.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// DefaultPageSize is the message page size requested from the server.
	DefaultPageSize = 50
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client for all request/response API calls.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// sharedStreamingClient is used for SSE requests (no timeout, context-controlled).
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no auth token source was provided.
	ErrNotConfigured = errors.New("API token not configured")

	// ErrAuthFailed indicates authentication failed.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidResponse indicates a response that failed shape validation.
	// This is a contract violation (a defect), not a recoverable condition.
	ErrInvalidResponse = errors.New("invalid response shape")
)

// APIError represents an error response from the scribe backend.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// apiErrorResponse is the wire shape of an error body.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies the bearer token attached to each request. It is
// injected at construction; there is no package-level mutable credential
// state.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP client for the scribe backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	maxRetries int
	userAgent  string
	log        zerolog.Logger
}

// NewClient creates a new API client for the given base URL. The token source
// may be nil, in which case every call fails with ErrNotConfigured.
func NewClient(baseURL string, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		tokens:     tokens,
		maxRetries: DefaultMaxRetries,
		userAgent:  "scribe-tui/0.1.0",
		log:        log,
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// IsConfigured returns true if the client has a token source.
func (c *Client) IsConfigured() bool {
	return c.tokens != nil && c.tokens.Token() != ""
}

// =============================================================================
// CONVERSATION API
// =============================================================================

// CreateConversation creates a new conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	var out wireConversation
	body := map[string]string{"title": title}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/conversations", body, &out); err != nil {
		return model.Conversation{}, err
	}
	conv := out.normalize()
	if conv.ID == "" {
		return model.Conversation{}, fmt.Errorf("%w: conversation missing id", ErrInvalidResponse)
	}
	return conv, nil
}

// ListConversations returns all conversations, most recently updated first as
// ordered by the server.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		Items []wireConversation `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	convs := make([]model.Conversation, 0, len(out.Items))
	for _, w := range out.Items {
		convs = append(convs, w.normalize())
	}
	return convs, nil
}

// ListMessages fetches one page of message history. An empty cursor requests
// the newest page; the returned page's cursor addresses the next older one.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string) (model.Page, error) {
	path := fmt.Sprintf("/v1/conversations/%s/messages?limit=%d", url.PathEscape(conversationID), DefaultPageSize)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}
	var out wirePage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return model.Page{}, err
	}
	return out.normalize(), nil
}

// SendMessage submits a user message. The response always carries the
// committed user message; it may also carry an assistant reply and a pending
// action signalling that a run started.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if req.ConversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	path := fmt.Sprintf("/v1/conversations/%s/messages", url.PathEscape(req.ConversationID))

	var out wireSendResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}

	resp := out.normalize()
	if resp.UserMessage.ID == "" {
		return nil, fmt.Errorf("%w: send response missing user message id", ErrInvalidResponse)
	}
	return resp, nil
}

// =============================================================================
// RUN API
// =============================================================================

// GetRun fetches the authoritative run record.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	var out wireRun
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID), nil, &out); err != nil {
		return Run{}, err
	}
	run := out.normalize()
	if run.ID == "" {
		return Run{}, fmt.Errorf("%w: run record missing id", ErrInvalidResponse)
	}
	return run, nil
}

// CancelRun requests cancellation of a run. Cancellation is best-effort and
// asynchronous: the terminal canceled status arrives later via the event
// stream or a status poll.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/runs/"+url.PathEscape(runID)+"/cancel", nil, nil)
}

// RetryRun asks the server to retry a failed run, returning the new run.
func (c *Client) RetryRun(ctx context.Context, runID string) (Run, error) {
	var out wireRun
	if err := c.doJSON(ctx, http.MethodPost, "/v1/runs/"+url.PathEscape(runID)+"/retry", nil, &out); err != nil {
		return Run{}, err
	}
	return out.normalize(), nil
}

// ListArtifacts fetches the output artifacts of a completed run.
func (c *Client) ListArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	var out struct {
		Items []wireArtifact `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID)+"/artifacts", nil, &out); err != nil {
		return nil, err
	}
	artifacts := make([]Artifact, 0, len(out.Items))
	for _, w := range out.Items {
		artifacts = append(artifacts, w.normalize())
	}
	return artifacts, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// setHeaders sets the required headers for API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// doJSON performs a request with retry and decodes the JSON response into out
// (which may be nil for empty responses).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var bodyBytes []byte
	if in != nil {
		var err error
		bodyBytes, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doOnce(ctx, method, path, bodyBytes)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}

		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doOnce performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		typed := &APIError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}
		switch statusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuthFailed, typed.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, typed.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, typed.Message)
		default:
			return typed
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Message: strings.TrimSpace(string(body)), Status: statusCode}
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	// Transport-level failures (connection reset, refused) are retryable.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// calculateBackoff returns the delay before the next retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
