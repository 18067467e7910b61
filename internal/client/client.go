// Package client is the HTTP client for the env-manager API.
//
// Error responses are mapped back onto the sentinels in package domain, so
// callers classify failures with errors.Is exactly as they would against the
// services directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcnelson/env-manager/internal/domain"
)

// Client provides typed access to the env-manager API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds every request. Without it requests wait for the server.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://127.0.0.1:8080"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Variables returns the live-variable view of the client.
func (c *Client) Variables() *VariableClient {
	return &VariableClient{c: c}
}

// Groups returns the group repository view of the client.
func (c *Client) Groups() *GroupClient {
	return &GroupClient{c: c}
}

// IsAdmin asks the server whether it may write system variables.
func (c *Client) IsAdmin(ctx context.Context) (bool, error) {
	var status domain.AdminStatus
	if err := c.do(ctx, http.MethodGet, "/api/admin", nil, &status); err != nil {
		return false, err
	}
	return status.IsAdmin, nil
}

// ResponseError is a non-2xx answer from the API. It unwraps to the domain
// sentinel matching the status code.
type ResponseError struct {
	domain.APIError
	kind error
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return e.Message
}

func (e *ResponseError) Unwrap() error {
	return e.kind
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	rerr := &ResponseError{APIError: domain.APIError{Status: resp.StatusCode}}
	data, err := io.ReadAll(resp.Body)
	if err == nil && len(data) > 0 {
		if jerr := json.Unmarshal(data, &rerr.APIError); jerr != nil {
			rerr.Message = strings.TrimSpace(string(data))
		}
		rerr.Status = resp.StatusCode
	}

	if rerr.Code == domain.ErrCodeApplyFailed {
		return &domain.ApplyError{Written: rerr.Applied, Err: rerr}
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		rerr.kind = domain.ErrForbidden
	case http.StatusNotFound:
		rerr.kind = domain.ErrNotFound
	case http.StatusBadRequest:
		rerr.kind = domain.ErrInvalidInput
	case http.StatusUnauthorized:
		rerr.kind = domain.ErrUnauthorized
	case http.StatusConflict:
		rerr.kind = domain.ErrAlreadyExists
	}
	return rerr
}

// writtenPrefix extracts the writes that landed before a failed batch.
func writtenPrefix(err error) domain.AppliedSet {
	var applyErr *domain.ApplyError
	if errors.As(err, &applyErr) {
		return applyErr.Written
	}
	return nil
}
