// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apiclient is the single gateway to the Skippa backend REST API.
// It attaches bearer tokens, unwraps the {success, name, message, data}
// envelope and normalizes every failure into an *apperr.Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/metrics"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 10 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

// Client calls the backend API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a Client for the given base URL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}

	return &Client{baseURL: u, http: hc}, nil
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string // relative to the base URL
	Token  string // bearer token, empty for public endpoints
	Body   any    // JSON-encoded when non-nil
	Query  url.Values
	// Endpoint labels the call in metrics; defaults to Path.
	Endpoint string
}

// envelope is the backend response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Do performs req and decodes the unwrapped payload into out (nil discards it).
// It never retries.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return apperr.Wrap(apperr.RequestFailed, err, apperr.GenericMessage)
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveAPI(req.Method, endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.RequestFailed, ctx.Err(), "The request was cancelled. Please try again.")
		}
		slog.Warn("backend request failed", "method", req.Method, "endpoint", endpoint, "error", err)
		return apperr.Wrap(apperr.RequestFailed, err, "We could not reach the server. Check your connection and try again.")
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveAPI(req.Method, endpoint, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Wrap(apperr.RequestFailed, err, apperr.GenericMessage)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, body)
		slog.Warn("backend returned error",
			"method", req.Method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"name", apiErr.Name,
		)
		return apiErr
	}

	return decodeSuccess(resp.StatusCode, body, out)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	rel, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", req.Path, err)
	}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	u := base.ResolveReference(rel)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	return httpReq, nil
}

func decodeSuccess(status int, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if !json.Valid(body) {
		return malformed(status, errors.New("response body is not JSON"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Valid JSON but not an object; decode the raw body.
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return malformed(status, err)
		}
		return nil
	}

	_, hasData := fields["data"]
	_, hasSuccess := fields["success"]
	if !hasData && !hasSuccess {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return malformed(status, err)
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return malformed(status, err)
	}
	if env.Success != nil && !*env.Success {
		return envelopeError(status, env)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return malformed(status, err)
	}
	return nil
}

func decodeError(status int, body []byte) *apperr.Error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		e := &apperr.Error{Kind: kindFor(status, ""), Status: status, Message: apperr.GenericMessage, Err: err}
		if status == http.StatusUnauthorized {
			e.Message = "Your session has expired. Please log in again."
		}
		return e
	}
	return envelopeError(status, env)
}

func envelopeError(status int, env envelope) *apperr.Error {
	e := &apperr.Error{
		Kind:    kindFor(status, env.Name),
		Name:    env.Name,
		Message: env.Message,
		Status:  status,
		Data:    env.Data,
	}
	if e.Message == "" {
		e.Message = hoistMessage(env.Data)
	}
	if e.Name == "" && status >= 400 {
		e.Name = strings.ReplaceAll(http.StatusText(status), " ", "")
	}
	if e.Message == "" {
		e.Message = apperr.GenericMessage
	}
	return e
}

// hoistMessage finds a message in data.message or data[0].message.
func hoistMessage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var list []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list[0].Message
	}
	return ""
}

// kindFor classifies a backend failure.
func kindFor(status int, name string) apperr.Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "incompletesignup") || strings.Contains(lower, "incomplete_signup") ||
		strings.Contains(lower, "notverified") || strings.Contains(lower, "unverified"):
		return apperr.IncompleteSignup
	case status == http.StatusUnauthorized && (strings.Contains(lower, "credential") || strings.Contains(lower, "authentication")):
		return apperr.Authentication
	case status == http.StatusUnauthorized:
		return apperr.Unauthorized
	case status >= 500:
		return apperr.RequestFailed
	case strings.Contains(lower, "credential") || strings.Contains(lower, "authentication"):
		return apperr.Authentication
	default:
		return apperr.RequestFailed
	}
}

func malformed(status int, err error) *apperr.Error {
	return &apperr.Error{
		Kind:    apperr.RequestFailed,
		Name:    "MalformedResponse",
		Message: apperr.GenericMessage,
		Status:  status,
		Err:     fmt.Errorf("decoding response: %w", err),
	}
}

// IsUnauthorized reports whether err is a rejected bearer token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized)
}
