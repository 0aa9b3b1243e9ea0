package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kbukum/pbkit/httpclient"
)

// Client is a JSON-focused wrapper around httpclient.Client.
type Client struct {
	http *httpclient.Client
}

// New creates a REST client, defaulting Content-Type and Accept to JSON.
func New(cfg httpclient.Config) (*Client, error) {
	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}
	cfg.Headers = headers

	c, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

// NewFromClient wraps an existing HTTP client.
func NewFromClient(c *httpclient.Client) *Client {
	return &Client{http: c}
}

// HTTP returns the underlying HTTP client.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// RequestOption configures a single REST request.
type RequestOption func(*httpclient.Request)

// WithQuery merges query parameters into the request.
func WithQuery(params map[string]string) RequestOption {
	return func(r *httpclient.Request) {
		if r.Query == nil {
			r.Query = make(map[string]string, len(params))
		}
		for k, v := range params {
			r.Query[k] = v
		}
	}
}

// WithHeaders merges headers into the request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *httpclient.Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			r.Headers[k] = v
		}
	}
}

// WithAuth overrides authentication for the request.
func WithAuth(auth *httpclient.AuthConfig) RequestOption {
	return func(r *httpclient.Request) {
		r.Auth = auth
	}
}

// WithCancelKey sets the auto-cancellation key.
func WithCancelKey(key string) RequestOption {
	return func(r *httpclient.Request) {
		r.CancelKey = key
	}
}

// Response wraps a typed REST response.
type Response[T any] struct {
	StatusCode int
	Headers    map[string]string
	Data       T
	// Raw is the undecoded body.
	Raw []byte
}

// Get performs a GET request and decodes the JSON response into type T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodGet, path, nil, opts...)
}

// Post performs a POST request and decodes the response into type T.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodPost, path, body, opts...)
}

// Patch performs a PATCH request and decodes the response into type T.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodPatch, path, body, opts...)
}

// Delete performs a DELETE request and decodes the response into type T.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodDelete, path, nil, opts...)
}

// Do performs a request with any method and decodes the JSON response
// into type T. On a non-2xx status the response is returned with the error.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (*Response[T], error) {
	req := httpclient.Request{
		Method: method,
		Path:   path,
		Body:   body,
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if resp == nil {
			return nil, err
		}
		// Error bodies often decode into T's shape; keep what we can.
		out := &Response[T]{StatusCode: resp.StatusCode, Headers: resp.Headers, Raw: resp.Body}
		_ = json.Unmarshal(resp.Body, &out.Data)
		return out, err
	}

	out := &Response[T]{StatusCode: resp.StatusCode, Headers: resp.Headers, Raw: resp.Body}
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &out.Data); err != nil {
			return out, fmt.Errorf("httpclient/rest: decode response: %w", err)
		}
	}
	return out, nil
}
