package client

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/httpclient/rest"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
	"github.com/kbukum/pbkit/realtime"
	"github.com/kbukum/pbkit/version"
)

// Client talks to one backend.
type Client struct {
	cfg      Config
	http     *httpclient.Client
	rest     *rest.Client
	auth     *AuthStore
	realtime *realtime.Realtime
	log      *logger.Logger
	metrics  *observability.Metrics
}

type options struct {
	log         *logger.Logger
	auth        *AuthStore
	transport   http.RoundTripper
	metrics     *observability.Metrics
	realtimeOps []realtime.Option
}

// Option customizes a Client.
type Option func(*options)

// WithLogger sets the logger used by the client and its realtime engine.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithAuthStore shares a token store, e.g. one restored from disk.
func WithAuthStore(s *AuthStore) Option {
	return func(o *options) { o.auth = s }
}

// WithTransport replaces the HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRealtimeOptions passes options to the realtime engine.
func WithRealtimeOptions(opts ...realtime.Option) Option {
	return func(o *options) { o.realtimeOps = append(o.realtimeOps, opts...) }
}

// New creates a client. It does not contact the backend.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetGlobalLogger()
	}
	if o.auth == nil {
		o.auth = NewAuthStore()
	}

	headers := maps.Clone(cfg.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = version.UserAgent()
	}
	httpCfg := httpclient.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Headers:   headers,
		Auth:      httpclient.TokenAuth(o.auth.Token),
		Transport: o.transport,
	}
	if cfg.Retry {
		httpCfg.Retry = httpclient.DefaultRetryConfig()
	}
	if cfg.CircuitBreaker != nil {
		cb := *cfg.CircuitBreaker
		if cb.IsFailure == nil {
			cb.IsFailure = httpclient.IsBreakerFailure
		}
		httpCfg.CircuitBreaker = &cb
	}
	if cfg.RateLimiter != nil {
		rl := *cfg.RateLimiter
		httpCfg.RateLimiter = &rl
	}
	restClient, err := rest.New(httpCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		http:    restClient.HTTP(),
		rest:    restClient,
		auth:    o.auth,
		log:     o.log.WithComponent("client"),
		metrics: o.metrics,
	}

	rtOpts := append([]realtime.Option{realtime.WithLogger(o.log)}, o.realtimeOps...)
	c.realtime, err = realtime.New(c.http, cfg.Realtime, rtOpts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Realtime returns the subscription engine.
func (c *Client) Realtime() *realtime.Realtime { return c.realtime }

// AuthStore returns the token store.
func (c *Client) AuthStore() *AuthStore { return c.auth }

// HTTP returns the underlying HTTP client.
func (c *Client) HTTP() *httpclient.Client { return c.http }

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// FileURL builds the download URL of a file stored on a record.
func (c *Client) FileURL(collection realtime.Resource, recordID, filename string) string {
	return c.http.BuildURL("/api/files/" + url.PathEscape(collection.Identifier()) + "/" +
		url.PathEscape(recordID) + "/" + url.PathEscape(filename))
}

// Close drops every subscription, releases the realtime engine and aborts
// keyed in-flight requests.
func (c *Client) Close() {
	if err := c.realtime.Close(); err != nil {
		c.log.Warn("Closing realtime engine failed", logger.Fields(logger.FieldError, err.Error()))
	}
	c.http.CancelAll()
}

// SendOption configures a Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	body any
	rest []rest.RequestOption
}

// WithBody sets the request body. *httpclient.MultipartBody is sent as a
// multipart form, anything else as JSON.
func WithBody(body any) SendOption {
	return func(o *sendOptions) { o.body = body }
}

// WithQuery adds query parameters.
func WithQuery(params map[string]string) SendOption {
	return func(o *sendOptions) { o.rest = append(o.rest, rest.WithQuery(params)) }
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) { o.rest = append(o.rest, rest.WithHeaders(headers)) }
}

// WithCancelKey makes a newer request with the same key abort this one.
func WithCancelKey(key string) SendOption {
	return func(o *sendOptions) { o.rest = append(o.rest, rest.WithCancelKey(key)) }
}

// Send performs a request against the backend and returns the raw JSON
// body. Backend error bodies become *errors.AppError.
func (c *Client) Send(ctx context.Context, path, method string, opts ...SendOption) (json.RawMessage, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, op := observability.StartOperation(ctx, observability.SpanHTTPRequest, c.metrics,
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)
	resp, err := rest.Do[json.RawMessage](ctx, c.rest, method, path, o.body, o.rest...)
	err = toAppError(err)
	op.End(err)

	if err != nil {
		c.log.Debug("Request failed", logger.Fields(
			logger.FieldMethod, method,
			logger.FieldPath, path,
			logger.FieldError, err.Error(),
		))
		return nil, err
	}
	return resp.Data, nil
}

// sendJSON sends and decodes the response into T.
func sendJSON[T any](ctx context.Context, c *Client, path, method string, opts ...SendOption) (T, error) {
	var out T
	raw, err := c.Send(ctx, path, method, opts...)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, toAppError(err)
	}
	return out, nil
}
