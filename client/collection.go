package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
	"github.com/kbukum/pbkit/realtime"
	"github.com/kbukum/pbkit/schema"
	"github.com/kbukum/pbkit/validation"
)

// DefaultBatchSize is the page size FullList requests.
const DefaultBatchSize = 500

// Collection is a typed handle to the records of one collection. T is the
// record type, usually a struct embedding Record.
type Collection[T any] struct {
	client *Client
	name   string
	// path of the record endpoints; authPath of the auth endpoints.
	path     string
	authPath string
	schema   *schema.Schema
	admin    bool
}

var _ realtime.Resource = (*Collection[Record])(nil)

// NewCollection returns a handle to the named collection. s may be nil to
// skip local validation.
func NewCollection[T any](c *Client, name string, s *schema.Schema) *Collection[T] {
	base := "/api/collections/" + url.PathEscape(name)
	return &Collection[T]{
		client:   c,
		name:     name,
		path:     base + "/records",
		authPath: base,
		schema:   s,
	}
}

// Identifier returns the collection name; it is also the realtime topic.
func (c *Collection[T]) Identifier() string { return c.name }

// Path returns the records endpoint.
func (c *Collection[T]) Path() string { return c.path }

// Schema returns the local schema, possibly nil.
func (c *Collection[T]) Schema() *schema.Schema { return c.schema }

// ListOptions selects a page of records.
type ListOptions struct {
	Page    int
	PerPage int
	Sort    string
	Filter  string
	Expand  string
	Fields  string
}

func (o ListOptions) query() map[string]string {
	q := make(map[string]string)
	if o.Page > 0 {
		q["page"] = strconv.Itoa(o.Page)
	}
	if o.PerPage > 0 {
		q["perPage"] = strconv.Itoa(o.PerPage)
	}
	for key, value := range map[string]string{
		"sort": o.Sort, "filter": o.Filter, "expand": o.Expand, "fields": o.Fields,
	} {
		if value != "" {
			q[key] = value
		}
	}
	return q
}

// Get fetches one record.
func (c *Collection[T]) Get(ctx context.Context, id string, opts ...SendOption) (T, error) {
	if err := validation.Required("id", id); err != nil {
		var zero T
		return zero, err
	}
	return sendJSON[T](ctx, c.client, c.recordPath(id), http.MethodGet, opts...)
}

// List fetches one page of records.
func (c *Collection[T]) List(ctx context.Context, opts ListOptions) (*ListResult[T], error) {
	ctx, op := observability.StartOperation(ctx, observability.SpanRecordList, c.client.metrics,
		attribute.String(observability.AttrCollection, c.name))
	res, err := sendJSON[ListResult[T]](ctx, c.client, c.path, http.MethodGet, WithQuery(opts.query()))
	op.End(err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FullList fetches every page. opts.PerPage sets the batch size.
func (c *Collection[T]) FullList(ctx context.Context, opts ListOptions) ([]T, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultBatchSize
	}
	var items []T
	for page := 1; ; page++ {
		opts.Page = page
		res, err := c.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, res.Items...)
		if len(res.Items) < opts.PerPage || page >= res.TotalPages {
			return items, nil
		}
	}
}

// First returns the first record matching filter, or a NOT_FOUND error.
func (c *Collection[T]) First(ctx context.Context, filter string, opts ListOptions) (T, error) {
	var zero T
	opts.Page, opts.PerPage, opts.Filter = 1, 1, filter
	res, err := c.List(ctx, opts)
	if err != nil {
		return zero, err
	}
	if len(res.Items) == 0 {
		return zero, apperrors.New(apperrors.ErrCodeNotFound,
			"no "+c.name+" record matches the filter", http.StatusNotFound)
	}
	return res.Items[0], nil
}

// Create creates a record. data is validated against the schema unless it
// is a multipart body.
func (c *Collection[T]) Create(ctx context.Context, data any, opts ...SendOption) (T, error) {
	if _, multipart := data.(*httpclient.MultipartBody); !multipart {
		if err := c.schema.ValidateRecord(data); err != nil {
			var zero T
			return zero, err
		}
	}
	return sendJSON[T](ctx, c.client, c.path, http.MethodPost, append(opts, WithBody(data))...)
}

// Update patches a record with the fields present in data.
func (c *Collection[T]) Update(ctx context.Context, id string, data any, opts ...SendOption) (T, error) {
	var zero T
	if err := validation.Required("id", id); err != nil {
		return zero, err
	}
	if _, multipart := data.(*httpclient.MultipartBody); !multipart {
		if err := c.schema.ValidatePatch(data); err != nil {
			return zero, err
		}
	}
	return sendJSON[T](ctx, c.client, c.recordPath(id), http.MethodPatch, append(opts, WithBody(data))...)
}

// Delete removes a record.
func (c *Collection[T]) Delete(ctx context.Context, id string, opts ...SendOption) error {
	if err := validation.Required("id", id); err != nil {
		return err
	}
	_, err := c.client.Send(ctx, c.recordPath(id), http.MethodDelete, opts...)
	return err
}

// Subscribe calls fn for every change to a record of the collection.
func (c *Collection[T]) Subscribe(ctx context.Context, fn func(realtime.Action, T)) (realtime.UnsubscribeFunc, error) {
	if fn == nil {
		return nil, apperrors.MissingField("listener")
	}
	return c.client.realtime.Subscribe(ctx, c, c.decoder(fn))
}

// SubscribeRecord calls fn for every change to one record.
func (c *Collection[T]) SubscribeRecord(ctx context.Context, id string, fn func(realtime.Action, T)) (realtime.UnsubscribeFunc, error) {
	if fn == nil {
		return nil, apperrors.MissingField("listener")
	}
	return c.client.realtime.SubscribeRecord(ctx, c, id, c.decoder(fn))
}

// Unsubscribe removes every listener of the collection topic, or of one
// record topic when id is given.
func (c *Collection[T]) Unsubscribe(ctx context.Context, id ...string) error {
	return c.client.realtime.Unsubscribe(ctx, c, id...)
}

// decoder adapts fn to raw events. Records that do not decode into T are
// delivered as the zero value.
func (c *Collection[T]) decoder(fn func(realtime.Action, T)) realtime.ListenerFunc {
	return func(action realtime.Action, raw json.RawMessage) {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.client.log.Debug("Realtime record did not decode", logger.Fields(
				logger.FieldTopic, c.name,
				logger.FieldError, err.Error(),
			))
			rec = *new(T)
		}
		fn(action, rec)
	}
}

func (c *Collection[T]) recordPath(id string) string {
	return c.path + "/" + url.PathEscape(id)
}
