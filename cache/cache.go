// Package cache keeps recently read records in memory and keeps them
// fresh from the collection's realtime events.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kbukum/pbkit/client"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/realtime"
)

// DefaultSize is the capacity used when New is given size <= 0.
const DefaultSize = 1024

// IDFunc extracts the record id from a record.
type IDFunc[T any] func(T) string

// Stats counts cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
	Len    int
}

// Records is an LRU cache of one collection's records keyed
// "collection/id". It is safe for concurrent use.
type Records[T any] struct {
	coll  *client.Collection[T]
	cache *lru.Cache[string, T]
	id    IDFunc[T]
	log   *logger.Logger

	mu    sync.Mutex
	unsub realtime.UnsubscribeFunc

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache for coll holding up to size records. id may be nil
// to read the "id" JSON field.
func New[T any](coll *client.Collection[T], size int, id IDFunc[T]) (*Records[T], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, T](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	if id == nil {
		id = jsonID[T]
	}
	return &Records[T]{
		coll:  coll,
		cache: c,
		id:    id,
		log:   logger.WithComponent("cache").WithFields(logger.Fields("collection", coll.Identifier())),
	}, nil
}

func (r *Records[T]) key(id string) string {
	return r.coll.Identifier() + "/" + id
}

// Get returns the cached record or fetches and caches it.
func (r *Records[T]) Get(ctx context.Context, id string) (T, error) {
	if rec, ok := r.cache.Get(r.key(id)); ok {
		r.hits.Add(1)
		return rec, nil
	}
	r.misses.Add(1)

	rec, err := r.coll.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	r.cache.Add(r.key(id), rec)
	return rec, nil
}

// Peek returns a cached record without fetching or touching recency.
func (r *Records[T]) Peek(id string) (T, bool) {
	return r.cache.Peek(r.key(id))
}

// Put stores rec. Records without an id are ignored.
func (r *Records[T]) Put(rec T) {
	if id := r.id(rec); id != "" {
		r.cache.Add(r.key(id), rec)
	}
}

// Invalidate drops one record.
func (r *Records[T]) Invalidate(id string) {
	r.cache.Remove(r.key(id))
}

// Purge drops every record.
func (r *Records[T]) Purge() {
	r.cache.Purge()
}

// Stats returns hit and miss counts and the current size.
func (r *Records[T]) Stats() Stats {
	return Stats{Hits: r.hits.Load(), Misses: r.misses.Load(), Len: r.cache.Len()}
}

// Bind subscribes to the collection. Created and updated records are
// stored; deleted ones are evicted. Binding twice is a no-op.
func (r *Records[T]) Bind(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		return nil
	}
	unsub, err := r.coll.Subscribe(ctx, r.apply)
	if err != nil {
		return err
	}
	r.unsub = unsub
	return nil
}

// Unbind drops the subscription. Cached records are kept.
func (r *Records[T]) Unbind(ctx context.Context) error {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if unsub == nil {
		return nil
	}
	return unsub(ctx)
}

func (r *Records[T]) apply(action realtime.Action, rec T) {
	id := r.id(rec)
	if id == "" {
		r.log.Debug("Ignoring event without record id", logger.Fields("action", string(action)))
		return
	}
	switch action {
	case realtime.ActionCreate, realtime.ActionUpdate:
		r.cache.Add(r.key(id), rec)
	default:
		r.cache.Remove(r.key(id))
	}
}

func jsonID[T any](rec T) string {
	raw, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	var v struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v.ID
}
