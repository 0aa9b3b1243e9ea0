package httpclient

import (
	"context"
	"errors"
	"sync"
)

// errSuperseded is the cancel cause for a request replaced by a newer one
// sharing its cancel key.
var errSuperseded = errors.New("superseded by a newer request with the same cancel key")

// errCancelledByClient is the cancel cause for CancelRequest and CancelAll.
var errCancelledByClient = errors.New("request cancelled")

type inflight struct {
	cancel context.CancelCauseFunc
}

// cancelRegistry tracks in-flight requests by cancel key.
type cancelRegistry struct {
	mu      sync.Mutex
	entries map[string]*inflight
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{entries: make(map[string]*inflight)}
}

// track derives a cancellable context for key, aborting any request already
// registered under it. The returned release must be called when the request
// finishes.
func (r *cancelRegistry) track(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	entry := &inflight{cancel: cancel}

	r.mu.Lock()
	prev := r.entries[key]
	r.entries[key] = entry
	r.mu.Unlock()

	if prev != nil {
		prev.cancel(errSuperseded)
	}

	release := func() {
		r.mu.Lock()
		if r.entries[key] == entry {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return ctx, release
}

func (r *cancelRegistry) cancel(key string) {
	r.mu.Lock()
	entry := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if entry != nil {
		entry.cancel(errCancelledByClient)
	}
}

func (r *cancelRegistry) cancelAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*inflight)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancel(errCancelledByClient)
	}
}
