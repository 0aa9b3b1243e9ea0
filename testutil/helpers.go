package testutil

import (
	"context"
	"testing"
	"time"
)

// THelper binds components to a test's lifetime.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps t. Failures are reported with t.Fatalf.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext sets the context passed to component methods.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts c and stops it when the test ends.
func (h *THelper) Setup(c TestComponent) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(h.ctx); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// SetupAll starts components in order through a Manager and stops them
// in reverse order when the test ends.
func (h *THelper) SetupAll(components ...TestComponent) *Manager {
	h.t.Helper()
	m := NewManager(h.ctx)
	for _, c := range components {
		m.Add(c)
	}
	h.t.Cleanup(func() {
		if err := m.StopAll(); err != nil {
			h.t.Errorf("failed to stop components: %v", err)
		}
	})
	if err := m.StartAll(); err != nil {
		h.t.Fatalf("%v", err)
	}
	return m
}

// Reset resets c.
func (h *THelper) Reset(c TestComponent) {
	h.t.Helper()
	if err := c.Reset(h.ctx); err != nil {
		h.t.Fatalf("failed to reset component %s: %v", c.Name(), err)
	}
}

// Snapshot captures c's state.
func (h *THelper) Snapshot(c TestComponent) interface{} {
	h.t.Helper()
	snap, err := c.Snapshot(h.ctx)
	if err != nil {
		h.t.Fatalf("failed to snapshot component %s: %v", c.Name(), err)
	}
	return snap
}

// Restore rolls c back to snap.
func (h *THelper) Restore(c TestComponent, snap interface{}) {
	h.t.Helper()
	if err := c.Restore(h.ctx, snap); err != nil {
		h.t.Fatalf("failed to restore component %s: %v", c.Name(), err)
	}
}

// DefaultPollInterval is how often Eventually checks its condition.
const DefaultPollInterval = 5 * time.Millisecond

// Eventually polls cond until it returns true, failing the test with msg
// after timeout.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s: %s", timeout, msg)
		}
		time.Sleep(DefaultPollInterval)
	}
}
