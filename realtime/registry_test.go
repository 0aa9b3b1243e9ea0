package realtime

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 200 * time.Millisecond},
		{0, 200 * time.Millisecond},
		{1, 300 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{4, 1200 * time.Millisecond},
		{5, 1500 * time.Millisecond},
		{6, 2 * time.Second},
		{7, 2 * time.Second},
		{500, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "/api/realtime" || cfg.ConnectTimeout != 10*time.Second ||
		cfg.MaxReconnectAttempts != 10000 || cfg.MaxResubmits != 3 {
		t.Errorf("defaults = %+v", cfg)
	}
	if !slices.Equal(cfg.ReconnectIntervals, DefaultReconnectIntervals) {
		t.Errorf("intervals = %v", cfg.ReconnectIntervals)
	}

	bad := Config{ReconnectIntervals: []time.Duration{time.Second, -time.Second}}
	bad.ApplyDefaults()
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative interval")
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	reg := newRegistry()
	a := newListener("posts", nopListener, nil)
	b := newListener("posts", nopListener, nil)
	c := newListener("users/1", nopListener, nil)

	if !reg.add(a) {
		t.Error("first listener should report first")
	}
	if reg.add(b) {
		t.Error("second listener should not report first")
	}
	reg.add(c)

	if got := reg.topicList(); !slices.Equal(got, []string{"posts", "users/1"}) {
		t.Errorf("topics = %v", got)
	}
	if len(reg.listeners("posts")) != 2 {
		t.Errorf("listeners = %d", len(reg.listeners("posts")))
	}

	found, emptied := reg.remove(a)
	if !found || emptied {
		t.Errorf("remove(a) = %v, %v", found, emptied)
	}
	if got := reg.listeners("posts"); len(got) != 1 || got[0] != b {
		t.Error("b should remain as the only posts listener")
	}
	if found, _ := reg.remove(a); found {
		t.Error("removing twice should be a no-op")
	}

	found, emptied = reg.remove(b)
	if !found || !emptied {
		t.Errorf("remove(b) = %v, %v", found, emptied)
	}
	if reg.has("posts") {
		t.Error("emptied topic should be deleted")
	}
	if reg.len() != 1 {
		t.Errorf("len = %d", reg.len())
	}
}

func TestRegistry_SameFunctionTwice(t *testing.T) {
	reg := newRegistry()
	first := newListener("posts", nopListener, nil)
	second := newListener("posts", nopListener, nil)
	reg.add(first)
	reg.add(second)

	reg.remove(second)
	if got := reg.listeners("posts"); len(got) != 1 || got[0] != first {
		t.Error("each registration must be removable independently")
	}
}

func TestRegistry_RemoveTopic(t *testing.T) {
	reg := newRegistry()
	reg.add(newListener("posts", nopListener, nil))
	reg.add(newListener("posts", nopListener, nil))
	reg.add(newListener("posts/1", nopListener, nil))

	if got := reg.removeTopic("posts"); len(got) != 2 {
		t.Errorf("removed = %d", len(got))
	}
	if got := reg.removeTopic("posts"); got != nil {
		t.Errorf("second removeTopic = %v", got)
	}
	if got := reg.topicList(); !slices.Equal(got, []string{"posts/1"}) {
		t.Errorf("topics = %v", got)
	}
}

func TestRegistry_Unsent(t *testing.T) {
	reg := newRegistry()
	if reg.hasUnsent() {
		t.Error("empty registry never submitted has no drift")
	}

	reg.add(newListener("a", nopListener, nil))
	reg.add(newListener("b", nopListener, nil))
	if !reg.hasUnsent() {
		t.Error("expected drift before first submission")
	}

	sent := reg.markSent()
	if !slices.Equal(sent, []string{"a", "b"}) {
		t.Errorf("sent = %v", sent)
	}
	if reg.hasUnsent() || !reg.sent("a") || reg.sent("c") {
		t.Error("unexpected sent state")
	}

	// Same set in a different order is not drift.
	reg.lastSent = []string{"b", "a"}
	if reg.hasUnsent() {
		t.Error("order must not matter")
	}

	reg.add(newListener("c", nopListener, nil))
	if !reg.hasUnsent() {
		t.Error("expected drift after add")
	}

	reg.clear()
	if got := reg.markSent(); got == nil || len(got) != 0 {
		t.Errorf("empty submission = %#v, want non-nil empty", got)
	}
}

func TestRegistry_ForgetSent(t *testing.T) {
	reg := newRegistry()
	reg.add(newListener("a", nopListener, nil))

	reg.markSent()
	failed := reg.sendGen
	reg.forgetSent(failed)
	if !reg.hasUnsent() || reg.sent("a") {
		t.Fatal("failed submission still counted as sent")
	}

	reg.markSent()
	stale := reg.sendGen
	reg.markSent()
	reg.forgetSent(stale)
	if reg.hasUnsent() {
		t.Error("an older failure discarded a newer submission")
	}
}

func TestListener_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantAction Action
		wantRecord string
	}{
		{"create", `{"action":"create","record":{"id":"1"}}`, ActionCreate, `{"id":"1"}`},
		{"delete", `{"action":"delete","record":{"id":"2","n":3}}`, ActionDelete, `{"id":"2","n":3}`},
		{"malformed", `not json`, "", `{}`},
		{"empty", ``, "", `{}`},
		{"null record", `{"action":"update","record":null}`, ActionUpdate, `{}`},
		{"missing record", `{"action":"update"}`, ActionUpdate, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotAction Action
				gotRecord string
				delivered []Action
			)
			l := newListener("posts", func(a Action, rec json.RawMessage) {
				gotAction = a
				gotRecord = string(rec)
			}, func(a Action) { delivered = append(delivered, a) })

			l.Dispatch([]byte(tt.data))

			if gotAction != tt.wantAction || gotRecord != tt.wantRecord {
				t.Errorf("got (%q, %s), want (%q, %s)", gotAction, gotRecord, tt.wantAction, tt.wantRecord)
			}
			if l.Delivered() != 1 || len(delivered) != 1 {
				t.Errorf("delivered = %d, hook calls = %d", l.Delivered(), len(delivered))
			}
		})
	}
}
