package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/resilience"
	"github.com/kbukum/pbkit/testutil"
)

type fakeTransport struct {
	hooks Hooks

	mu       sync.Mutex
	handlers map[string][]*Listener
	closed   bool
}

func (t *fakeTransport) On(topic string, l *Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = append(t.handlers[topic], l)
}

func (t *fakeTransport) Off(topic string, l *Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.handlers[topic]
	for i, h := range list {
		if h == l {
			t.handlers[topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(t.handlers[topic]) == 0 {
		delete(t.handlers, topic)
	}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) bound(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers[topic])
}

func (t *fakeTransport) emit(topic, data string) {
	t.mu.Lock()
	list := append([]*Listener(nil), t.handlers[topic]...)
	t.mu.Unlock()
	for _, l := range list {
		l.Dispatch([]byte(data))
	}
}

func (t *fakeTransport) connect(clientID string) { t.hooks.OnConnect(clientID) }

func (t *fakeTransport) fail(err error) { t.hooks.OnError(err) }

type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dialed     chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 64)}
}

func (d *fakeDialer) Dial(_ context.Context, hooks Hooks) (Transport, error) {
	t := &fakeTransport{hooks: hooks, handlers: make(map[string][]*Listener)}
	d.mu.Lock()
	d.transports = append(d.transports, t)
	d.mu.Unlock()
	d.dialed <- t
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-d.dialed:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dial")
		return nil
	}
}

// fakeBackend records subscription submissions.
type fakeBackend struct {
	mu          sync.Mutex
	submissions []submission
	keys        []string
	// respond, when set, decides each submission's outcome.
	respond func(ctx context.Context, n int, s submission) error
}

func (b *fakeBackend) Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	s, ok := req.Body.(submission)
	if !ok {
		return nil, errors.New("unexpected body")
	}

	b.mu.Lock()
	b.submissions = append(b.submissions, s)
	b.keys = append(b.keys, req.Query["$cancelKey"])
	n := len(b.submissions)
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		if err := respond(ctx, n, s); err != nil {
			return nil, err
		}
	}
	return &httpclient.Response{StatusCode: 204}, nil
}

func (b *fakeBackend) DoStream(context.Context, httpclient.Request) (*httpclient.StreamResponse, error) {
	return nil, errors.New("streams come from the fake dialer")
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submissions)
}

func (b *fakeBackend) last() submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.submissions) == 0 {
		return submission{}
	}
	return b.submissions[len(b.submissions)-1]
}

type collection string

func (c collection) Identifier() string { return string(c) }

const posts = collection("posts")

func newTestRealtime(t *testing.T, mutate ...func(*Config)) (*Realtime, *fakeDialer, *fakeBackend) {
	t.Helper()
	cfg := Config{
		ReconnectIntervals: resilience.ScheduleMillis(5),
		ConnectTimeout:     2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	dialer := newFakeDialer()
	backend := &fakeBackend{}
	r, err := New(backend, cfg,
		WithDialer(dialer),
		WithLogger(logger.Nop()),
		WithMeter(noop.NewMeterProvider().Meter("test")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(r.Disconnect)
	return r, dialer, backend
}

type subscribeResult struct {
	unsub UnsubscribeFunc
	err   error
}

func subscribeAsync(r *Realtime, topic string, fn ListenerFunc) chan subscribeResult {
	ch := make(chan subscribeResult, 1)
	go func() {
		unsub, err := r.SubscribeTopic(context.Background(), topic, fn)
		ch <- subscribeResult{unsub, err}
	}()
	return ch
}

func await(t *testing.T, ch chan subscribeResult) subscribeResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return")
		return subscribeResult{}
	}
}

// connected subscribes to topic and completes the handshake.
func connected(t *testing.T, r *Realtime, d *fakeDialer, topic string, fn ListenerFunc) (*fakeTransport, UnsubscribeFunc) {
	t.Helper()
	ch := subscribeAsync(r, topic, fn)
	tr := d.next(t)
	tr.connect("client-1")
	res := await(t, ch)
	if res.err != nil {
		t.Fatalf("subscribe: %v", res.err)
	}
	return tr, res.unsub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, cond, "condition not met in time")
}

func (r *Realtime) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Realtime) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func nopListener(Action, json.RawMessage) {}
