package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
)

// ConnectEvent is the event name of the server's connection handshake.
// Its id carries the client id.
const ConnectEvent = "PB_CONNECT"

// ErrStreamClosed is reported when the server ends the event stream.
var ErrStreamClosed = errors.New("realtime: event stream closed by server")

// Hooks receive connection progress from a Transport. They are invoked
// from the transport's own goroutine, never from within Dial.
type Hooks struct {
	// OnConnect fires once per physical connection with the client id.
	OnConnect func(clientID string)
	// OnError fires at most once, for any failure before or after connect.
	OnError func(err error)
}

// Transport is one physical event-stream connection. Listeners are bound
// by topic name; On and Off must not block.
type Transport interface {
	On(topic string, l *Listener)
	Off(topic string, l *Listener)
	Close() error
}

// Dialer opens transports. Dial must return promptly and report progress
// only through hooks.
type Dialer interface {
	Dial(ctx context.Context, hooks Hooks) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, hooks Hooks) (Transport, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, hooks Hooks) (Transport, error) {
	return f(ctx, hooks)
}

// Streamer opens streaming HTTP requests. *httpclient.Client implements it.
type Streamer interface {
	DoStream(ctx context.Context, req httpclient.Request) (*httpclient.StreamResponse, error)
}

// SSEDialer opens the realtime event stream over HTTP.
type SSEDialer struct {
	client Streamer
	path   string
	log    *logger.Logger
}

// NewSSEDialer creates a dialer that GETs path through client.
func NewSSEDialer(client Streamer, path string, log *logger.Logger) *SSEDialer {
	if log == nil {
		log = logger.Nop()
	}
	return &SSEDialer{client: client, path: path, log: log}
}

// Dial implements Dialer.
func (d *SSEDialer) Dial(ctx context.Context, hooks Hooks) (Transport, error) {
	ctx, cancel := context.WithCancel(ctx)
	t := &sseTransport{
		hooks:    hooks,
		cancel:   cancel,
		handlers: make(map[string][]*Listener),
		log:      d.log,
	}
	go t.run(ctx, d.client, d.path)
	return t, nil
}

type sseTransport struct {
	hooks  Hooks
	cancel context.CancelFunc
	log    *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]*Listener

	closed    atomic.Bool
	errorOnce sync.Once
}

func (t *sseTransport) On(topic string, l *Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = append(t.handlers[topic], l)
}

func (t *sseTransport) Off(topic string, l *Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.handlers[topic]
	for i, h := range list {
		if h == l {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.handlers, topic)
		return
	}
	t.handlers[topic] = list
}

func (t *sseTransport) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.cancel()
	}
	return nil
}

func (t *sseTransport) run(ctx context.Context, client Streamer, path string) {
	stream, err := client.DoStream(ctx, httpclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		t.fail(err)
		return
	}
	defer func() { _ = stream.Close() }()

	if stream.SSE == nil {
		t.fail(fmt.Errorf("realtime: expected text/event-stream, got %q", stream.Headers["Content-Type"]))
		return
	}

	for {
		ev, err := stream.SSE.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamClosed
			}
			t.fail(err)
			return
		}
		if t.closed.Load() {
			return
		}

		if ev.Event == ConnectEvent {
			if t.hooks.OnConnect != nil {
				t.hooks.OnConnect(connectID(ev.ID, ev.Data))
			}
			continue
		}

		name := ev.Event
		if name == "" {
			name = "message"
		}
		t.dispatch(name, []byte(ev.Data))
	}
}

func (t *sseTransport) dispatch(topic string, data []byte) {
	t.mu.RLock()
	list := append([]*Listener(nil), t.handlers[topic]...)
	t.mu.RUnlock()

	for _, l := range list {
		t.safeDispatch(l, data)
	}
}

func (t *sseTransport) safeDispatch(l *Listener, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			t.log.Error("Realtime listener panicked", logger.Fields(
				logger.FieldTopic, l.Topic(),
				"panic", fmt.Sprint(rec),
			))
		}
	}()
	l.Dispatch(data)
}

func (t *sseTransport) fail(err error) {
	if t.closed.Load() {
		return
	}
	t.errorOnce.Do(func() {
		if t.hooks.OnError != nil {
			t.hooks.OnError(err)
		}
	})
}

// connectID takes the client id from the event id, falling back to the
// clientId field of the payload.
func connectID(id, data string) string {
	if id != "" {
		return id
	}
	var payload struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil {
		return payload.ClientID
	}
	return ""
}
