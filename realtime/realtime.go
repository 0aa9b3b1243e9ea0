package realtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
)

var (
	// ErrConnectTimeout is returned when the handshake does not arrive in
	// time.
	ErrConnectTimeout = apperrors.New(apperrors.ErrCodeTimeout,
		"realtime connection took too long to establish", http.StatusGatewayTimeout)

	// ErrDisconnected is returned to callers still waiting on Connect when
	// the engine is disconnected.
	ErrDisconnected = apperrors.New(apperrors.ErrCodeCancelled, "realtime disconnected", 0)
)

// Resource is anything that names a collection, usually a client.Collection.
type Resource interface {
	Identifier() string
}

// Doer sends requests. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// HTTPClient is the request surface the engine needs by default.
type HTTPClient interface {
	Doer
	Streamer
}

// UnsubscribeFunc removes the listener it was returned for.
type UnsubscribeFunc func(ctx context.Context) error

// State is the connection lifecycle as seen from outside.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSyncing
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "syncing"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option customizes a Realtime.
type Option func(*Realtime)

// WithDialer replaces the SSE dialer.
func WithDialer(d Dialer) Option {
	return func(r *Realtime) { r.dialer = d }
}

// WithLogger sets the logger. The component field is added automatically.
func WithLogger(l *logger.Logger) Option {
	return func(r *Realtime) { r.log = l }
}

// WithMeter records engine metrics on meter instead of the global one.
func WithMeter(m metric.Meter) Option {
	return func(r *Realtime) { r.meter = m }
}

// Realtime owns the event-stream connection, the subscription registry
// and the sync with the server. All methods are safe for concurrent use.
type Realtime struct {
	cfg     Config
	doer    Doer
	dialer  Dialer
	log     *logger.Logger
	meter   metric.Meter
	metrics *metrics

	mu        sync.Mutex
	subs      *registry
	transport Transport
	clientID  string
	attempts  int
	pending   []chan error
	// connecting is set from the first physical attempt until the session
	// is established or torn down for good.
	connecting bool
	syncing    bool
	started    bool

	// gen identifies the current physical attempt; callbacks carrying an
	// older value are ignored.
	gen            uint64
	genCtx         context.Context
	genCancel      context.CancelFunc
	connectTimer   *time.Timer
	reconnectTimer *time.Timer
}

// New creates an engine that talks to the backend through client. It does
// not connect until the first Subscribe or Connect.
func New(client HTTPClient, cfg Config, opts ...Option) (*Realtime, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Realtime{
		cfg:  cfg,
		doer: client,
		subs: newRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.GetGlobalLogger()
	}
	r.log = r.log.WithComponent(componentName)
	if r.dialer == nil {
		r.dialer = NewSSEDialer(client, cfg.Path, r.log)
	}
	if r.meter == nil {
		r.meter = observability.Meter()
	}

	m, err := newMetrics(r.meter, r.topicCount)
	if err != nil {
		return nil, fmt.Errorf("realtime: creating metrics: %w", err)
	}
	r.metrics = m
	return r, nil
}

// Subscribe listens to every record event of a collection.
func (r *Realtime) Subscribe(ctx context.Context, res Resource, fn ListenerFunc) (UnsubscribeFunc, error) {
	topic, err := resourceTopic(res)
	if err != nil {
		return nil, err
	}
	return r.subscribe(ctx, topic, fn)
}

// SubscribeRecord listens to events of a single record.
func (r *Realtime) SubscribeRecord(ctx context.Context, res Resource, recordID string, fn ListenerFunc) (UnsubscribeFunc, error) {
	topic, err := resourceTopic(res)
	if err != nil {
		return nil, err
	}
	if recordID == "" {
		return nil, apperrors.MissingField("record")
	}
	return r.subscribe(ctx, topic+"/"+recordID, fn)
}

// SubscribeTopic listens to a raw topic string such as "posts" or
// "posts/abc123".
func (r *Realtime) SubscribeTopic(ctx context.Context, topic string, fn ListenerFunc) (UnsubscribeFunc, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperrors.MissingField("topic")
	}
	return r.subscribe(ctx, topic, fn)
}

func (r *Realtime) subscribe(ctx context.Context, topic string, fn ListenerFunc) (UnsubscribeFunc, error) {
	if fn == nil {
		return nil, apperrors.MissingField("listener")
	}
	l := newListener(topic, fn, r.metrics.event)

	r.mu.Lock()
	first := r.subs.add(l)
	connected := r.isConnectedLocked()
	if connected && !first {
		r.attachLocked(l)
	}
	r.mu.Unlock()

	var err error
	switch {
	case !connected:
		if err = r.Connect(ctx); err == nil {
			err = r.settleListener(ctx, l)
		}
	case first:
		err = r.submitSubscriptions(ctx)
	}
	if err != nil {
		r.dropListener(l)
		return nil, err
	}

	r.log.Debug("Subscribed", logger.Fields(logger.FieldTopic, topic))
	return func(ctx context.Context) error {
		return r.unsubscribeListener(ctx, l)
	}, nil
}

// settleListener covers a subscribe that raced a connection completing:
// the session may have synced without this topic, or bound listeners
// before this one was added.
func (r *Realtime) settleListener(ctx context.Context, l *Listener) error {
	r.mu.Lock()
	if !r.isConnectedLocked() {
		r.mu.Unlock()
		return nil
	}
	if r.subs.sent(l.topic) {
		r.attachLocked(l)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.submitSubscriptions(ctx)
}

// dropListener undoes a registration whose subscribe call failed.
func (r *Realtime) dropListener(l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if found, _ := r.subs.remove(l); found {
		r.detachLocked(l)
	}
}

func (r *Realtime) unsubscribeListener(ctx context.Context, l *Listener) error {
	r.mu.Lock()
	found, emptied := r.subs.remove(l)
	if found {
		r.detachLocked(l)
	}
	submit := emptied && r.canSubmitLocked()
	r.mu.Unlock()

	if !submit {
		return nil
	}
	return r.submitSubscriptions(ctx)
}

// Unsubscribe removes every listener of a collection topic, or of the
// record topic when a record id is given, and resyncs with the server.
func (r *Realtime) Unsubscribe(ctx context.Context, res Resource, recordID ...string) error {
	topic, err := resourceTopic(res)
	if err != nil {
		return err
	}
	switch len(recordID) {
	case 0:
	case 1:
		if recordID[0] == "" {
			return apperrors.MissingField("record")
		}
		topic += "/" + recordID[0]
	default:
		return apperrors.InvalidInput("record", "at most one record id may be given")
	}
	return r.UnsubscribeTopic(ctx, topic)
}

// UnsubscribeTopic removes every listener of a raw topic and resyncs.
func (r *Realtime) UnsubscribeTopic(ctx context.Context, topic string) error {
	r.mu.Lock()
	removed := r.subs.removeTopic(topic)
	for _, l := range removed {
		r.detachLocked(l)
	}
	submit := len(removed) > 0 && r.canSubmitLocked()
	r.mu.Unlock()

	if !submit {
		return nil
	}
	return r.submitSubscriptions(ctx)
}

// UnsubscribeAll clears every subscription and closes the connection
// instead of syncing an empty topic set.
func (r *Realtime) UnsubscribeAll() {
	r.mu.Lock()
	r.detachAllLocked()
	r.subs.clear()
	pending := r.disconnectLocked(false)
	r.mu.Unlock()

	rejectAll(pending, ErrDisconnected)
}

// Close unsubscribes everything, disconnects and detaches the engine's
// metric callback from the meter. The engine must not be used afterwards.
func (r *Realtime) Close() error {
	r.UnsubscribeAll()
	return r.metrics.close()
}

// Topics returns the subscribed topics in first-subscription order.
func (r *Realtime) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs.topicList()
}

// HasUnsentSubscriptions reports whether the topic set changed since the
// last submission.
func (r *Realtime) HasUnsentSubscriptions() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs.hasUnsent()
}

func (r *Realtime) topicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs.len()
}

func resourceTopic(res Resource) (string, error) {
	if res == nil {
		return "", apperrors.MissingField("collection")
	}
	id := res.Identifier()
	if id == "" {
		return "", apperrors.InvalidInput("collection", "identifier is empty")
	}
	return id, nil
}
