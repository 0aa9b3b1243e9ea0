package realtime

import (
	"encoding/json"
	"sync/atomic"
)

// Action is the kind of change a realtime event reports.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ListenerFunc receives one decoded event. record is the raw JSON
// document; it is "{}" and action is empty when the payload could not be
// parsed.
type ListenerFunc func(action Action, record json.RawMessage)

var emptyRecord = json.RawMessage("{}")

// Listener is one subscription registration. The same pointer is attached
// to and detached from the transport, so identity matters.
type Listener struct {
	topic     string
	fn        ListenerFunc
	onDeliver func(Action)
	delivered atomic.Int64

	// attached is guarded by the owning Realtime's mutex.
	attached bool
}

func newListener(topic string, fn ListenerFunc, onDeliver func(Action)) *Listener {
	return &Listener{topic: topic, fn: fn, onDeliver: onDeliver}
}

// Topic returns the topic this listener is registered under.
func (l *Listener) Topic() string {
	return l.topic
}

// Delivered returns how many events have been dispatched to the listener.
func (l *Listener) Delivered() int64 {
	return l.delivered.Load()
}

type eventPayload struct {
	Action Action          `json:"action"`
	Record json.RawMessage `json:"record"`
}

// Dispatch decodes an SSE data payload and invokes the callback. Malformed
// payloads are delivered as an empty action with an empty record.
func (l *Listener) Dispatch(data []byte) {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		p = eventPayload{}
	}
	if len(p.Record) == 0 || string(p.Record) == "null" {
		p.Record = emptyRecord
	}

	l.delivered.Add(1)
	if l.onDeliver != nil {
		l.onDeliver(p.Action)
	}
	l.fn(p.Action, p.Record)
}
