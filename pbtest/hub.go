package pbtest

import (
	"slices"
	"sync"

	"github.com/kbukum/pbkit/logger"
)

// frame is one event written to a stream.
type frame struct {
	id    string
	event string
	data  []byte
}

// streamClient is one connected event stream.
type streamClient struct {
	id     string
	subs   map[string]struct{}
	events chan frame
}

// send queues f and reports false when the client is too slow.
func (c *streamClient) send(f frame) bool {
	select {
	case c.events <- f:
		return true
	default:
		return false
	}
}

type message struct {
	topic string
	data  []byte
}

// Hub tracks connected streams and their subscriptions and fans out
// published events.
type Hub struct {
	clients   map[string]*streamClient
	broadcast chan message
	done      chan struct{}
	stopped   bool
	mu        sync.RWMutex
	log       *logger.Logger
}

func newHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*streamClient),
		broadcast: make(chan message, 256),
		done:      make(chan struct{}),
		log:       log,
	}
}

// run fans out broadcasts until stop is called.
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) register(id string) *streamClient {
	c := &streamClient{id: id, subs: make(map[string]struct{}), events: make(chan frame, 256)}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		close(c.events)
		return c
	}
	h.clients[id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("Stream registered", logger.Fields(logger.FieldClientID, id, "total_clients", total))
	return c
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
		close(c.events)
	}
}

// closeAll ends every stream. Clients see the stream close.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
	return n
}

// setSubscriptions replaces a client's topic set. ok is false for an
// unknown client.
func (h *Hub) setSubscriptions(id string, topics []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	c.subs = make(map[string]struct{}, len(topics))
	for _, t := range topics {
		c.subs[t] = struct{}{}
	}
	return true
}

func (h *Hub) subscriptions(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(c.subs))
	for t := range c.subs {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

func (h *Hub) publish(topic string, data []byte) {
	select {
	case h.broadcast <- message{topic: topic, data: data}:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for _, c := range h.clients {
		if _, ok := c.subs[msg.topic]; !ok {
			continue
		}
		if c.send(frame{event: msg.topic, data: msg.data}) {
			matched++
		} else {
			h.log.Warn("Stream too slow, dropping event", logger.Fields(logger.FieldClientID, c.id))
		}
	}
	h.log.Debug("Event published", logger.Fields(logger.FieldTopic, msg.topic, "match_count", matched))
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) clientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
