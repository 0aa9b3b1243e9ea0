package realtime

import "slices"

// registry maps topics to their listeners in subscription order and
// remembers the topic set last sent to the server. It is not safe for
// concurrent use; Realtime guards it with its mutex.
type registry struct {
	topics   map[string][]*Listener
	order    []string
	lastSent []string
	// sendGen counts markSent calls so a failed submission can tell
	// whether a newer one has replaced it.
	sendGen uint64
}

func newRegistry() *registry {
	return &registry{topics: make(map[string][]*Listener)}
}

// add appends l and reports whether it is the topic's first listener.
func (r *registry) add(l *Listener) bool {
	existing, ok := r.topics[l.topic]
	if !ok {
		r.order = append(r.order, l.topic)
	}
	r.topics[l.topic] = append(existing, l)
	return !ok
}

// remove drops exactly l. emptied reports that the topic lost its last
// listener and was deleted.
func (r *registry) remove(l *Listener) (found, emptied bool) {
	list := r.topics[l.topic]
	idx := slices.Index(list, l)
	if idx < 0 {
		return false, false
	}
	if len(list) == 1 {
		r.deleteTopic(l.topic)
		return true, true
	}
	r.topics[l.topic] = slices.Delete(slices.Clone(list), idx, idx+1)
	return true, false
}

// removeTopic deletes topic and returns the listeners it held.
func (r *registry) removeTopic(topic string) []*Listener {
	list, ok := r.topics[topic]
	if !ok {
		return nil
	}
	r.deleteTopic(topic)
	return list
}

func (r *registry) deleteTopic(topic string) {
	delete(r.topics, topic)
	r.order = slices.DeleteFunc(r.order, func(t string) bool { return t == topic })
}

func (r *registry) clear() {
	r.topics = make(map[string][]*Listener)
	r.order = nil
	r.lastSent = nil
}

func (r *registry) has(topic string) bool {
	_, ok := r.topics[topic]
	return ok
}

func (r *registry) listeners(topic string) []*Listener {
	return r.topics[topic]
}

// topicList returns the topics in first-subscription order.
func (r *registry) topicList() []string {
	return slices.Clone(r.order)
}

func (r *registry) len() int {
	return len(r.order)
}

// each visits every listener, topic by topic.
func (r *registry) each(fn func(topic string, l *Listener)) {
	for _, topic := range r.order {
		for _, l := range r.topics[topic] {
			fn(topic, l)
		}
	}
}

// markSent records the current topic set as submitted and returns it.
func (r *registry) markSent() []string {
	r.sendGen++
	r.lastSent = r.topicList()
	if r.lastSent == nil {
		r.lastSent = []string{}
	}
	return slices.Clone(r.lastSent)
}

// forgetSent discards the last-sent set when submission gen failed and
// nothing was submitted after it, so the topics show up as drift again.
func (r *registry) forgetSent(gen uint64) {
	if gen == r.sendGen {
		r.lastSent = nil
	}
}

// sent reports whether topic was part of the last submission.
func (r *registry) sent(topic string) bool {
	return slices.Contains(r.lastSent, topic)
}

// hasUnsent reports drift between the registry and the last submission.
// Order is irrelevant.
func (r *registry) hasUnsent() bool {
	if len(r.lastSent) != len(r.order) {
		return true
	}
	for _, topic := range r.order {
		if !slices.Contains(r.lastSent, topic) {
			return true
		}
	}
	return false
}
