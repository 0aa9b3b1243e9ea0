package realtime

import (
	"context"
	"fmt"

	"github.com/kbukum/pbkit/component"
)

const componentName = "realtime"

var (
	_ component.Component   = (*Realtime)(nil)
	_ component.Describable = (*Realtime)(nil)
)

// Name implements component.Component.
func (r *Realtime) Name() string { return componentName }

// Start connects and waits for the first sync.
func (r *Realtime) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return r.Connect(ctx)
}

// Stop disconnects. Subscriptions are kept for a later Start.
func (r *Realtime) Stop(context.Context) error {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	r.Disconnect()
	return nil
}

// Health reports connected as healthy, any transitional state as degraded
// and a started engine without a connection as unhealthy.
func (r *Realtime) Health(context.Context) component.Health {
	state := r.State()
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	h := component.Health{Name: componentName, Status: component.StatusHealthy, Message: state.String()}
	switch state {
	case StateConnected:
	case StateDisconnected:
		if started {
			h.Status = component.StatusUnhealthy
		}
	default:
		h.Status = component.StatusDegraded
	}
	return h
}

// Describe implements component.Describable.
func (r *Realtime) Describe() component.Description {
	return component.Description{
		Type:    "realtime",
		Details: fmt.Sprintf("%s topics=%d state=%s", r.cfg.Path, r.topicCount(), r.State()),
	}
}
