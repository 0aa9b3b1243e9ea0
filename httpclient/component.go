package httpclient

import (
	"context"
	"fmt"

	"github.com/kbukum/pbkit/component"
	"github.com/kbukum/pbkit/resilience"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component exposes a Client to a component.Registry. Health follows the
// circuit breaker: open is unhealthy, half-open is degraded.
type Component struct {
	client *Client
}

// NewComponent wraps c. The client is usable before Start.
func NewComponent(c *Client) *Component {
	return &Component{client: c}
}

// Name implements component.Component.
func (c *Component) Name() string { return c.client.Name() }

// Start implements component.Component.
func (c *Component) Start(context.Context) error { return nil }

// Stop aborts every request that carries a cancel key.
func (c *Component) Stop(context.Context) error {
	c.client.CancelAll()
	return nil
}

// Health implements component.Component.
func (c *Component) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	cb := c.client.CircuitBreaker()
	if cb == nil {
		return h
	}
	state := cb.State()
	h.Message = "circuit " + state.String()
	switch state {
	case resilience.StateOpen:
		h.Status = component.StatusUnhealthy
	case resilience.StateHalfOpen:
		h.Status = component.StatusDegraded
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := c.client.BaseURL()
	if cb := c.client.CircuitBreaker(); cb != nil {
		details += " breaker=" + cb.State().String()
	}
	if rl := c.client.RateLimiter(); rl != nil {
		details += fmt.Sprintf(" rate=%g/s burst=%d", rl.Rate(), rl.Burst())
	}
	return component.Description{Type: "http", Details: details}
}
