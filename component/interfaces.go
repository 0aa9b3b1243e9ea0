package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of a client process.
type Component interface {
	// Name returns the unique name used for registration.
	Name() string

	// Start brings the component up. It may block until ready or ctx is done.
	Start(ctx context.Context) error

	// Stop releases the component's resources.
	Stop(ctx context.Context) error

	// Health reports the current state.
	Health(ctx context.Context) Health
}

// Description is a one-line summary a component can report about itself.
type Description struct {
	// Name defaults to the component's Name() when empty.
	Name string
	// Type is a short category such as "realtime" or "server".
	Type string
	// Details is shown next to the name, e.g. "http://127.0.0.1:8090 topics=3".
	Details string
}

// Describable is optionally implemented by components that can summarize
// their configuration.
type Describable interface {
	Describe() Description
}
