package testutil

import (
	"context"

	"github.com/kbukum/pbkit/component"
)

// TestComponent is a component.Component whose state tests can reset and
// roll back between cases.
type TestComponent interface {
	component.Component

	// Reset returns the component to its freshly started state.
	Reset(ctx context.Context) error

	// Snapshot captures the current state for a later Restore.
	Snapshot(ctx context.Context) (interface{}, error)

	// Restore rolls back to a value returned by Snapshot.
	Restore(ctx context.Context, snapshot interface{}) error
}
