package pbtest

import (
	"context"
	"fmt"

	"github.com/kbukum/pbkit/testutil"
)

var _ testutil.TestComponent = (*Server)(nil)

type snapshot struct {
	store *store
}

// Reset drops every stream and record and clears the counters and any
// pending failures.
func (s *Server) Reset(_ context.Context) error {
	s.hub.closeAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = newStore()
	s.submissions = nil
	s.connections = 0
	s.failConnect = failure{}
	s.failSubmit = failure{}
	return nil
}

// Snapshot captures the stored collections and records.
func (s *Server) Snapshot(_ context.Context) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{store: s.store.clone()}, nil
}

// Restore brings back records captured by Snapshot. Open streams are kept.
func (s *Server) Restore(_ context.Context, snap interface{}) error {
	st, ok := snap.(snapshot)
	if !ok {
		return fmt.Errorf("pbtest: invalid snapshot type %T", snap)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st.store.clone()
	return nil
}
