package client_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/pbkit/client"
	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/pbtest"
	"github.com/kbukum/pbkit/testutil"
)

func subscribedTo(srv *pbtest.Server, topic string) func() bool {
	return func() bool {
		ids := srv.ClientIDs()
		return len(ids) == 1 && slices.Contains(srv.Subscriptions(ids[0]), topic)
	}
}

func TestCollection_SeparateBackends(t *testing.T) {
	primary := pbtest.New(pbtest.WithName("primary"), pbtest.WithLogger(logger.Nop()))
	replica := pbtest.New(pbtest.WithName("replica"), pbtest.WithLogger(logger.Nop()))
	backends := testutil.T(t).SetupAll(primary, replica)
	if backends.Get("replica") != replica {
		t.Fatal("replica not registered by name")
	}
	ctx := context.Background()

	postsA := client.NewCollection[Post](newClient(t, primary.URL()), "posts", postSchema)
	postsB := client.NewCollection[Post](newClient(t, replica.URL()), "posts", postSchema)
	var onA, onB recorder
	if _, err := postsA.Subscribe(ctx, onA.fn); err != nil {
		t.Fatal(err)
	}
	if _, err := postsB.Subscribe(ctx, onB.fn); err != nil {
		t.Fatal(err)
	}

	old, err := postsA.Create(ctx, Post{Title: "on primary"})
	if err != nil {
		t.Fatal(err)
	}
	if got := onA.waitLen(t, 1); got[0].post.Title != "on primary" {
		t.Errorf("primary event = %+v", got[0])
	}
	if _, err := postsB.Create(ctx, Post{Title: "on replica"}); err != nil {
		t.Fatal(err)
	}
	if got := onB.waitLen(t, 1); len(got) != 1 || got[0].post.Title != "on replica" {
		t.Errorf("replica events = %+v", got)
	}
	if got := onA.snapshot(); len(got) != 1 {
		t.Errorf("primary saw %d events, want 1", len(got))
	}

	// Resetting both backends drops every stream and record; the clients
	// reconnect and resubscribe on their own.
	if err := backends.ResetAll(); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, subscribedTo(primary, "posts"), "primary client did not resubscribe")
	testutil.Eventually(t, 2*time.Second, subscribedTo(replica, "posts"), "replica client did not resubscribe")

	if _, err := postsA.Get(ctx, old.ID); !apperrors.IsNotFound(err) {
		t.Errorf("record survived reset: %v", err)
	}
	if _, err := postsA.Create(ctx, Post{Title: "after reset"}); err != nil {
		t.Fatal(err)
	}
	if got := onA.waitLen(t, 2); got[1].post.Title != "after reset" {
		t.Errorf("event after reset = %+v", got[1])
	}
}
