package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/pbkit/cache"
	"github.com/kbukum/pbkit/client"
	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/pbtest"
	"github.com/kbukum/pbkit/realtime"
	"github.com/kbukum/pbkit/testutil"
)

type Post struct {
	client.Record
	Title string `json:"title"`
}

func setup(t *testing.T, size int) (*pbtest.Server, *client.Collection[Post], *cache.Records[Post]) {
	t.Helper()
	srv := pbtest.New(pbtest.WithLogger(logger.Nop()))
	testutil.T(t).Setup(srv)

	c, err := client.New(client.Config{
		BaseURL:  srv.URL(),
		Realtime: realtime.Config{ReconnectIntervals: []time.Duration{10 * time.Millisecond}},
	}, client.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	posts := client.NewCollection[Post](c, "posts", nil)
	records, err := cache.New(posts, size, func(p Post) string { return p.ID })
	if err != nil {
		t.Fatal(err)
	}
	return srv, posts, records
}

func TestRecords_GetCachesReads(t *testing.T) {
	srv, _, records := setup(t, 0)
	rec := srv.Seed("posts", map[string]any{"title": "cached"})
	id := rec["id"].(string)
	ctx := context.Background()

	for range 3 {
		got, err := records.Get(ctx, id)
		if err != nil || got.Title != "cached" {
			t.Fatalf("Get = %+v, %v", got, err)
		}
	}
	if s := records.Stats(); s.Hits != 2 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("stats = %+v", s)
	}

	if _, err := records.Get(ctx, "missing00000000"); !apperrors.IsNotFound(err) {
		t.Errorf("missing: %v", err)
	}
	if records.Stats().Len != 1 {
		t.Error("miss was cached")
	}
}

func TestRecords_Eviction(t *testing.T) {
	_, _, records := setup(t, 2)
	for _, id := range []string{"a", "b", "c"} {
		records.Put(Post{Record: client.Record{ID: id}, Title: id})
	}
	records.Put(Post{Title: "no id"})

	if _, ok := records.Peek("a"); ok {
		t.Error("oldest record not evicted")
	}
	if p, ok := records.Peek("c"); !ok || p.Title != "c" {
		t.Errorf("Peek(c) = %+v, %v", p, ok)
	}
	records.Invalidate("c")
	if _, ok := records.Peek("c"); ok {
		t.Error("Invalidate kept the record")
	}
	records.Purge()
	if records.Stats().Len != 0 {
		t.Error("Purge kept records")
	}
}

func TestRecords_BindFollowsEvents(t *testing.T) {
	srv, posts, records := setup(t, 0)
	ctx := context.Background()

	if err := records.Bind(ctx); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := records.Bind(ctx); err != nil {
		t.Fatalf("second Bind: %v", err)
	}

	created, err := posts.Create(ctx, Post{Title: "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := records.Peek(created.ID)
		return ok
	}, "create event not cached")

	if _, err := posts.Update(ctx, created.ID, map[string]any{"title": "edited"}); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool {
		p, _ := records.Peek(created.ID)
		return p.Title == "edited"
	}, "update event not applied")

	if err := posts.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := records.Peek(created.ID)
		return !ok
	}, "delete event not applied")

	if err := records.Unbind(ctx); err != nil {
		t.Fatal(err)
	}
	if len(srv.Submissions()) == 0 {
		t.Error("no subscription was sent")
	}
}

func TestRecords_DefaultIDFunc(t *testing.T) {
	_, posts, _ := setup(t, 0)
	records, err := cache.New[Post](posts, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	records.Put(Post{Record: client.Record{ID: "abc"}, Title: "x"})
	if _, ok := records.Peek("abc"); !ok {
		t.Error("record keyed by JSON id not found")
	}
}
