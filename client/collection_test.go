package client_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/pbkit/client"
	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/realtime"
	"github.com/kbukum/pbkit/schema"
	"github.com/kbukum/pbkit/testutil"
)

type Post struct {
	client.Record
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

var postSchema = schema.MustNew(
	schema.Text("title", schema.Required(), schema.Max(50)),
	schema.Select("status", []string{"draft", "published"}),
)

type change struct {
	action realtime.Action
	post   Post
}

type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) fn(action realtime.Action, p Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{action, p})
}

func (r *recorder) snapshot() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

func (r *recorder) waitLen(t *testing.T, n int) []change {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, func() bool { return len(r.snapshot()) >= n },
		fmt.Sprintf("expected %d realtime events", n))
	return r.snapshot()
}

func TestCollection_CRUD(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", postSchema)
	ctx := context.Background()

	created, err := posts.Create(ctx, Post{Title: "hello", Status: "draft"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created.ID) != 15 || created.CollectionName != "posts" || created.Title != "hello" {
		t.Fatalf("created = %+v", created)
	}

	got, err := posts.Get(ctx, created.ID)
	if err != nil || got.Title != "hello" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	updated, err := posts.Update(ctx, created.ID, map[string]any{"status": "published"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != "published" || updated.Title != "hello" {
		t.Errorf("updated = %+v", updated)
	}

	if err := posts.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := posts.Get(ctx, created.ID); !apperrors.IsNotFound(err) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := posts.Delete(ctx, created.ID); !apperrors.IsNotFound(err) {
		t.Errorf("second Delete: %v", err)
	}
}

func TestCollection_LocalValidation(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", postSchema)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"missing title", func() error { _, err := posts.Create(ctx, Post{Status: "draft"}); return err }},
		{"bad select", func() error { _, err := posts.Create(ctx, Post{Title: "x", Status: "archived"}); return err }},
		{"patch too long", func() error {
			_, err := posts.Update(ctx, "abc", map[string]any{"title": string(make([]byte, 51))})
			return err
		}},
		{"empty id", func() error { _, err := posts.Get(ctx, ""); return err }},
		{"delete empty id", func() error { return posts.Delete(ctx, "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}

	res, err := posts.List(ctx, client.ListOptions{})
	if err != nil || res.TotalItems != 0 {
		t.Errorf("invalid payloads reached the server: %+v %v", res, err)
	}
}

func TestCollection_CreateMultipartSkipsSchema(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", postSchema)

	body, err := httpclient.NewMultipartBody(map[string]any{"title": "with file"},
		httpclient.FileField{FieldName: "cover", FileName: "cover.png", Data: []byte("png")})
	if err != nil {
		t.Fatal(err)
	}
	created, err := posts.Create(context.Background(), body)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, ok := srv.Record("posts", created.ID)
	if !ok || rec["title"] != "with file" || rec["cover"] != "cover.png" {
		t.Errorf("stored = %v", rec)
	}
}

func TestCollection_ListFullListFirst(t *testing.T) {
	srv := newServer(t)
	for i := range 5 {
		status := "draft"
		if i%2 == 0 {
			status = "published"
		}
		srv.Seed("posts", map[string]any{"title": fmt.Sprintf("post %d", i), "status": status})
	}
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", postSchema)
	ctx := context.Background()

	page, err := posts.List(ctx, client.ListOptions{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 2 || page.TotalItems != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Errorf("page = %+v", page)
	}

	all, err := posts.FullList(ctx, client.ListOptions{PerPage: 2})
	if err != nil || len(all) != 5 {
		t.Fatalf("FullList = %d items, %v", len(all), err)
	}

	published, err := posts.FullList(ctx, client.ListOptions{Filter: "status = 'published'", Sort: "-title"})
	if err != nil || len(published) != 3 || published[0].Title != "post 4" {
		t.Errorf("filtered = %+v, %v", published, err)
	}

	first, err := posts.First(ctx, "title = 'post 3'", client.ListOptions{})
	if err != nil || first.Title != "post 3" {
		t.Errorf("First = %+v, %v", first, err)
	}
	if _, err := posts.First(ctx, "title = 'nope'", client.ListOptions{}); !apperrors.IsNotFound(err) {
		t.Errorf("First miss: %v", err)
	}
	if _, err := posts.List(ctx, client.ListOptions{Filter: "title ~ 'x'"}); !apperrors.HasCode(err, apperrors.ErrCodeBadRequest) {
		t.Errorf("bad filter: %v", err)
	}
}

func TestCollection_Subscribe(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", postSchema)
	ctx := context.Background()

	var all, one recorder
	unsub, err := posts.Subscribe(ctx, all.fn)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	created, err := posts.Create(ctx, Post{Title: "live"})
	if err != nil {
		t.Fatal(err)
	}
	changes := all.waitLen(t, 1)
	if changes[0].action != realtime.ActionCreate || changes[0].post.ID != created.ID {
		t.Errorf("create event = %+v", changes[0])
	}

	if _, err := posts.SubscribeRecord(ctx, created.ID, one.fn); err != nil {
		t.Fatalf("SubscribeRecord: %v", err)
	}
	if _, err := posts.Update(ctx, created.ID, map[string]any{"title": "edited"}); err != nil {
		t.Fatal(err)
	}
	if got := one.waitLen(t, 1)[0]; got.action != realtime.ActionUpdate || got.post.Title != "edited" {
		t.Errorf("record event = %+v", got)
	}
	all.waitLen(t, 2)

	if err := unsub(ctx); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	subs := srv.Submissions()
	if last := subs[len(subs)-1]; len(last.Subscriptions) != 1 || last.Subscriptions[0] != "posts/"+created.ID {
		t.Errorf("last submission = %+v", last)
	}

	if err := posts.Unsubscribe(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if topics := c.Realtime().Topics(); len(topics) != 0 {
		t.Errorf("topics = %v", topics)
	}
}

func TestCollection_SubscribeSurvivesReconnect(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", nil)
	ctx := context.Background()

	var rec recorder
	if _, err := posts.Subscribe(ctx, rec.fn); err != nil {
		t.Fatal(err)
	}
	firstID := c.Realtime().ClientID()

	srv.DropClients()
	testutil.Eventually(t, 2*time.Second, func() bool {
		id := c.Realtime().ClientID()
		return id != "" && id != firstID && c.Realtime().State() == realtime.StateConnected &&
			len(srv.Subscriptions(id)) == 1
	}, "client did not resubscribe after reconnect")

	if _, err := posts.Create(ctx, Post{Title: "after reconnect"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.waitLen(t, 1)[0]; got.post.Title != "after reconnect" {
		t.Errorf("event = %+v", got)
	}
	if srv.Connections() != 2 {
		t.Errorf("connections = %d", srv.Connections())
	}
}

func TestCollection_SubscribeErrors(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", nil)
	ctx := context.Background()

	if _, err := posts.Subscribe(ctx, nil); !apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
		t.Errorf("nil listener: %v", err)
	}

	srv.FailNextSubmissions(1, http.StatusForbidden)
	if _, err := posts.Subscribe(ctx, func(realtime.Action, Post) {}); !apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
		t.Errorf("rejected submission: %v", err)
	}
}

func TestCollection_DecodeFailureDeliversZero(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL())
	posts := client.NewCollection[Post](c, "posts", nil)
	ctx := context.Background()

	var rec recorder
	if _, err := posts.Subscribe(ctx, rec.fn); err != nil {
		t.Fatal(err)
	}
	if err := srv.Publish("posts", "update", map[string]any{"title": 42}); err != nil {
		t.Fatal(err)
	}
	got := rec.waitLen(t, 1)[0]
	if got.action != realtime.ActionUpdate || got.post != (Post{}) {
		t.Errorf("event = %+v", got)
	}
}
