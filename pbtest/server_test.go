package pbtest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/pbkit/component"
	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient/sse"
	"github.com/kbukum/pbkit/pbtest"
	"github.com/kbukum/pbkit/testutil"
)

func startServer(t *testing.T, opts ...pbtest.Option) *pbtest.Server {
	t.Helper()
	srv := pbtest.New(opts...)
	testutil.T(t).Setup(srv)
	return srv
}

type stream struct {
	id     string
	reader sse.Reader
}

func openStream(t *testing.T, srv *pbtest.Server) *stream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL()+"/api/realtime", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("open stream: status %d", resp.StatusCode)
	}
	r := sse.NewReader(resp.Body)
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if ev.Event != pbtest.ConnectEvent || ev.ID == "" {
		t.Fatalf("handshake = %+v", ev)
	}
	var payload struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil || payload.ClientID != ev.ID {
		t.Fatalf("handshake data = %s", ev.Data)
	}
	return &stream{id: ev.ID, reader: r}
}

type event struct {
	Action string         `json:"action"`
	Record map[string]any `json:"record"`
}

func (s *stream) next(t *testing.T) (string, event) {
	t.Helper()
	type result struct {
		ev  *sse.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := s.reader.Next()
		ch <- result{ev, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read event: %v", res.err)
		}
		var out event
		if err := json.Unmarshal([]byte(res.ev.Data), &out); err != nil {
			t.Fatalf("decode %q: %v", res.ev.Data, err)
		}
		return res.ev.Event, out
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return "", event{}
	}
}

func doJSON(t *testing.T, method, url string, body any, header http.Header) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func subscribe(t *testing.T, srv *pbtest.Server, clientID string, topics ...string) {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, srv.URL()+"/api/realtime?$cancelKey=realtime_"+clientID,
		map[string]any{"clientId": clientID, "subscriptions": topics}, nil)
	if status != http.StatusNoContent {
		t.Fatalf("subscribe: %d %s", status, body)
	}
}

func TestServer_StreamAndPublish(t *testing.T) {
	srv := startServer(t)
	st := openStream(t, srv)

	subscribe(t, srv, st.id, "posts", "posts/abc")
	if got := srv.Subscriptions(st.id); !slices.Equal(got, []string{"posts", "posts/abc"}) {
		t.Fatalf("subscriptions = %v", got)
	}
	if got := srv.ClientIDs(); !slices.Equal(got, []string{st.id}) {
		t.Fatalf("client ids = %v", got)
	}

	_ = srv.Publish("comments", "create", map[string]any{"id": "skip"})
	if err := srv.Publish("posts/abc", "update", map[string]any{"id": "abc"}); err != nil {
		t.Fatal(err)
	}

	name, ev := st.next(t)
	if name != "posts/abc" || ev.Action != "update" || ev.Record["id"] != "abc" {
		t.Errorf("event = %s %+v", name, ev)
	}

	subs := srv.Submissions()
	if len(subs) != 1 || subs[0].CancelKey != "realtime_"+st.id {
		t.Errorf("submissions = %+v", subs)
	}
	if srv.Connections() != 1 {
		t.Errorf("connections = %d", srv.Connections())
	}
}

func TestServer_SubmitUnknownClient(t *testing.T) {
	srv := startServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL()+"/api/realtime",
		map[string]any{"clientId": "nobody", "subscriptions": []string{"posts"}}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if !apperrors.IsNotFound(apperrors.FromAPI(status, body)) {
		t.Errorf("body = %s", body)
	}
}

func TestServer_FailureInjection(t *testing.T) {
	srv := startServer(t)

	srv.FailNextConnects(1, http.StatusServiceUnavailable)
	resp, err := http.Get(srv.URL() + "/api/realtime")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if srv.Connections() != 0 {
		t.Errorf("failed connect counted")
	}

	st := openStream(t, srv)
	srv.FailNextSubmissions(1, http.StatusForbidden)
	status, _ := doJSON(t, http.MethodPost, srv.URL()+"/api/realtime",
		map[string]any{"clientId": st.id, "subscriptions": []string{"posts"}}, nil)
	if status != http.StatusForbidden {
		t.Errorf("status = %d", status)
	}
	if len(srv.Subscriptions(st.id)) != 0 {
		t.Error("failed submission applied")
	}
	subscribe(t, srv, st.id, "posts")
}

func TestServer_DropClients(t *testing.T) {
	srv := startServer(t)
	st := openStream(t, srv)

	if n := srv.DropClients(); n != 1 {
		t.Fatalf("dropped %d", n)
	}
	if _, err := st.reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
	testutil.Eventually(t, time.Second, func() bool { return len(srv.ClientIDs()) == 0 }, "client not removed")
}

func TestServer_RecordsPublishEvents(t *testing.T) {
	srv := startServer(t)
	st := openStream(t, srv)
	subscribe(t, srv, st.id, "posts")
	base := srv.URL() + "/api/collections/posts/records"

	status, body := doJSON(t, http.MethodPost, base, map[string]any{"title": "hello", "status": "draft"}, nil)
	if status != http.StatusOK {
		t.Fatalf("create: %d %s", status, body)
	}
	var created map[string]any
	_ = json.Unmarshal(body, &created)
	id, _ := created["id"].(string)
	if len(id) != 15 || created["collectionName"] != "posts" || created["created"] == "" {
		t.Fatalf("created = %v", created)
	}

	name, ev := st.next(t)
	if name != "posts" || ev.Action != pbtest.ActionCreate || ev.Record["title"] != "hello" {
		t.Errorf("create event = %s %+v", name, ev)
	}

	status, _ = doJSON(t, http.MethodPatch, base+"/"+id, map[string]any{"status": "published"}, nil)
	if status != http.StatusOK {
		t.Fatalf("update: %d", status)
	}
	if _, ev = st.next(t); ev.Action != pbtest.ActionUpdate || ev.Record["status"] != "published" {
		t.Errorf("update event = %+v", ev)
	}

	_ = srv.Seed("posts", map[string]any{"title": "other", "status": "draft"})
	status, body = doJSON(t, http.MethodGet, base+"?filter="+"status%3D%27published%27&perPage=10", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	var list struct {
		TotalItems int              `json:"totalItems"`
		PerPage    int              `json:"perPage"`
		Items      []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(body, &list)
	if list.TotalItems != 1 || list.PerPage != 10 || list.Items[0]["id"] != id {
		t.Errorf("list = %+v", list)
	}

	status, _ = doJSON(t, http.MethodDelete, base+"/"+id, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete: %d", status)
	}
	if _, ev = st.next(t); ev.Action != pbtest.ActionDelete || ev.Record["id"] != id {
		t.Errorf("delete event = %+v", ev)
	}
	if status, _ = doJSON(t, http.MethodGet, base+"/"+id, nil, nil); status != http.StatusNotFound {
		t.Errorf("view after delete = %d", status)
	}
}

func TestServer_ListRejectsUnsupportedFilter(t *testing.T) {
	srv := startServer(t)
	srv.Seed("posts", map[string]any{"title": "x"})

	status, body := doJSON(t, http.MethodGet, srv.URL()+"/api/collections/posts/records?filter=title~%27x%27", nil, nil)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if !apperrors.HasCode(apperrors.FromAPI(status, body), apperrors.ErrCodeBadRequest) {
		t.Errorf("body = %s", body)
	}
}

func TestServer_Auth(t *testing.T) {
	srv := startServer(t)
	user := srv.AddUser("ada@example.com", "secret123")

	base := srv.URL() + "/api/collections/users"
	status, _ := doJSON(t, http.MethodPost, base+"/auth-with-password",
		map[string]string{"identity": "ada@example.com", "password": "wrong"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad password status = %d", status)
	}

	status, body := doJSON(t, http.MethodPost, base+"/auth-with-password",
		map[string]string{"identity": "ada@example.com", "password": "secret123"}, nil)
	if status != http.StatusOK {
		t.Fatalf("auth: %d %s", status, body)
	}
	var auth struct {
		Token  string         `json:"token"`
		Record map[string]any `json:"record"`
	}
	_ = json.Unmarshal(body, &auth)
	if auth.Token == "" || auth.Record["id"] != user["id"] {
		t.Fatalf("auth = %+v", auth)
	}
	if _, ok := auth.Record["password"]; ok {
		t.Error("password returned")
	}

	status, _ = doJSON(t, http.MethodPost, base+"/auth-refresh", nil, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("refresh without token = %d", status)
	}
	status, body = doJSON(t, http.MethodPost, base+"/auth-refresh", nil, http.Header{"Authorization": {auth.Token}})
	if status != http.StatusOK {
		t.Errorf("refresh: %d %s", status, body)
	}
}

func TestServer_ResetSnapshotRestore(t *testing.T) {
	srv := startServer(t)
	rec := srv.Seed("posts", map[string]any{"title": "keep"})

	snap := testutil.T(t).Snapshot(srv)
	srv.Seed("posts", map[string]any{"title": "drop"})
	testutil.T(t).Restore(srv, snap)

	status, body := doJSON(t, http.MethodGet, srv.URL()+"/api/collections/posts/records", nil, nil)
	var list struct {
		TotalItems int `json:"totalItems"`
	}
	_ = json.Unmarshal(body, &list)
	if status != http.StatusOK || list.TotalItems != 1 {
		t.Fatalf("after restore: %d %s", status, body)
	}

	srv.FailNextSubmissions(3, http.StatusInternalServerError)
	testutil.T(t).Reset(srv)
	if _, ok := srv.Record("posts", rec["id"].(string)); ok {
		t.Error("record survived reset")
	}
	if len(srv.Submissions()) != 0 || srv.Connections() != 0 {
		t.Error("counters survived reset")
	}
}

func TestServer_Health(t *testing.T) {
	srv := pbtest.New()
	if h := srv.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("before start = %s", h.Status)
	}
	testutil.T(t).Setup(srv)
	if h := srv.Health(context.Background()); h.Status != component.StatusHealthy || h.Message != "0 streams connected" {
		t.Errorf("health = %+v", h)
	}
	if d := srv.Describe(); d.Details != srv.URL() {
		t.Errorf("describe = %+v", d)
	}
}
