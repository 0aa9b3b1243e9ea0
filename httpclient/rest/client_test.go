package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/pbkit/httpclient"
)

type testPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(httpclient.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestMethods(t *testing.T) {
	tests := []struct {
		name   string
		method string
		call   func(ctx context.Context, c *Client) (*Response[testPost], error)
	}{
		{"get", http.MethodGet, func(ctx context.Context, c *Client) (*Response[testPost], error) {
			return Get[testPost](ctx, c, "/api/collections/posts/records/p1")
		}},
		{"post", http.MethodPost, func(ctx context.Context, c *Client) (*Response[testPost], error) {
			return Post[testPost](ctx, c, "/api/collections/posts/records/p1", testPost{Title: "hello"})
		}},
		{"patch", http.MethodPatch, func(ctx context.Context, c *Client) (*Response[testPost], error) {
			return Patch[testPost](ctx, c, "/api/collections/posts/records/p1", map[string]string{"title": "hello"})
		}},
		{"delete", http.MethodDelete, func(ctx context.Context, c *Client) (*Response[testPost], error) {
			return Delete[testPost](ctx, c, "/api/collections/posts/records/p1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method {
					t.Errorf("method = %s, want %s", r.Method, tt.method)
				}
				if r.URL.Path != "/api/collections/posts/records/p1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if got := r.Header.Get("Accept"); got != "application/json" {
					t.Errorf("Accept = %q", got)
				}
				_ = json.NewEncoder(w).Encode(testPost{ID: "p1", Title: "hello"})
			})

			resp, err := tt.call(context.Background(), c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Data.ID != "p1" || resp.Data.Title != "hello" {
				t.Errorf("data = %+v", resp.Data)
			}
			if len(resp.Raw) == 0 {
				t.Error("expected raw body")
			}
		})
	}
}

func TestOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("perPage") != "10" {
			t.Errorf("query = %v", q)
		}
		if got := r.Header.Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("X-Request-ID = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer override" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]testPost{{ID: "p1"}})
	})

	resp, err := Get[[]testPost](context.Background(), c, "/posts",
		WithQuery(map[string]string{"page": "2"}),
		WithQuery(map[string]string{"perPage": "10"}),
		WithHeaders(map[string]string{"X-Request-ID": "abc-123"}),
		WithAuth(httpclient.BearerAuth("override")),
		WithCancelKey("list_posts"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 record, got %d", len(resp.Data))
	}
}

func TestErrorResponse_KeepsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"message":"The requested resource wasn't found.","data":{}}`))
	})

	resp, err := Get[map[string]any](context.Background(), c, "/missing")
	if !httpclient.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if resp == nil {
		t.Fatal("expected response alongside error")
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Data["message"] != "The requested resource wasn't found." {
		t.Errorf("data = %v", resp.Data)
	}
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	resp, err := Get[testPost](context.Background(), c, "/x")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if resp == nil || string(resp.Raw) != "not json" {
		t.Errorf("expected raw body on decode failure, got %+v", resp)
	}
}

func TestNewFromClient(t *testing.T) {
	h, err := httpclient.New(httpclient.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := NewFromClient(h); c.HTTP() != h {
		t.Error("HTTP() should return the wrapped client")
	}
}
