// Package rest adds typed JSON helpers on top of httpclient.
//
//	c, _ := rest.New(httpclient.Config{BaseURL: "http://127.0.0.1:8090"})
//	resp, err := rest.Get[Post](ctx, c, "/api/collections/posts/records/abc")
//	created, err := rest.Post[Post](ctx, c, "/api/collections/posts/records", body)
//
// Every Response also carries the raw body so callers can inspect API
// envelopes that a typed decode would hide.
package rest
