// Package client is the entry point of pbkit: it owns the HTTP client,
// the auth token store and the realtime engine, and exposes typed record
// collections on top of them.
//
//	c, err := client.New(client.Config{BaseURL: "http://127.0.0.1:8090"})
//	posts := client.NewCollection[Post](c, "posts", nil)
//	page, err := posts.List(ctx, client.ListOptions{Sort: "-created"})
//	unsub, err := posts.Subscribe(ctx, func(a realtime.Action, p Post) { ... })
//
// Every request carries the current token from AuthStore. Backend error
// bodies are returned as *errors.AppError.
package client
