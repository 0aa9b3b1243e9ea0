// Package pbtest runs an in-memory backend for tests: the realtime event
// stream and subscription endpoint, record CRUD that publishes realtime
// events, and password auth that issues signed tokens.
//
//	srv := pbtest.New()
//	testutil.T(t).Setup(srv)
//	c, _ := client.New(client.Config{BaseURL: srv.URL()})
//
// Failure injection (FailNextConnects, FailNextSubmissions, DropClients)
// exercises the client's reconnect and error paths.
package pbtest
