// Package httpclient is the request helper pbkit sends every backend call
// through.
//
// It resolves paths against a base URL, encodes JSON or multipart bodies,
// applies auth, classifies error status codes and optionally retries.
// Requests may carry a CancelKey: starting a request with a key that is
// still in flight aborts the older request, which is how superseded
// realtime subscription submissions get dropped.
//
//	c, _ := httpclient.New(httpclient.Config{BaseURL: "http://127.0.0.1:8090"})
//	resp, err := c.Do(ctx, httpclient.Request{
//	    Method:    http.MethodPost,
//	    Path:      "/api/realtime",
//	    Body:      payload,
//	    CancelKey: "realtime_" + clientID,
//	})
//
// Subpackages:
//
//   - rest: typed JSON helpers (Get/Post/Patch/Delete)
//   - sse: Server-Sent Events reader used by the realtime transport
package httpclient
