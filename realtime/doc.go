// Package realtime keeps a single Server-Sent Events connection to the
// backend and multiplexes any number of topic subscriptions over it.
//
// A topic is either a collection identifier ("posts") or a record scoped
// one ("posts/abc123"). The first Subscribe opens the stream; once the
// server's PB_CONNECT event assigns a client id, the full topic set is
// POSTed back so the server knows what to stream. After a transport error
// on an established session the engine reconnects in the background on a
// fixed backoff table and resubmits every topic.
//
//	rt, err := realtime.New(httpClient, realtime.Config{})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	unsub, err := rt.Subscribe(ctx, posts, func(action realtime.Action, record json.RawMessage) {
//	    ...
//	})
//	if err != nil {
//	    return err
//	}
//	defer unsub(ctx)
//
// Delivery is at most once: events emitted while the stream is down are
// lost.
package realtime
