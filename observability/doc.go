// Package observability wires OpenTelemetry tracing and metrics for pbkit.
//
// Nothing is exported until Init is called; before that the global no-op
// providers absorb every span and measurement, so library code can
// instrument unconditionally.
//
//	shutdown, err := observability.Init(ctx, observability.Config{
//	    Enabled:     true,
//	    ServiceName: "pbtail",
//	    Endpoint:    "localhost:4318",
//	})
//	defer shutdown(ctx)
//
//	ctx, op := observability.StartOperation(ctx, observability.SpanRecordList, metrics)
//	defer op.End(err)
package observability
