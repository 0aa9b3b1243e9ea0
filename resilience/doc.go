// Package resilience provides retry, backoff, circuit breaking and rate
// limiting primitives.
//
// A Delayer maps an attempt index to a wait duration. Two are provided:
// Exponential (jittered, capped growth) used for plain request retries,
// and Schedule (a fixed table that clamps to its last entry) used by the
// realtime reconnect loop.
//
//	cfg := resilience.RetryConfig{MaxAttempts: 3, Backoff: resilience.Schedule{
//	    100 * time.Millisecond, 500 * time.Millisecond,
//	}}
//	user, err := resilience.Retry(ctx, cfg, func() (*User, error) { ... })
//
// CircuitBreaker opens after MaxFailures consecutive failures and rejects
// calls with ErrCircuitOpen until its Timeout elapses. RateLimiter is a
// token bucket; Wait queues callers, Allow and Execute never block.
package resilience
