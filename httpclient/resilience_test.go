package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/pbkit/component"
	"github.com/kbukum/pbkit/resilience"
)

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls, status atomic.Int32
	status.Store(http.StatusBadGateway)
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}, func(cfg *Config) {
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig("")
		cfg.CircuitBreaker.MaxFailures = 2
		cfg.CircuitBreaker.Timeout = 50 * time.Millisecond
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Do(ctx, Request{Path: "/x"}); !IsServerError(err) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	_, err := c.Do(ctx, Request{Path: "/x"})
	if !IsUnavailable(err) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("open circuit err = %v", err)
	}
	if IsRetryable(err) {
		t.Error("circuit rejection marked retryable")
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
	if c.CircuitBreaker().Name() != "http" {
		t.Errorf("breaker name = %q", c.CircuitBreaker().Name())
	}

	status.Store(http.StatusOK)
	time.Sleep(60 * time.Millisecond)
	if _, err := c.Do(ctx, Request{Path: "/x"}); err != nil {
		t.Fatalf("trial request: %v", err)
	}
	if c.CircuitBreaker().State() != resilience.StateClosed {
		t.Errorf("state = %s, want closed", c.CircuitBreaker().State())
	}
}

func TestDo_CircuitBreakerIgnoresClientErrors(t *testing.T) {
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(cfg *Config) {
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig("api")
		cfg.CircuitBreaker.MaxFailures = 1
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Do(context.Background(), Request{Path: "/missing"}); !IsNotFound(err) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if c.CircuitBreaker().State() != resilience.StateClosed {
		t.Errorf("404s opened the circuit")
	}
}

func TestIsBreakerFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), true},
		{"timeout", NewTimeoutError(errors.New("t")), true},
		{"connection", NewConnectionError(errors.New("c")), true},
		{"server", ClassifyStatusCode(503, nil), true},
		{"rate limited", ClassifyStatusCode(429, nil), false},
		{"bad request", ClassifyStatusCode(400, nil), false},
		{"cancelled", NewCancelledError(context.Canceled), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsBreakerFailure(tc.err); got != tc.want {
				t.Errorf("IsBreakerFailure = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDo_RateLimiterPaces(t *testing.T) {
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, func(cfg *Config) {
		cfg.RateLimiter = &resilience.RateLimiterConfig{Rate: 50, Burst: 1}
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Do(context.Background(), Request{Path: "/x"}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("3 requests at 50/s took %v, want >= ~40ms", elapsed)
	}
}

func TestDo_RateLimiterHonoursContext(t *testing.T) {
	var calls atomic.Int32
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, func(cfg *Config) {
		cfg.RateLimiter = &resilience.RateLimiterConfig{Rate: 0.1, Burst: 1}
	})

	if _, err := c.Do(context.Background(), Request{Path: "/x"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, Request{Path: "/x"}); !IsTimeout(err) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestComponent_HealthFollowsBreaker(t *testing.T) {
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.Name = "backend"
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig("")
		cfg.CircuitBreaker.MaxFailures = 1
		cfg.CircuitBreaker.Timeout = time.Hour
		cfg.RateLimiter = &resilience.RateLimiterConfig{Rate: 5, Burst: 2}
	})
	comp := NewComponent(c)
	ctx := context.Background()

	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if h := comp.Health(ctx); h.Name != "backend" || h.Status != component.StatusHealthy || h.Message != "circuit closed" {
		t.Errorf("health = %+v", h)
	}

	_, _ = c.Do(ctx, Request{Path: "/x"})
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy || h.Message != "circuit open" {
		t.Errorf("health after failure = %+v", h)
	}
	d := comp.Describe()
	if d.Type != "http" || d.Details != c.BaseURL()+" breaker=open rate=5/s burst=2" {
		t.Errorf("describe = %+v", d)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestComponent_WithoutBreaker(t *testing.T) {
	c, err := New(Config{BaseURL: "http://host:8090"})
	if err != nil {
		t.Fatal(err)
	}
	comp := NewComponent(c)
	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy || h.Name != "http" {
		t.Errorf("health = %+v", h)
	}
	if d := comp.Describe(); d.Details != "http://host:8090" {
		t.Errorf("describe = %+v", d)
	}
}
