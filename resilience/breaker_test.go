package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb, clock
}

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func pass() error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Second})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 2})

	_ = cb.Execute(fail)
	_ = cb.Execute(pass)
	_ = cb.Execute(fail)
	if cb.State() != StateClosed || cb.Failures() != 1 {
		t.Errorf("state = %s failures = %d, want closed/1", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name  string
		trial func() error
		want  State
	}{
		{"trial succeeds", pass, StateClosed},
		{"trial fails", fail, StateOpen},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var transitions []string
			cb, clock := newTestBreaker(CircuitBreakerConfig{
				Name: "api", MaxFailures: 1, Timeout: time.Second,
				OnStateChange: func(name string, from, to State) {
					transitions = append(transitions, name+":"+from.String()+">"+to.String())
				},
			})

			_ = cb.Execute(fail)
			clock.advance(999 * time.Millisecond)
			if cb.State() != StateOpen {
				t.Fatalf("state before timeout = %s", cb.State())
			}
			clock.advance(time.Millisecond)
			if cb.State() != StateHalfOpen {
				t.Fatalf("state after timeout = %s", cb.State())
			}

			_ = cb.Execute(tc.trial)
			if cb.State() != tc.want {
				t.Errorf("state after trial = %s, want %s", cb.State(), tc.want)
			}
			if transitions[0] != "api:closed>open" || transitions[1] != "api:open>half-open" {
				t.Errorf("transitions = %v", transitions)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsTrials(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second})
	_ = cb.Execute(fail)
	clock.advance(time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(func() error { <-release; return nil })
	}()

	// Wait until the first trial holds the only slot.
	for {
		cb.mu.Lock()
		taken := cb.halfOpenCalls == 1
		cb.mu.Unlock()
		if taken {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := cb.Execute(pass); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second trial err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_IsFailureFilters(t *testing.T) {
	errClient := errors.New("bad request")
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errClient) },
	})

	if err := cb.Execute(func() error { return errClient }); !errors.Is(err, errClient) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("ignored error opened the circuit")
	}

	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Errorf("state = %s, want open", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after Reset: %s/%d", cb.State(), cb.Failures())
	}
}
