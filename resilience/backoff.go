package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Delayer returns how long to wait before retry number attempt (0-based).
type Delayer interface {
	Delay(attempt int) time.Duration
}

// Schedule is a fixed table of waits indexed by attempt. Attempts past the
// end of the table reuse the last entry; negative attempts use the first.
type Schedule []time.Duration

// Delay implements Delayer.
func (s Schedule) Delay(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	if attempt < 0 {
		return s[0]
	}
	if attempt >= len(s) {
		return s[len(s)-1]
	}
	return s[attempt]
}

// ScheduleMillis builds a Schedule from millisecond values.
func ScheduleMillis(ms ...int) Schedule {
	s := make(Schedule, len(ms))
	for i, v := range ms {
		s[i] = time.Duration(v) * time.Millisecond
	}
	return s
}

// Exponential grows the wait by Factor per attempt, capped at Max, with
// +/- Jitter (0.0 to 1.0) applied before the cap.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// DefaultExponential returns the backoff used for request retries.
func DefaultExponential() Exponential {
	return Exponential{
		Initial: 100 * time.Millisecond,
		Max:     10 * time.Second,
		Factor:  2.0,
		Jitter:  0.1,
	}
}

// Delay implements Delayer.
func (e Exponential) Delay(attempt int) time.Duration {
	initial := e.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 2.0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(initial) * math.Pow(factor, float64(attempt))
	if e.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * e.Jitter
	}
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	if d < 0 {
		d = float64(initial)
	}
	return time.Duration(d)
}
