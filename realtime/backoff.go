package realtime

import (
	"time"

	"github.com/kbukum/pbkit/resilience"
)

// DefaultReconnectIntervals is the wait before each background reconnect,
// indexed by attempt. Attempts past the end reuse the last entry.
var DefaultReconnectIntervals = resilience.ScheduleMillis(200, 300, 500, 1000, 1200, 1500, 2000)

// Backoff returns the wait before reconnect attempt n using the default
// table.
func Backoff(attempt int) time.Duration {
	return DefaultReconnectIntervals.Delay(attempt)
}
