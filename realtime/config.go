package realtime

import (
	"fmt"
	"time"

	"github.com/kbukum/pbkit/resilience"
)

// Defaults.
const (
	DefaultPath                 = "/api/realtime"
	DefaultConnectTimeout       = 10 * time.Second
	DefaultMaxReconnectAttempts = 10000
	DefaultMaxResubmits         = 3
)

// Config tunes the realtime engine. The zero value is usable.
type Config struct {
	// Path of both the event stream and the subscription endpoint.
	Path string `yaml:"path" mapstructure:"path"`
	// ConnectTimeout bounds the wait for the server handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	// MaxReconnectAttempts caps background reconnects of an established
	// session before it is torn down.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`
	// ReconnectIntervals is the backoff table, indexed by attempt.
	ReconnectIntervals resilience.Schedule `yaml:"reconnect_intervals" mapstructure:"reconnect_intervals"`
	// MaxResubmits bounds the resubmissions after connect while the topic
	// set keeps changing.
	MaxResubmits int `yaml:"max_resubmits" mapstructure:"max_resubmits"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if len(c.ReconnectIntervals) == 0 {
		c.ReconnectIntervals = DefaultReconnectIntervals
	}
	if c.MaxResubmits <= 0 {
		c.MaxResubmits = DefaultMaxResubmits
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	for i, d := range c.ReconnectIntervals {
		if d < 0 {
			return fmt.Errorf("realtime: reconnect_intervals[%d] is negative", i)
		}
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("realtime: connect_timeout must be positive")
	}
	return nil
}
