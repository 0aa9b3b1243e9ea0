package client

import (
	"fmt"
	"time"

	"github.com/kbukum/pbkit/realtime"
	"github.com/kbukum/pbkit/resilience"
	"github.com/kbukum/pbkit/validation"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL of the backend, e.g. http://127.0.0.1:8090.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds each non-streaming request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// Retry retries connection failures, timeouts, 429 and 5xx responses.
	Retry bool `yaml:"retry" mapstructure:"retry"`
	// CircuitBreaker fails requests fast after repeated timeouts, connection
	// failures or 5xx responses. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	// RateLimiter paces every request, realtime submissions included.
	// Nil disables it.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
	// Realtime tunes the subscription engine.
	Realtime realtime.Config `yaml:"realtime" mapstructure:"realtime"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Realtime.ApplyDefaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Realtime.Validate(); err != nil {
		return fmt.Errorf("client.realtime: %w", err)
	}
	return nil
}
