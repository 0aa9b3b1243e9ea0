package main

import (
	"fmt"

	"github.com/kbukum/pbkit/client"
	"github.com/kbukum/pbkit/config"
	"github.com/kbukum/pbkit/observability"
	"github.com/kbukum/pbkit/version"
)

const defaultBaseURL = "http://127.0.0.1:8090"

// Config is pbtail's configuration, read from pbtail.yml and PBTAIL_*
// environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Client               client.Config        `yaml:"client" mapstructure:"client"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
	// Session is the path of the saved login.
	Session string `yaml:"session" mapstructure:"session"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "pbtail"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Client.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = version.Version
	}
	c.Observability.ApplyDefaults()
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("config.client: %w", err)
	}
	return c.Observability.Validate()
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig(opts ...config.LoaderOption) (*Config, error) {
	opts = append([]config.LoaderOption{
		config.WithEnvPrefix("PBTAIL"),
		config.WithDefault("client.base_url", defaultBaseURL),
	}, opts...)
	if flagConfig != "" {
		opts = append(opts, config.WithConfigFile(flagConfig))
	}

	var cfg Config
	if err := config.LoadConfig("pbtail", &cfg, opts...); err != nil {
		return nil, err
	}
	if flagURL != "" {
		cfg.Client.BaseURL = flagURL
	}
	if flagSession != "" {
		cfg.Session = flagSession
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
