package api

import "time"

const (
	DefaultAddress         = ":8080"
	DefaultApplication     = "schemawatch"
	DefaultProduceTopic    = "raw-data"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
)

// Config configures the HTTP server.
type Config struct {
	Address string `yaml:"address" envconfig:"API_ADDRESS"`

	// Application is reported by /health.
	Application string `yaml:"application" envconfig:"API_APPLICATION"`

	// ProduceTopic receives bodies posted to /produce.
	ProduceTopic string `yaml:"produce_topic" envconfig:"API_PRODUCE_TOPIC"`

	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"API_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"API_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"API_SHUTDOWN_TIMEOUT"`

	// MaxBodyBytes caps request bodies of /produce and the schema endpoints.
	MaxBodyBytes int64 `yaml:"max_body_bytes" envconfig:"API_MAX_BODY_BYTES"`
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Application == "" {
		c.Application = DefaultApplication
	}
	if c.ProduceTopic == "" {
		c.ProduceTopic = DefaultProduceTopic
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}
