package rabbit

import "time"

const (
	DefaultExchangeName = "schemawatch.events"
	DefaultExchangeType = "topic"
	DefaultContentType  = "application/json"
	DefaultReconnect    = time.Second
	DefaultHeartbeat    = 2 * time.Second
)

// Config configures the event publisher.
type Config struct {
	Connection Connection `yaml:"connection"`
	Channel    Channel    `yaml:"channel"`
}

type Connection struct {
	Host     string `yaml:"host" envconfig:"RABBITMQ_HOST"`
	Port     uint   `yaml:"port" envconfig:"RABBITMQ_PORT"`
	User     string `yaml:"user" envconfig:"RABBITMQ_USER"`
	Password string `yaml:"password" envconfig:"RABBITMQ_PASSWORD"`
	VHost    string `yaml:"vhost" envconfig:"RABBITMQ_VHOST"`

	IsSSLEnabled bool `yaml:"ssl_enabled" envconfig:"RABBITMQ_SSL_ENABLED"`

	// UseCert sends the client certificate for mutual TLS.
	UseCert        bool   `yaml:"use_cert" envconfig:"RABBITMQ_USE_CERT"`
	CACertPath     string `yaml:"ca_cert_path" envconfig:"RABBITMQ_CA_CERT_PATH"`
	ClientCertPath string `yaml:"client_cert_path" envconfig:"RABBITMQ_CLIENT_CERT_PATH"`
	ClientKeyPath  string `yaml:"client_key_path" envconfig:"RABBITMQ_CLIENT_KEY_PATH"`
	ServerName     string `yaml:"server_name" envconfig:"RABBITMQ_SERVER_NAME"`
}

type Channel struct {
	ExchangeName string `yaml:"exchange_name" envconfig:"RABBITMQ_EXCHANGE_NAME"`

	// ExchangeType is direct, fanout, topic or headers.
	ExchangeType string `yaml:"exchange_type" envconfig:"RABBITMQ_EXCHANGE_TYPE"`

	// RoutingKey is used by Publish; PublishWithKey overrides it.
	RoutingKey  string `yaml:"routing_key" envconfig:"RABBITMQ_ROUTING_KEY"`
	ContentType string `yaml:"content_type" envconfig:"RABBITMQ_CONTENT_TYPE"`

	// DelayToReconnect is the pause between reconnection attempts.
	DelayToReconnect time.Duration `yaml:"delay_to_reconnect" envconfig:"RABBITMQ_DELAY_TO_RECONNECT"`
}

func (c *Config) applyDefaults() {
	if c.Connection.Port == 0 {
		c.Connection.Port = 5672
	}
	if c.Channel.ExchangeName == "" {
		c.Channel.ExchangeName = DefaultExchangeName
	}
	if c.Channel.ExchangeType == "" {
		c.Channel.ExchangeType = DefaultExchangeType
	}
	if c.Channel.ContentType == "" {
		c.Channel.ContentType = DefaultContentType
	}
	if c.Channel.DelayToReconnect <= 0 {
		c.Channel.DelayToReconnect = DefaultReconnect
	}
}
