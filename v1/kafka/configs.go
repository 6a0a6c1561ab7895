package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultConsumerTopic  = "raw-data"
	DefaultProducerTopic  = "normalized-data"
	DefaultGroupID        = "schemawatch"
	DefaultWorkers        = 4
	DefaultMinBytes       = 1
	DefaultMaxBytes       = 10e6
	DefaultMaxWait        = 500 * time.Millisecond
	DefaultCommitInterval = time.Second
	DefaultStartOffset    = kafka.FirstOffset
	DefaultRequiredAcks   = int(kafka.RequireAll)
	DefaultBatchSize      = 100
	DefaultBatchTimeout   = 10 * time.Millisecond
	DefaultMaxAttempts    = 5
	DefaultWriteTimeout   = 10 * time.Second
)

// Logger receives errors reported by the kafka-go reader and writer.
type Logger interface {
	Error(msg string, err error, fields ...map[string]interface{})
}

// Config configures the client. A reader is created when ConsumerTopic and
// GroupID are set; a writer is always created.
type Config struct {
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`

	// ConsumerTopic is read by Consume and ConsumeParallel.
	ConsumerTopic string `yaml:"consumer_topic" envconfig:"KAFKA_CONSUMER_TOPIC"`

	// ProducerTopic is the target of Publish. PublishTo can address any topic.
	ProducerTopic string `yaml:"producer_topic" envconfig:"KAFKA_PRODUCER_TOPIC"`

	GroupID string `yaml:"group_id" envconfig:"KAFKA_GROUP_ID"`

	// Workers is the fetch parallelism used by ConsumeParallel callers.
	Workers int `yaml:"workers" envconfig:"KAFKA_WORKERS"`

	MinBytes int           `yaml:"min_bytes" envconfig:"KAFKA_MIN_BYTES"`
	MaxBytes int           `yaml:"max_bytes" envconfig:"KAFKA_MAX_BYTES"`
	MaxWait  time.Duration `yaml:"max_wait" envconfig:"KAFKA_MAX_WAIT"`

	// CommitInterval batches commits. Batched commits keep the highest offset
	// per partition, which is what makes out-of-order commits from parallel
	// workers safe.
	CommitInterval time.Duration `yaml:"commit_interval" envconfig:"KAFKA_COMMIT_INTERVAL"`

	// StartOffset applies to groups without a committed offset:
	// kafka.FirstOffset (-2) or kafka.LastOffset (-1).
	StartOffset int64 `yaml:"start_offset" envconfig:"KAFKA_START_OFFSET"`

	RequiredAcks     int           `yaml:"required_acks" envconfig:"KAFKA_REQUIRED_ACKS"`
	Async            bool          `yaml:"async" envconfig:"KAFKA_ASYNC"`
	BatchSize        int           `yaml:"batch_size" envconfig:"KAFKA_BATCH_SIZE"`
	BatchTimeout     time.Duration `yaml:"batch_timeout" envconfig:"KAFKA_BATCH_TIMEOUT"`
	MaxAttempts      int           `yaml:"max_attempts" envconfig:"KAFKA_MAX_ATTEMPTS"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"KAFKA_WRITE_TIMEOUT"`
	CompressionCodec string        `yaml:"compression_codec" envconfig:"KAFKA_COMPRESSION_CODEC"`

	TLS  TLSConfig  `yaml:"tls"`
	SASL SASLConfig `yaml:"sasl"`

	Logger      Logger                              `yaml:"-" ignored:"true"`
	ErrorLogger func(msg string, args ...interface{}) `yaml:"-" ignored:"true"`
}

type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" envconfig:"KAFKA_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path" envconfig:"KAFKA_TLS_CA_CERT_PATH"`
	ClientCertPath     string `yaml:"client_cert_path" envconfig:"KAFKA_TLS_CLIENT_CERT_PATH"`
	ClientKeyPath      string `yaml:"client_key_path" envconfig:"KAFKA_TLS_CLIENT_KEY_PATH"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" envconfig:"KAFKA_TLS_INSECURE_SKIP_VERIFY"`
}

type SASLConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"KAFKA_SASL_ENABLED"`

	// Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	Mechanism string `yaml:"mechanism" envconfig:"KAFKA_SASL_MECHANISM"`
	Username  string `yaml:"username" envconfig:"KAFKA_SASL_USERNAME"`
	Password  string `yaml:"password" envconfig:"KAFKA_SASL_PASSWORD"`
}

func (c *Config) applyDefaults() {
	if c.ProducerTopic == "" {
		c.ProducerTopic = DefaultProducerTopic
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MinBytes == 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.CommitInterval == 0 {
		c.CommitInterval = DefaultCommitInterval
	}
	if c.StartOffset == 0 {
		c.StartOffset = DefaultStartOffset
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = DefaultRequiredAcks
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}
