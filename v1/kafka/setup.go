package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

// KafkaClient publishes to and consumes from Kafka.
type KafkaClient struct {
	cfg      Config
	observer observability.Observer

	// writer has no default topic; every message names its own.
	writer *kafka.Writer

	// reader is nil unless ConsumerTopic and GroupID are configured.
	reader *kafka.Reader

	mu             sync.RWMutex
	shutdownSignal chan struct{}
	closeOnce      sync.Once
}

// NewClient builds the writer, and the group reader when a consumer topic is
// configured. Connections are opened lazily by kafka-go.
//
// Parameters:
//   - cfg: Configuration for connecting to Kafka; zero fields take the
//     package defaults
//
// Returns a new KafkaClient, or ErrNoBrokers when cfg.Brokers is empty and
// an error when the TLS or SASL settings are unusable.
//
// Example:
//
//	client, err := kafka.NewClient(kafka.Config{
//		Brokers:       []string{"localhost:9092"},
//		ConsumerTopic: "raw-data",
//		GroupID:       "schemawatch",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
func NewClient(cfg Config) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	cfg.applyDefaults()

	var tlsConfig *tls.Config
	var err error
	if cfg.TLS.Enabled {
		tlsConfig, err = createTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	var mechanism sasl.Mechanism
	if cfg.SASL.Enabled {
		mechanism, err = createSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
	}

	k := &KafkaClient{
		cfg:            cfg,
		writer:         createWriter(cfg, tlsConfig, mechanism),
		shutdownSignal: make(chan struct{}),
	}
	log.Println("INFO: Kafka producer initialized")

	if cfg.ConsumerTopic != "" && cfg.GroupID != "" {
		k.reader = createReader(cfg, tlsConfig, mechanism)
		log.Printf("INFO: Kafka consumer initialized for topic %s", cfg.ConsumerTopic)
	}

	return k, nil
}

// WithObserver reports every produce and consume to observer. Call it right
// after NewClient; with FX, NewClientWithDI injects the observer.
//
// Example:
//
//	client, err := kafka.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	client = client.WithObserver(metricsObserver)
func (k *KafkaClient) WithObserver(observer observability.Observer) *KafkaClient {
	k.observer = observer
	return k
}

// Config returns the effective configuration, defaults applied.
func (k *KafkaClient) Config() Config {
	return k.cfg
}

// Close stops consumers and flushes the writer. Safe to call more than once.
func (k *KafkaClient) Close() error {
	var errs []error
	k.closeOnce.Do(func() {
		close(k.shutdownSignal)

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.reader != nil {
			if err := k.reader.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close reader: %w", err))
			}
		}
		if err := k.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
		log.Println("INFO: Kafka client closed")
	})
	return errors.Join(errs...)
}

func createErrorLogger(cfg Config) kafka.LoggerFunc {
	if cfg.Logger != nil {
		return func(msg string, args ...interface{}) {
			cfg.Logger.Error("kafka internal error", nil, map[string]interface{}{
				"error": fmt.Sprintf(msg, args...),
			})
		}
	}
	if cfg.ErrorLogger != nil {
		return cfg.ErrorLogger
	}
	return func(msg string, args ...interface{}) {
		log.Printf("KAFKA ERROR: "+msg, args...)
	}
}

func createWriter(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism) *kafka.Writer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Async:                  cfg.Async,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		ErrorLogger:            createErrorLogger(cfg),
		Transport: &kafka.Transport{
			TLS:  tlsConfig,
			SASL: mechanism,
		},
	}

	switch cfg.CompressionCodec {
	case "gzip":
		w.Compression = kafka.Gzip
	case "snappy":
		w.Compression = kafka.Snappy
	case "lz4":
		w.Compression = kafka.Lz4
	case "zstd":
		w.Compression = kafka.Zstd
	}

	return w
}

func createReader(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.ConsumerTopic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    cfg.StartOffset,
		ErrorLogger:    createErrorLogger(cfg),
		Dialer: &kafka.Dialer{
			Timeout:       kafka.DefaultDialer.Timeout,
			DualStack:     true,
			TLS:           tlsConfig,
			SASLMechanism: mechanism,
		},
	})
}

func createTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func createSASLMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
