package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var (
	ErrClosed       = errors.New("rabbit: client closed")
	ErrNotConnected = errors.New("rabbit: not connected")
	ErrNack         = errors.New("rabbit: publish not confirmed by broker")
)

// RabbitClient publishes to one exchange with publisher confirms and
// reconnects when the broker drops the connection.
type RabbitClient struct {
	cfg      Config
	observer observability.Observer

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	shutdownSignal chan struct{}
	closeOnce      sync.Once
}

// NewClient connects, opens a confirm-mode channel and declares the exchange.
func NewClient(cfg Config) (*RabbitClient, error) {
	cfg.applyDefaults()

	conn, err := newConnection(cfg)
	if err != nil {
		log.Printf("ERROR: error in connecting to rabbit: %v", err)
		return nil, err
	}

	ch, err := openChannel(conn, cfg)
	if err != nil {
		_ = conn.Close()
		log.Printf("ERROR: error in declaring channel: %v", err)
		return nil, err
	}

	log.Println("INFO: Connected to Rabbit")
	return &RabbitClient{
		cfg:            cfg,
		conn:           conn,
		channel:        ch,
		shutdownSignal: make(chan struct{}),
	}, nil
}

func (rb *RabbitClient) WithObserver(observer observability.Observer) *RabbitClient {
	rb.observer = observer
	return rb
}

func (rb *RabbitClient) Config() Config {
	return rb.cfg
}

func openChannel(conn *amqp.Connection, cfg Config) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Channel.ExchangeName,
		cfg.Channel.ExchangeType,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return ch, nil
}

func amqpURL(cfg Connection) string {
	scheme := "amqp"
	if cfg.IsSSLEnabled {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10),
		Path:   "/" + cfg.VHost,
	}
	return u.String()
}

func newConnection(cfg Config) (*amqp.Connection, error) {
	amqpCfg := amqp.Config{Heartbeat: DefaultHeartbeat}

	if cfg.Connection.IsSSLEnabled {
		tlsConfig := &tls.Config{ServerName: cfg.Connection.ServerName}
		if cfg.Connection.CACertPath != "" {
			caCert, err := os.ReadFile(cfg.Connection.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA cert: %w", err)
			}
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(caCert)
			tlsConfig.RootCAs = pool
		}
		if cfg.Connection.UseCert {
			cert, err := tls.LoadX509KeyPair(cfg.Connection.ClientCertPath, cfg.Connection.ClientKeyPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load client cert: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		amqpCfg.TLSClientConfig = tlsConfig
	}

	conn, err := amqp.DialConfig(amqpURL(cfg.Connection), amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbit: %w", err)
	}
	return conn, nil
}

// Run re-establishes the connection whenever the broker closes it, until
// ctx is cancelled or the client is closed.
func (rb *RabbitClient) Run(ctx context.Context) {
	for {
		rb.mu.RLock()
		conn := rb.conn
		rb.mu.RUnlock()

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case <-rb.shutdownSignal:
			return
		case err := <-closed:
			log.Printf("WARNING: RabbitMQ connection closed, retrying... %v", err)
		}

		if !rb.reconnect(ctx) {
			return
		}
	}
}

func (rb *RabbitClient) reconnect(ctx context.Context) bool {
	for {
		conn, err := newConnection(rb.cfg)
		if err == nil {
			var ch *amqp.Channel
			ch, err = openChannel(conn, rb.cfg)
			if err == nil {
				rb.mu.Lock()
				rb.conn, rb.channel = conn, ch
				rb.mu.Unlock()
				log.Println("INFO: Successfully reconnected to RabbitMQ")
				return true
			}
			_ = conn.Close()
		}
		log.Printf("ERROR: RabbitMQ reconnection failed: %v", err)

		select {
		case <-ctx.Done():
			return false
		case <-rb.shutdownSignal:
			return false
		case <-time.After(rb.cfg.Channel.DelayToReconnect):
		}
	}
}

// Close closes the channel and the connection. Safe to call more than once.
func (rb *RabbitClient) Close() error {
	var err error
	rb.closeOnce.Do(func() {
		close(rb.shutdownSignal)

		rb.mu.Lock()
		defer rb.mu.Unlock()
		if rb.channel != nil {
			_ = rb.channel.Close()
		}
		if rb.conn != nil && !rb.conn.IsClosed() {
			err = rb.conn.Close()
		}
		log.Println("INFO: RabbitMQ client closed")
	})
	return err
}
