package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

// RedisClient is a thin wrapper over a go-redis client.
type RedisClient struct {
	client   redis.UniversalClient
	cfg      Config
	observer observability.Observer
}

// NewClient creates the client. No connection is made until the first command.
//
// Parameters:
//   - cfg: Address, credentials, TLS and lock retry settings
//
// Returns the client, or an error when the TLS settings cannot be loaded.
//
// Example:
//
//	client, err := redis.NewClient(redis.Config{Host: "localhost", Port: 6379})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	locker := versioning.NewRedisLocker(client, "", 10*time.Second)
func NewClient(cfg Config) (*RedisClient, error) {
	cfg.applyDefaults()

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = createTLSConfig(cfg.TLS, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		TLSConfig:       tlsConfig,
	})

	log.Println("INFO: Redis client initialized")
	return &RedisClient{client: client, cfg: cfg}, nil
}

// NewFromClient wraps an existing go-redis client, for example a cluster or
// sentinel client built by the caller.
//
// Example:
//
//	client := redis.NewFromClient(goredis.NewClusterClient(opts))
func NewFromClient(client redis.UniversalClient) *RedisClient {
	cfg := Config{}
	cfg.applyDefaults()
	return &RedisClient{client: client, cfg: cfg}
}

func createTLSConfig(cfg TLSConfig, defaultServerName string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
		ServerName:         cfg.ServerName,
		MinVersion:         tls.VersionTLS12,
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = defaultServerName
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// WithObserver attaches an observer for lock operations. The observer sees
// "lock_acquire" and "lock_release" with the lock key as resource.
//
// Example:
//
//	client = client.WithObserver(metricsObserver)
func (r *RedisClient) WithObserver(observer observability.Observer) *RedisClient {
	r.observer = observer
	return r
}

// Client exposes the underlying go-redis client.
func (r *RedisClient) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	log.Println("INFO: closing Redis client")
	return r.client.Close()
}

func (r *RedisClient) observeOperation(operation, key string, start time.Time, err error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveOperation(observability.OperationContext{
		Component: "redis",
		Operation: operation,
		Resource:  key,
		Duration:  time.Since(start),
		Error:     err,
	})
}
