package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var (
	ErrEmptyEndpoint  = errors.New("minio endpoint cannot be empty")
	ErrEmptyBucket    = errors.New("bucket name is empty")
	ErrBucketNotFound = errors.New("bucket does not exist, please create it manually")
	ErrObjectNotFound = errors.New("object not found")
	ErrClosed         = errors.New("minio client closed")
)

// Logger is the subset of the logger used for lifecycle messages.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// MinioClient stores objects in a single bucket.
type MinioClient struct {
	client   *minio.Client
	cfg      Config
	observer observability.Observer
	logger   Logger
	closed   atomic.Bool
}

// NewClient connects, validates credentials against the bucket and creates
// it when AccessBucketCreation is set.
func NewClient(config Config) (*MinioClient, error) {
	config.applyDefaults()

	client, err := connectToMinio(config)
	if err != nil {
		return nil, err
	}

	m := &MinioClient{client: client, cfg: config}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	log.Println("INFO: Connected to MinIO")
	return m, nil
}

func connectToMinio(cfg Config) (*minio.Client, error) {
	if cfg.Connection.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	return minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
}

func (m *MinioClient) ensureBucketExists(ctx context.Context) error {
	bucketName := m.cfg.Connection.BucketName
	if bucketName == "" {
		return ErrEmptyBucket
	}

	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists, bucket: %v, err: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if !m.cfg.Connection.AccessBucketCreation {
		return ErrBucketNotFound
	}

	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: m.cfg.Connection.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}
	m.logInfo(ctx, "Successfully created bucket", map[string]interface{}{"bucket": bucketName})
	return nil
}

func (m *MinioClient) WithObserver(observer observability.Observer) *MinioClient {
	m.observer = observer
	return m
}

func (m *MinioClient) WithLogger(logger Logger) *MinioClient {
	m.logger = logger
	return m
}

func (m *MinioClient) Bucket() string {
	return m.cfg.Connection.BucketName
}

func (m *MinioClient) key(objectKey string) string {
	if m.cfg.Prefix == "" {
		return objectKey
	}
	return path.Join(m.cfg.Prefix, objectKey)
}

func (m *MinioClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.RequestTimeout)
}

// Put uploads data under objectKey (prefixed) and returns the stored key.
func (m *MinioClient) Put(ctx context.Context, objectKey string, data []byte, contentType string, metadata map[string]string) (key string, err error) {
	key = m.key(objectKey)
	start := time.Now()
	defer func() {
		m.observe("put", key, start, err, int64(len(data)))
	}()

	if m.closed.Load() {
		return "", ErrClosed
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err = m.client.PutObject(ctx, m.cfg.Connection.BucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return key, nil
}

// Get downloads the object stored under the full key returned by Put.
func (m *MinioClient) Get(ctx context.Context, key string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		m.observe("get", key, start, err, int64(len(data)))
	}()

	if m.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	obj, err := m.client.GetObject(ctx, m.cfg.Connection.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translateError(key, err)
	}
	defer obj.Close()

	data, err = io.ReadAll(obj)
	if err != nil {
		return nil, m.translateError(key, err)
	}
	return data, nil
}

// Delete removes the object stored under key.
func (m *MinioClient) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		m.observe("delete", key, start, err, 0)
	}()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := m.client.RemoveObject(ctx, m.cfg.Connection.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return m.translateError(key, err)
	}
	return nil
}

func (m *MinioClient) translateError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("object %s: %w", key, err)
}

// GracefulShutdown rejects further uploads. The underlying HTTP client has
// nothing to release.
func (m *MinioClient) GracefulShutdown() {
	if m.closed.CompareAndSwap(false, true) {
		log.Println("INFO: MinIO client shut down")
	}
}

func (m *MinioClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (m *MinioClient) observe(operation, key string, start time.Time, err error, size int64) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveOperation(observability.OperationContext{
		Component:   "minio",
		Operation:   operation,
		Resource:    m.cfg.Connection.BucketName,
		SubResource: key,
		Duration:    time.Since(start),
		Error:       err,
		Size:        size,
	})
}
