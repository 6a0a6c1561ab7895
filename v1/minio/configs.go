package minio

import "time"

const (
	unknownSize           int64 = -1
	defaultRequestTimeout       = 10 * time.Second
)

// Config defines the configuration for the object store client.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	// Prefix is prepended to every object key, e.g. "quarantine/".
	Prefix string `yaml:"prefix" envconfig:"MINIO_PREFIX"`

	// RequestTimeout bounds each call that does not already carry a deadline.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"MINIO_REQUEST_TIMEOUT"`
}

// ConnectionConfig contains MinIO server connection details.
type ConnectionConfig struct {
	Endpoint        string `yaml:"endpoint" envconfig:"MINIO_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"MINIO_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"MINIO_SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl" envconfig:"MINIO_USE_SSL"`
	BucketName      string `yaml:"bucket_name" envconfig:"MINIO_BUCKET_NAME"`
	Region          string `yaml:"region" envconfig:"MINIO_REGION"`

	// AccessBucketCreation creates the bucket on startup when it is missing.
	AccessBucketCreation bool `yaml:"access_bucket_creation" envconfig:"MINIO_ACCESS_BUCKET_CREATION"`
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
}
