// Package config loads the schemawatch configuration: an optional YAML file,
// then environment overrides. Package defaults are applied later by each
// client constructor.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aleph-Alpha/schemawatch/v1/api"
	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/logger"
	"github.com/Aleph-Alpha/schemawatch/v1/metrics"
	"github.com/Aleph-Alpha/schemawatch/v1/minio"
	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/postgres"
	"github.com/Aleph-Alpha/schemawatch/v1/rabbit"
	"github.com/Aleph-Alpha/schemawatch/v1/redis"
	"github.com/Aleph-Alpha/schemawatch/v1/schema_registry"
	"github.com/Aleph-Alpha/schemawatch/v1/tracer"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// EnvConfigFile names the config file when no path is given explicitly.
const EnvConfigFile = "SCHEMAWATCH_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

// AppConfig is the complete service configuration.
type AppConfig struct {
	Logger         logger.Config          `yaml:"logger"`
	Metrics        metrics.Config         `yaml:"metrics"`
	Tracer         tracer.Config          `yaml:"tracer"`
	Postgres       postgres.Config        `yaml:"postgres"`
	Redis          redis.Config           `yaml:"redis"`
	Kafka          kafka.Config           `yaml:"kafka"`
	Rabbit         rabbit.Config          `yaml:"rabbit"`
	Minio          minio.Config           `yaml:"minio"`
	SchemaRegistry schema_registry.Config `yaml:"schema_registry"`
	Versioning     versioning.Config      `yaml:"versioning"`
	Pipeline       pipeline.Config        `yaml:"pipeline"`
	API            api.Config             `yaml:"api"`
}

// Load reads path (or $SCHEMAWATCH_CONFIG when path is empty) and applies
// environment overrides. A missing file is only an error when it was named.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Versioning.Backend {
	case "", versioning.BackendMemory, versioning.BackendPostgres, versioning.BackendEtcd:
	default:
		return fmt.Errorf("%w: versioning.backend %q", ErrInvalid, c.Versioning.Backend)
	}
	if c.Versioning.Backend == versioning.BackendEtcd && len(c.Versioning.Etcd.Endpoints) == 0 {
		return fmt.Errorf("%w: versioning.etcd.endpoints is required for the etcd backend", ErrInvalid)
	}
	if c.Versioning.FirstSighting != "" &&
		c.Versioning.FirstSighting != versioning.FirstSightingRegister &&
		c.Versioning.FirstSighting != versioning.FirstSightingIgnore {
		return fmt.Errorf("%w: versioning.first_sighting %q", ErrInvalid, c.Versioning.FirstSighting)
	}
	if c.Versioning.DefaultCompatibility != "" && !c.Versioning.DefaultCompatibility.Valid() {
		return fmt.Errorf("%w: versioning.default_compatibility %q", ErrInvalid, c.Versioning.DefaultCompatibility)
	}

	switch c.Pipeline.MetadataBackend {
	case "", pipeline.MetadataMemory, pipeline.MetadataPostgres:
	default:
		return fmt.Errorf("%w: pipeline.metadata_backend %q", ErrInvalid, c.Pipeline.MetadataBackend)
	}

	if c.UsesPostgres() && c.Postgres.Connection.Host == "" {
		return fmt.Errorf("%w: postgres.connection.host is required by the postgres backends", ErrInvalid)
	}
	if c.UsesMinio() && c.Minio.Connection.Endpoint == "" {
		return fmt.Errorf("%w: minio.connection.endpoint is required for quarantine", ErrInvalid)
	}
	return nil
}

// UsesPostgres reports whether a store is backed by Postgres.
func (c *AppConfig) UsesPostgres() bool {
	return c.Versioning.Backend == versioning.BackendPostgres ||
		c.Pipeline.MetadataBackend == pipeline.MetadataPostgres
}

// UsesRedis reports whether version allocation takes a Redis lock.
func (c *AppConfig) UsesRedis() bool {
	return c.Versioning.DistributedLock
}

func (c *AppConfig) UsesRabbit() bool {
	return c.Pipeline.NotificationsEnabled
}

func (c *AppConfig) UsesMinio() bool {
	return c.Pipeline.QuarantineEnabled
}

func (c *AppConfig) UsesSchemaRegistry() bool {
	return c.SchemaRegistry.URL != ""
}

// Features is what /health reports.
func (c *AppConfig) Features() api.Features {
	return api.Features{
		Postgres:       c.UsesPostgres(),
		SchemaRegistry: c.UsesSchemaRegistry(),
		Kafka:          len(c.Kafka.Brokers) > 0,
		Notifications:  c.UsesRabbit(),
		Quarantine:     c.UsesMinio(),
	}
}
