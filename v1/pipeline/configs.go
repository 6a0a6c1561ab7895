package pipeline

import "time"

const (
	DefaultWorkers        = 4
	DefaultSubjectSuffix  = "-schema"
	DefaultCreatedBy      = "schemawatch"
	DefaultRecordTimeout  = 30 * time.Second
	DefaultSchemaVersion  = "1"
	DefaultUnknownService = "unknown"
	DefaultLevel          = "INFO"

	// NormalizedFormatVersion is the "version" field of every normalized payload.
	NormalizedFormatVersion = "1.0"
)

// Config tunes the record pipeline.
type Config struct {
	// Workers is the number of records processed concurrently.
	Workers int `yaml:"workers" envconfig:"PIPELINE_WORKERS"`

	// SubjectSuffix is appended to the service name to form the subject.
	SubjectSuffix string `yaml:"subject_suffix" envconfig:"PIPELINE_SUBJECT_SUFFIX"`

	// CreatedBy is stored as the registrant of new versions and the creator
	// of metadata rows.
	CreatedBy string `yaml:"created_by" envconfig:"PIPELINE_CREATED_BY"`

	// RecordTimeout bounds the processing of a single record.
	RecordTimeout time.Duration `yaml:"record_timeout" envconfig:"PIPELINE_RECORD_TIMEOUT"`

	// UnframeConfluent strips the 5-byte Confluent wire header from values
	// that carry one and records the embedded schema id.
	UnframeConfluent bool `yaml:"unframe_confluent" envconfig:"PIPELINE_UNFRAME_CONFLUENT"`

	// OmitRawMessage leaves raw_message empty in message_metadata.
	OmitRawMessage bool `yaml:"omit_raw_message" envconfig:"PIPELINE_OMIT_RAW_MESSAGE"`

	// MetadataBackend is memory or postgres.
	MetadataBackend string `yaml:"metadata_backend" envconfig:"PIPELINE_METADATA_BACKEND"`

	// QuarantineEnabled writes undecodable records to object storage.
	QuarantineEnabled bool `yaml:"quarantine_enabled" envconfig:"PIPELINE_QUARANTINE_ENABLED"`

	// NotificationsEnabled publishes drift and failure events to RabbitMQ.
	NotificationsEnabled bool `yaml:"notifications_enabled" envconfig:"PIPELINE_NOTIFICATIONS_ENABLED"`
}

const (
	MetadataMemory   = "memory"
	MetadataPostgres = "postgres"
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.SubjectSuffix == "" {
		c.SubjectSuffix = DefaultSubjectSuffix
	}
	if c.CreatedBy == "" {
		c.CreatedBy = DefaultCreatedBy
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = DefaultRecordTimeout
	}
	if c.MetadataBackend == "" {
		c.MetadataBackend = MetadataMemory
	}
	return c
}
