package tracer

// Config for the tracer provider.
type Config struct {
	ServiceName string `yaml:"service_name" envconfig:"TRACER_SERVICE_NAME"`

	// AppEnv is recorded as deployment.environment.
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV"`

	// EnableExport turns on the OTLP/HTTP exporter. Without it spans are still
	// created so trace ids reach logs and Kafka headers.
	EnableExport bool `yaml:"enable_export" envconfig:"TRACER_ENABLE_EXPORT"`

	// Endpoint is host:port of the collector.
	Endpoint string `yaml:"endpoint" envconfig:"TRACER_ENDPOINT"`

	Insecure bool `yaml:"insecure" envconfig:"TRACER_INSECURE"`
}
