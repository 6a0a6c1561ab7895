package metrics

// DefaultMetricsAddress is used when Config.Address is empty.
const DefaultMetricsAddress = ":9090"

// Config controls the metrics registry and its HTTP server.
type Config struct {
	// Address the /metrics server listens on, e.g. ":9090".
	Address string `yaml:"address" envconfig:"METRICS_ADDRESS"`

	// EnableDefaultCollectors registers the Go runtime, process and build-info collectors.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" envconfig:"METRICS_ENABLE_DEFAULT_COLLECTORS"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`

	// ServiceName is attached to every series as the "service" label.
	ServiceName string `yaml:"service_name" envconfig:"METRICS_SERVICE_NAME"`
}
