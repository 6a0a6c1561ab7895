package logger

const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config selects the level and the static fields of the process logger.
type Config struct {
	// Level is one of debug, info, warning, error. Anything else means info.
	Level string `yaml:"level" envconfig:"ZAP_LOGGER_LEVEL"`

	// ServiceName is attached to every entry as "service".
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// EnableTracing makes the *WithContext methods emit trace_id and span_id.
	EnableTracing bool `yaml:"enable_tracing" envconfig:"LOGGER_ENABLE_TRACING"`
}

func (c Config) zapLevel() zapLevel {
	switch c.Level {
	case Debug:
		return levelDebug
	case Warning:
		return levelWarn
	case Error:
		return levelError
	default:
		return levelInfo
	}
}
