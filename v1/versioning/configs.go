package versioning

import "time"

// FirstSightingPolicy decides what Observe does for a subject without versions.
type FirstSightingPolicy string

const (
	// FirstSightingRegister registers version 1 on the first observation.
	FirstSightingRegister FirstSightingPolicy = "register"

	// FirstSightingIgnore only logs the new subject. Version 1 then never
	// appears through Observe; it can still be created with RegisterVersion.
	FirstSightingIgnore FirstSightingPolicy = "ignore"
)

const (
	DefaultStoreTimeout    = 5 * time.Second
	DefaultResolverTimeout = 500 * time.Millisecond
	DefaultMaxRetries      = 5
	DefaultRetryBackoff    = 10 * time.Millisecond
	DefaultRegisteredBy    = "schemawatch"
)

// Config tunes detection and allocation.
type Config struct {
	// StoreTimeout bounds every single store call.
	StoreTimeout time.Duration `yaml:"store_timeout" envconfig:"VERSIONING_STORE_TIMEOUT"`

	// ResolverTimeout bounds the external schema id lookup done before each
	// registration. On timeout the version is stored without an id.
	ResolverTimeout time.Duration `yaml:"resolver_timeout" envconfig:"VERSIONING_RESOLVER_TIMEOUT"`

	// MaxRetries is the number of extra attempts after a version conflict.
	// With several replicas sharing one store, enable DistributedLock: the
	// in-process lock does not serialize replicas, and bursts of conflicts
	// can otherwise exhaust the retries.
	MaxRetries int `yaml:"max_retries" envconfig:"VERSIONING_MAX_RETRIES"`

	// RetryBackoff is the base delay between conflict retries. Each retry
	// doubles it and adds up to one base delay of jitter.
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"VERSIONING_RETRY_BACKOFF"`

	// DefaultCompatibility is the label stored with new versions.
	DefaultCompatibility CompatibilityMode `yaml:"default_compatibility" envconfig:"VERSIONING_DEFAULT_COMPATIBILITY"`

	FirstSighting FirstSightingPolicy `yaml:"first_sighting" envconfig:"VERSIONING_FIRST_SIGHTING"`

	// RegisteredBy is used when Observe is called without a registrant.
	RegisteredBy string `yaml:"registered_by" envconfig:"VERSIONING_REGISTERED_BY"`

	// Backend selects the Store built by FXModule: memory, postgres or etcd.
	Backend string `yaml:"backend" envconfig:"VERSIONING_BACKEND"`

	Etcd EtcdConfig `yaml:"etcd"`

	// DistributedLock guards allocation with a Redis lock per subject.
	// Required when several replicas share a postgres or etcd store.
	DistributedLock bool          `yaml:"distributed_lock" envconfig:"VERSIONING_DISTRIBUTED_LOCK"`
	LockTTL         time.Duration `yaml:"lock_ttl" envconfig:"VERSIONING_LOCK_TTL"`
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendEtcd     = "etcd"
)

// SharedStore reports whether the backend can be shared by several
// replicas. Such deployments should set DistributedLock.
func (c Config) SharedStore() bool {
	return c.Backend == BackendPostgres || c.Backend == BackendEtcd
}

func (c Config) withDefaults() Config {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.ResolverTimeout <= 0 {
		c.ResolverTimeout = DefaultResolverTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if !c.DefaultCompatibility.Valid() {
		c.DefaultCompatibility = CompatibilityBackward
	}
	if c.FirstSighting != FirstSightingIgnore {
		c.FirstSighting = FirstSightingRegister
	}
	if c.RegisteredBy == "" {
		c.RegisteredBy = DefaultRegisteredBy
	}
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	return c
}
