package versioning

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aleph-Alpha/schemawatch/v1/schema"
)

// Outcome is everything Observe learned and did for one record.
type Outcome struct {
	Subject string
	Schema  string
	Fields  schema.Fields

	// DecodeErr is set when the record was not a JSON object; Schema is then
	// schema.EmptySchema and nothing is registered.
	DecodeErr error

	Detection Detection

	// Registered is set when Observe appended a new version.
	Registered *SchemaVersion

	// Current is the version the record should be attributed to: the new
	// version, or the best-known latest one. Nil when the subject has none.
	Current *SchemaVersion

	// Err is a registration failure. The record is still usable with Current.
	Err error
}

// Registry ties derivation, drift detection and allocation together.
type Registry struct {
	store     Store
	detector  *Detector
	allocator *Allocator
	policy    FirstSightingPolicy
	by        string
	timeout   time.Duration

	log      Logger
	metrics  Metrics
	reporter ErrorReporter
	lister   SubjectLister
	lookups  singleflight.Group
}

func NewRegistry(store Store, cfg Config, log Logger) *Registry {
	cfg = cfg.withDefaults()
	if log == nil {
		log = nopLogger{}
	}
	return &Registry{
		store:     store,
		detector:  NewDetector(store, cfg.StoreTimeout, log),
		allocator: NewAllocator(store, cfg, log),
		policy:    cfg.FirstSighting,
		by:        cfg.RegisteredBy,
		timeout:   cfg.StoreTimeout,
		log:       log,
		metrics:   nopMetrics{},
	}
}

func (r *Registry) WithMetrics(m Metrics) *Registry {
	if m != nil {
		r.metrics = m
		r.detector.WithMetrics(m)
		r.allocator.WithMetrics(m)
	}
	return r
}

func (r *Registry) WithReporter(rep ErrorReporter) *Registry {
	r.reporter = rep
	r.detector.WithReporter(rep)
	return r
}

func (r *Registry) WithLocker(l Locker) *Registry {
	r.allocator.WithLocker(l)
	return r
}

func (r *Registry) WithSchemaIDResolver(res SchemaIDResolver) *Registry {
	r.allocator.WithSchemaIDResolver(res)
	return r
}

func (r *Registry) WithSubjectLister(l SubjectLister) *Registry {
	r.lister = l
	return r
}

// Store returns the underlying store.
func (r *Registry) Store() Store {
	return r.store
}

// DeriveSchema returns the canonical schema of raw, or schema.EmptySchema.
func (r *Registry) DeriveSchema(raw []byte) string {
	return schema.Derive(raw)
}

// CheckDrift compares candidate with the latest version of subject.
func (r *Registry) CheckDrift(ctx context.Context, subject, candidate string) Detection {
	return r.detector.Detect(ctx, subject, candidate)
}

// RegisterVersion appends definition as the next version of subject.
func (r *Registry) RegisterVersion(ctx context.Context, subject, definition, registeredBy string) (SchemaVersion, error) {
	if registeredBy == "" {
		registeredBy = r.by
	}
	return r.allocator.Register(ctx, subject, definition, registeredBy)
}

// Observe derives the schema of raw, checks it against subject and registers
// a new version on drift, or on first sighting when the policy says so.
// It never fails as a whole: problems are reported in the Outcome.
func (r *Registry) Observe(ctx context.Context, subject string, raw []byte, registeredBy string) Outcome {
	if registeredBy == "" {
		registeredBy = r.by
	}
	out := Outcome{Subject: subject, Schema: schema.EmptySchema}

	fields, err := schema.DeriveFields(raw)
	if err != nil {
		out.DecodeErr = err
		r.metrics.RecordDecodeFailure()
		r.log.WarnWithContext(ctx, "record is not a JSON object, using empty schema", err, map[string]interface{}{
			"subject": subject,
			"size":    len(raw),
		})
	} else {
		out.Fields = fields
		out.Schema = fields.Canonical()
	}

	out.Detection = r.detector.Detect(ctx, subject, out.Schema)
	out.Current = out.Detection.Latest

	if out.DecodeErr != nil || !r.shouldRegister(out.Detection.Status) {
		return out
	}

	stored, created, err := r.allocator.RegisterIfChanged(ctx, subject, out.Schema, registeredBy)
	if err != nil {
		out.Err = err
		r.report(ctx, "register_version", subject, err)
		return out
	}
	out.Current = &stored
	if created {
		out.Registered = &stored
	}
	return out
}

func (r *Registry) shouldRegister(status Status) bool {
	switch status {
	case StatusDrift:
		return true
	case StatusNoPrior:
		return r.policy == FirstSightingRegister
	default:
		return false
	}
}

func (r *Registry) report(ctx context.Context, op, subject string, err error) {
	if r.reporter == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.reporter.ReportError(ctx, ErrorEvent{Operation: op, Subject: subject, Err: err, At: time.Now().UTC()})
}

// Subjects asks the external registry for its subjects. Concurrent callers
// share one request. Failures are logged and yield an empty list.
func (r *Registry) Subjects(ctx context.Context) []string {
	if r.lister == nil {
		return []string{}
	}

	v, err, _ := r.lookups.Do("subjects", func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.lister.ListSubjects(lookupCtx)
	})
	if err != nil {
		r.log.ErrorWithContext(ctx, "external subject lookup failed", err)
		return []string{}
	}

	subjects, _ := v.([]string)
	if subjects == nil {
		return []string{}
	}
	return append([]string(nil), subjects...)
}
