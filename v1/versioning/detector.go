package versioning

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/schema"
)

// Status is the verdict of a drift check.
type Status int

const (
	StatusNoPrior Status = iota + 1
	StatusMatch
	StatusDrift
)

func (s Status) String() string {
	switch s {
	case StatusNoPrior:
		return "NO_PRIOR"
	case StatusMatch:
		return "MATCH"
	case StatusDrift:
		return "DRIFT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Status) metricLabel() string {
	switch s {
	case StatusNoPrior:
		return "no_prior"
	case StatusDrift:
		return "drift"
	default:
		return "match"
	}
}

// Detection is the result of Detector.Detect.
type Detection struct {
	Status Status `json:"status"`

	// Latest is the subject's highest version, nil for NoPrior or when the
	// store could not be read.
	Latest *SchemaVersion `json:"latest,omitempty"`

	// Err is the absorbed storage failure, if any. Status is Match in that case.
	Err error `json:"-"`
}

// Drifted reports whether the candidate differs from the latest version.
func (d Detection) Drifted() bool {
	return d.Status == StatusDrift
}

// Detector compares candidate schemas with the latest stored version.
type Detector struct {
	store    Store
	timeout  time.Duration
	log      Logger
	metrics  Metrics
	reporter ErrorReporter
}

// NewDetector builds a detector whose store lookups are bounded by timeout.
func NewDetector(store Store, timeout time.Duration, log Logger) *Detector {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Detector{store: store, timeout: timeout, log: log, metrics: nopMetrics{}}
}

func (d *Detector) WithMetrics(m Metrics) *Detector {
	if m != nil {
		d.metrics = m
	}
	return d
}

func (d *Detector) WithReporter(r ErrorReporter) *Detector {
	d.reporter = r
	return d
}

// Detect never fails: a store error or timeout yields Match with Err set,
// after the error has been logged, counted and sent to the reporter.
func (d *Detector) Detect(ctx context.Context, subject, candidate string) Detection {
	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	versions, err := d.store.ListVersions(lookupCtx, subject)
	if err != nil {
		err = fmt.Errorf("check drift for %q: %w", subject, readErr("list versions", err))
		d.log.ErrorWithContext(ctx, "drift check failed, treating as match", err, map[string]interface{}{
			"subject": subject,
		})
		d.metrics.RecordDriftCheck("error")
		if d.reporter != nil {
			d.reporter.ReportError(ctx, ErrorEvent{Operation: "check_drift", Subject: subject, Err: err, At: time.Now().UTC()})
		}
		return Detection{Status: StatusMatch, Err: err}
	}

	latest, ok := Latest(versions)
	if !ok {
		d.log.InfoWithContext(ctx, "new subject observed", nil, map[string]interface{}{
			"subject": subject,
		})
		d.metrics.RecordDriftCheck(StatusNoPrior.metricLabel())
		return Detection{Status: StatusNoPrior}
	}

	if latest.Definition == candidate {
		d.metrics.RecordDriftCheck(StatusMatch.metricLabel())
		return Detection{Status: StatusMatch, Latest: &latest}
	}

	d.log.WarnWithContext(ctx, "schema drift detected", nil, map[string]interface{}{
		"subject":        subject,
		"latest_version": latest.Version,
		"changes":        schema.DiffCanonical(latest.Definition, candidate),
	})
	d.metrics.RecordDriftCheck(StatusDrift.metricLabel())
	return Detection{Status: StatusDrift, Latest: &latest}
}
