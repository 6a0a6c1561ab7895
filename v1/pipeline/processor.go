package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aleph-Alpha/schemawatch/v1/schema"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// Record statuses used as the metrics label.
const (
	StatusOK             = "ok"
	StatusDecodeFailed   = "decode_failed"
	StatusRegisterFailed = "register_failed"
	StatusPublishFailed  = "publish_failed"
)

// Headers set on every forwarded record.
const (
	HeaderSubject       = "schema-subject"
	HeaderSchemaVersion = "schema-version"
	HeaderSchemaStatus  = "schema-status"
	HeaderProcessingID  = "processing-id"
	HeaderService       = "service"
)

var ErrPublish = errors.New("pipeline: publish failed")

// Result describes what happened to one record.
type Result struct {
	ProcessingID  uuid.UUID
	Subject       string
	Service       string
	Level         string
	Outcome       versioning.Outcome
	SchemaVersion string
	Normalized    []byte
	Metadata      MessageMetadata

	// QuarantineKey is the object key of an undecodable record.
	QuarantineKey string

	// Status is one of the Status constants.
	Status string
}

// Processor runs a single record through derive, detect, register, normalize,
// persist and forward.
type Processor struct {
	cfg       Config
	registry  *versioning.Registry
	metadata  MetadataStore
	publisher Publisher

	quarantine Quarantine
	notifier   Notifier
	tracer     Tracer
	metrics    Metrics
	log        Logger
	now        func() time.Time
}

func NewProcessor(cfg Config, registry *versioning.Registry, metadata MetadataStore, publisher Publisher, log Logger) *Processor {
	if log == nil {
		log = nopLogger{}
	}
	return &Processor{
		cfg:       cfg.withDefaults(),
		registry:  registry,
		metadata:  metadata,
		publisher: publisher,
		metrics:   nopMetrics{},
		log:       log,
		now:       time.Now,
	}
}

func (p *Processor) WithQuarantine(q Quarantine) *Processor {
	p.quarantine = q
	return p
}

func (p *Processor) WithNotifier(n Notifier) *Processor {
	p.notifier = n
	return p
}

func (p *Processor) WithTracer(t Tracer) *Processor {
	p.tracer = t
	return p
}

func (p *Processor) WithMetrics(m Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// SubjectFor returns the subject records of service are versioned under.
func (p *Processor) SubjectFor(service string) string {
	return service + p.cfg.SubjectSuffix
}

// Process handles rec. Decode, registration, quarantine, notification and
// persistence failures are absorbed and reflected in Result.Status and the
// logs. The only returned error is a failure to forward the record.
func (p *Processor) Process(ctx context.Context, rec Record) (Result, error) {
	start := p.now()
	res := Result{ProcessingID: uuid.New(), Status: StatusOK}

	ctx, span := p.startSpan(ctx, rec)
	defer span.End()

	payload, frameID := rec.Value, (*int)(nil)
	if p.cfg.UnframeConfluent {
		payload, frameID = Unframe(rec.Value)
	}

	obj, _ := schema.ParseObject(payload)
	res.Service = ExtractService(obj)
	res.Level = ExtractLevel(obj)
	res.Subject = p.SubjectFor(res.Service)

	res.Outcome = p.registry.Observe(ctx, res.Subject, payload, p.cfg.CreatedBy)
	res.SchemaVersion = DefaultSchemaVersion
	schemaID := frameID
	if cur := res.Outcome.Current; cur != nil {
		res.SchemaVersion = strconv.Itoa(cur.Version)
		if schemaID == nil {
			schemaID = cur.SchemaID
		}
	}

	fields := map[string]interface{}{
		"processing_id": res.ProcessingID.String(),
		"subject":       res.Subject,
		"topic":         rec.Topic,
		"partition":     rec.Partition,
		"offset":        rec.Offset,
	}

	switch {
	case res.Outcome.DecodeErr != nil:
		res.Status = StatusDecodeFailed
		res.QuarantineKey = p.quarantineRecord(ctx, rec, res, fields)
	case res.Outcome.Err != nil:
		res.Status = StatusRegisterFailed
		p.log.ErrorWithContext(ctx, "schema registration failed, forwarding with best-known version", res.Outcome.Err, fields)
		p.recordError(span, res.Outcome.Err)
	case res.Outcome.Registered != nil:
		p.notifyDrift(ctx, res, fields)
	}

	processedAt := p.now().UTC()
	res.Normalized = Normalize(payload, processedAt)

	res.Metadata = MessageMetadata{
		MessageKey:        rec.Key,
		Topic:             rec.Topic,
		Partition:         rec.Partition,
		Offset:            rec.Offset,
		NormalizedMessage: string(res.Normalized),
		ServiceName:       res.Service,
		LogLevel:          res.Level,
		SchemaVersion:     res.SchemaVersion,
		SchemaID:          schemaID,
		CreatedAt:         processedAt,
		ProcessedAt:       &processedAt,
		CreatedBy:         p.cfg.CreatedBy,
	}
	if !p.cfg.OmitRawMessage {
		res.Metadata.RawMessage = string(payload)
	}

	err := p.forward(ctx, rec, res)
	if err != nil {
		res.Status = StatusPublishFailed
		p.recordError(span, err)
	}

	res.Metadata.ProcessingTimeMs = p.now().Sub(start).Milliseconds()
	if serr := p.metadata.Save(ctx, &res.Metadata); serr != nil {
		p.log.ErrorWithContext(ctx, "failed to persist message metadata", serr, fields)
	}

	p.setAttributes(span, map[string]interface{}{
		"schema.subject": res.Subject,
		"schema.version": res.SchemaVersion,
		"schema.status":  res.Outcome.Detection.Status.String(),
		"record.status":  res.Status,
	})
	p.metrics.RecordProcessed(res.Status, p.now().Sub(start))
	return res, err
}

func (p *Processor) forward(ctx context.Context, rec Record, res Result) error {
	headers := p.carrier(ctx)
	headers[HeaderSubject] = res.Subject
	headers[HeaderSchemaVersion] = res.SchemaVersion
	headers[HeaderSchemaStatus] = res.Outcome.Detection.Status.String()
	headers[HeaderProcessingID] = res.ProcessingID.String()
	headers[HeaderService] = res.Service

	if err := p.publisher.Publish(ctx, rec.Key, res.Normalized, headers); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

func (p *Processor) quarantineRecord(ctx context.Context, rec Record, res Result, fields map[string]interface{}) string {
	if p.quarantine == nil {
		return ""
	}
	key, err := p.quarantine.Quarantine(ctx, rec, res.ProcessingID, res.Service)
	if err != nil {
		p.log.ErrorWithContext(ctx, "failed to quarantine undecodable record", err, fields)
		return ""
	}
	p.log.InfoWithContext(ctx, "undecodable record quarantined", nil, map[string]interface{}{
		"processing_id": res.ProcessingID.String(),
		"key":           key,
	})
	return key
}

func (p *Processor) notifyDrift(ctx context.Context, res Result, fields map[string]interface{}) {
	if p.notifier == nil {
		return
	}

	reg := res.Outcome.Registered
	event := DriftEvent{
		Subject:      res.Subject,
		Status:       res.Outcome.Detection.Status.String(),
		Version:      reg.Version,
		Schema:       reg.Definition,
		ProcessingID: res.ProcessingID.String(),
		DetectedAt:   reg.RegisteredAt,
	}
	if prev := res.Outcome.Detection.Latest; prev != nil {
		event.PreviousVersion = prev.Version
		event.PreviousSchema = prev.Definition
		event.Changes = schema.DiffCanonical(prev.Definition, reg.Definition)
	}

	if err := p.notifier.NotifyDrift(ctx, event); err != nil {
		p.log.WarnWithContext(ctx, "failed to publish drift event", err, fields)
	}
}

func (p *Processor) startSpan(ctx context.Context, rec Record) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	if len(rec.Headers) > 0 {
		ctx = p.tracer.SetCarrierOnContext(ctx, rec.Headers)
	}
	return p.tracer.StartSpan(ctx, "pipeline.process")
}

func (p *Processor) recordError(span trace.Span, err error) {
	if p.tracer != nil {
		p.tracer.RecordErrorOnSpan(span, err)
	}
}

func (p *Processor) setAttributes(span trace.Span, attrs map[string]interface{}) {
	if p.tracer != nil {
		p.tracer.SetAttributes(span, attrs)
	}
}

func (p *Processor) carrier(ctx context.Context) map[string]string {
	headers := map[string]string{}
	if p.tracer != nil {
		for k, v := range p.tracer.GetCarrier(ctx) {
			headers[k] = v
		}
	}
	return headers
}
