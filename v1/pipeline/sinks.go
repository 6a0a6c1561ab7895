package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Aleph-Alpha/schemawatch/v1/rabbit"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// Quarantine keeps records whose payload could not be decoded.
type Quarantine interface {
	Quarantine(ctx context.Context, rec Record, processingID uuid.UUID, service string) (string, error)
}

// Notifier announces schema changes.
type Notifier interface {
	NotifyDrift(ctx context.Context, event DriftEvent) error
}

// ObjectPutter is implemented by *minio.MinioClient.
type ObjectPutter interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string, metadata map[string]string) (string, error)
}

// MinioQuarantine stores raw payloads under <service>/<yyyy>/<mm>/<dd>/<id>.raw.
type MinioQuarantine struct {
	store ObjectPutter
}

func NewMinioQuarantine(store ObjectPutter) *MinioQuarantine {
	return &MinioQuarantine{store: store}
}

func (q *MinioQuarantine) Quarantine(ctx context.Context, rec Record, processingID uuid.UUID, service string) (string, error) {
	at := rec.Time
	if at.IsZero() {
		at = time.Now()
	}
	key := path.Join(service, at.UTC().Format("2006/01/02"), processingID.String()+".raw")

	return q.store.Put(ctx, key, rec.Value, "application/octet-stream", map[string]string{
		"topic":         rec.Topic,
		"partition":     strconv.Itoa(rec.Partition),
		"offset":        strconv.FormatInt(rec.Offset, 10),
		"message-key":   rec.Key,
		"processing-id": processingID.String(),
	})
}

const (
	RoutingKeyDrift = "schema.drift"
	RoutingKeyError = "schema.error"

	errorPublishTimeout = 5 * time.Second
	publishRetryDelay   = 200 * time.Millisecond
)

// DriftEvent is published when a new version was registered.
type DriftEvent struct {
	Type            string    `json:"type"`
	Subject         string    `json:"subject"`
	Status          string    `json:"status"`
	Version         int       `json:"version"`
	PreviousVersion int       `json:"previous_version,omitempty"`
	Schema          string    `json:"schema"`
	PreviousSchema  string    `json:"previous_schema,omitempty"`
	Changes         []string  `json:"changes,omitempty"`
	ProcessingID    string    `json:"processing_id,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
}

type errorEvent struct {
	Type      string    `json:"type"`
	Operation string    `json:"operation"`
	Subject   string    `json:"subject"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// EventPublisher is implemented by *rabbit.RabbitClient.
type EventPublisher interface {
	PublishWithKey(ctx context.Context, routingKey string, msg []byte, headers map[string]interface{}) error
}

// RabbitNotifier publishes drift events and absorbed core failures.
type RabbitNotifier struct {
	publisher EventPublisher
	log       Logger
}

func NewRabbitNotifier(publisher EventPublisher, log Logger) *RabbitNotifier {
	if log == nil {
		log = nopLogger{}
	}
	return &RabbitNotifier{publisher: publisher, log: log}
}

func (n *RabbitNotifier) NotifyDrift(ctx context.Context, event DriftEvent) error {
	event.Type = RoutingKeyDrift
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode drift event: %w", err)
	}
	return n.publish(ctx, RoutingKeyDrift, body, map[string]interface{}{
		"subject": event.Subject,
		"version": int32(event.Version),
	})
}

// publish translates broker failures and retries once when the failure is
// transient, giving the client's reconnect loop a chance to restore the
// channel.
func (n *RabbitNotifier) publish(ctx context.Context, routingKey string, body []byte, headers map[string]interface{}) error {
	err := rabbit.TranslateError(n.publisher.PublishWithKey(ctx, routingKey, body, headers))
	if err == nil || !rabbit.IsRetryableError(err) {
		return err
	}

	n.log.WarnWithContext(ctx, "retrying event publish", err, map[string]interface{}{
		"routing_key": routingKey,
		"category":    rabbit.GetErrorCategory(err).String(),
	})
	select {
	case <-ctx.Done():
		return err
	case <-time.After(publishRetryDelay):
	}
	return rabbit.TranslateError(n.publisher.PublishWithKey(ctx, routingKey, body, headers))
}

// ReportError implements versioning.ErrorReporter. Publishing failures are
// only logged since the reporter is itself the error path.
func (n *RabbitNotifier) ReportError(ctx context.Context, event versioning.ErrorEvent) {
	msg := ""
	if event.Err != nil {
		msg = event.Err.Error()
	}
	body, err := json.Marshal(errorEvent{
		Type:      RoutingKeyError,
		Operation: event.Operation,
		Subject:   event.Subject,
		Error:     msg,
		At:        event.At,
	})
	if err == nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorPublishTimeout)
		err = n.publish(pubCtx, RoutingKeyError, body, map[string]interface{}{
			"subject":   event.Subject,
			"operation": event.Operation,
		})
		cancel()
	}
	if err != nil {
		n.log.ErrorWithContext(ctx, "failed to publish error event", err, map[string]interface{}{
			"subject":   event.Subject,
			"operation": event.Operation,
			"category":  rabbit.GetErrorCategory(err).String(),
			"permanent": rabbit.IsPermanentError(err),
		})
	}
}
