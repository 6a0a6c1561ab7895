package pipeline

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/kafka"
	"github.com/Aleph-Alpha/schemawatch/v1/schema"
	"github.com/Aleph-Alpha/schemawatch/v1/schema_registry"
)

// Record is one inbound message, independent of the transport.
type Record struct {
	Key       string
	Topic     string
	Partition int
	Offset    int64
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

// RecordFromMessage copies a consumed Kafka message.
func RecordFromMessage(msg kafka.Message) Record {
	return Record{
		Key:       msg.Key(),
		Topic:     msg.Topic(),
		Partition: msg.Partition(),
		Offset:    msg.Offset(),
		Value:     msg.Body(),
		Headers:   msg.Header(),
		Time:      msg.Time(),
	}
}

var (
	serviceKeys = []string{"service", "service_name", "application"}
	levelKeys   = []string{"level", "log_level", "severity"}
)

// ExtractService returns the first of service, service_name or application
// present in obj, rendered as text.
func ExtractService(obj schema.Object) string {
	return firstText(obj, serviceKeys, DefaultUnknownService)
}

// ExtractLevel returns the first of level, log_level or severity present in obj.
func ExtractLevel(obj schema.Object) string {
	return firstText(obj, levelKeys, DefaultLevel)
}

func firstText(obj schema.Object, keys []string, fallback string) string {
	for _, k := range keys {
		if v, ok := obj.Get(k); ok {
			return v.Text()
		}
	}
	return fallback
}

// Unframe removes a Confluent wire header. Values without one are returned
// unchanged with a nil id. A JSON document never starts with a zero byte, so
// the magic byte is unambiguous.
func Unframe(value []byte) ([]byte, *int) {
	if len(value) < 5 || value[0] != 0x0 {
		return value, nil
	}
	id, body, err := schema_registry.DecodeSchemaID(value)
	if err != nil {
		return value, nil
	}
	return body, &id
}

// Normalize wraps raw in the normalized envelope. A raw payload that is not
// valid JSON is embedded as a string so the output always parses.
func Normalize(raw []byte, at time.Time) []byte {
	var data json.RawMessage
	if json.Valid(raw) {
		data = compact(raw)
	} else {
		quoted, _ := json.Marshal(string(raw))
		data = quoted
	}

	out, _ := json.Marshal(struct {
		Data         json.RawMessage `json:"data"`
		NormalizedAt string          `json:"normalized_at"`
		Version      string          `json:"version"`
	}{
		Data:         data,
		NormalizedAt: at.UTC().Format(time.RFC3339Nano),
		Version:      NormalizedFormatVersion,
	})
	return out
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
