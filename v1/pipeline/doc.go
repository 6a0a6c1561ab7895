// Package pipeline runs consumed records through schema versioning and
// forwards them in normalized form.
//
// For every record the Processor:
//
//  1. extracts the service (service, service_name, application) and the log
//     level (level, log_level, severity) from the payload
//  2. observes the payload under the subject "<service>-schema", which derives
//     the schema, checks it for drift and registers a new version when needed
//  3. wraps the payload as {"data":...,"normalized_at":...,"version":"1.0"}
//  4. forwards the result with schema and trace headers
//  5. stores a MessageMetadata row
//
// Undecodable payloads are quarantined when a Quarantine is configured, and
// new versions are announced through a Notifier. None of these side paths
// fail the record.
//
// The Runner drives a Processor from kafka.KafkaClient.ConsumeParallel with a
// bounded number of records in flight and commits every record it finishes.
package pipeline
