// Package schema_registry is a read-only client for a Confluent-compatible
// schema registry.
//
// The schema watcher keeps its own version lineage; the registry is an
// optional external source consulted for subject listings and for the
// registry id stored alongside new versions. Every lookup is bounded by the
// caller's context and the client timeout:
//
//	client, err := schema_registry.NewClient(schema_registry.Config{
//		URL: "http://localhost:8081",
//	})
//	subjects, err := client.ListSubjects(ctx)
//	latest, err := client.GetLatestSchema(ctx, "auth-value")
//
// Unknown subjects or versions return ErrNotFound; network failures and 5xx
// answers return ErrUnavailable.
//
// DecodeSchemaID strips the 5-byte Confluent wire header from framed payloads.
package schema_registry
