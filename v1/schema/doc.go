// Package schema derives canonical schema descriptions from semi-structured records.
//
// A record is decoded into a generic tagged tree (Value) that keeps the source order of
// object members. Each top-level member is then classified into a fixed TypeTag and the
// resulting ordered field→type mapping is serialized into a canonical string. Two records
// with the same field names, in the same order, with the same value type classes always
// produce byte-identical canonical strings, so drift detection is a plain string comparison.
//
// Core Features:
//   - Order-preserving JSON decoding without reflection
//   - Total type inference (integer, long, double, boolean, array, object, string)
//   - Deterministic canonical serialization
//   - Fail-open derivation: malformed input yields EmptySchema instead of an error
//   - Field-level diffs between two canonical schemas for drift diagnostics
//
// Basic Usage:
//
//	import "github.com/Aleph-Alpha/schemawatch/v1/schema"
//
//	canonical := schema.Derive([]byte(`{"service":"auth","level":"INFO","code":200}`))
//	// canonical == `{"service":"string","level":"string","code":"integer"}`
//
//	fields, err := schema.DeriveFields(raw)
//	if err != nil {
//		// errors.Is(err, schema.ErrDecode) is true for malformed payloads
//	}
//
// Field order is part of the schema: `{"a":1,"b":2}` and `{"b":2,"a":1}` derive different
// canonical strings. Nested values inside arrays and objects are not described.
//
// Thread Safety:
//
// Every function in this package is pure and safe for concurrent use.
package schema
