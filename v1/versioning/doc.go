// Package versioning keeps the append-only lineage of schema versions per subject
// and decides, for every observed record, whether its schema drifted.
//
// The package is built around three pieces:
//
//   - Store: the narrow persistence contract (ListVersions, AppendVersionAtomic).
//     AppendVersionAtomic is a conditional insert keyed on (subject, version) and
//     reports a lost race as ErrVersionConflict. MemoryStore, GormStore (PostgreSQL)
//     and EtcdStore implement it.
//   - Detector: compares a candidate canonical schema with the latest stored
//     definition of a subject and answers NoPrior, Match or Drift. Storage
//     failures and timeouts answer Match and are reported, never returned.
//   - Allocator: computes max(version)+1 and appends it under a per-subject
//     critical section, optionally guarded across processes by a Locker, retrying
//     on ErrVersionConflict a bounded number of times.
//
// Registry ties these together with the schema package:
//
//	reg := versioning.NewRegistry(store, versioning.Config{}, log)
//	out := reg.Observe(ctx, "auth-schema", raw, "schemawatch")
//	if out.Registered != nil {
//	    // a new version was appended
//	}
//
// Versions of one subject are gap-free and strictly increasing. Which of two
// concurrently racing definitions gets the lower number is unspecified, but both
// get distinct numbers.
package versioning
