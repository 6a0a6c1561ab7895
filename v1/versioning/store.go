package versioning

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorageRead wraps failures to read versions from the store.
	ErrStorageRead = errors.New("versioning: storage read failed")

	// ErrStorageWrite wraps failures to append a version.
	ErrStorageWrite = errors.New("versioning: storage write failed")

	// ErrVersionConflict is returned by AppendVersionAtomic when (subject, version)
	// already exists, and by Allocator.Register once retries are exhausted.
	ErrVersionConflict = errors.New("versioning: version conflict")

	// ErrNotFound is returned by Reader lookups that match nothing.
	ErrNotFound = errors.New("versioning: not found")

	// ErrInvalidVersion is returned for candidates that cannot be stored.
	ErrInvalidVersion = errors.New("versioning: invalid version")
)

// Store is what the detector and the allocator need from persistence.
//
//go:generate mockgen -destination=mock_store.go -package=versioning . Store
type Store interface {
	// ListVersions returns every version of subject ordered by Version ascending.
	ListVersions(ctx context.Context, subject string) ([]SchemaVersion, error)

	// AppendVersionAtomic inserts candidate unless (Subject, Version) exists, in
	// which case it returns ErrVersionConflict and stores nothing. The stored
	// record, with ID populated, is returned.
	AppendVersionAtomic(ctx context.Context, candidate SchemaVersion) (SchemaVersion, error)
}

// Reader serves read-only queries over all subjects.
type Reader interface {
	ListAll(ctx context.Context) ([]SchemaVersion, error)
	ListActive(ctx context.Context) ([]SchemaVersion, error)
	ListSubjects(ctx context.Context) ([]string, error)
	GetVersion(ctx context.Context, subject string, version int) (SchemaVersion, error)
	GetBySchemaID(ctx context.Context, schemaID int) (SchemaVersion, error)
}

// ReadStore is a Store that also serves Reader queries. All implementations in
// this package satisfy it.
type ReadStore interface {
	Store
	Reader
}

func validateCandidate(c SchemaVersion) error {
	switch {
	case c.Subject == "":
		return fmt.Errorf("%w: empty subject", ErrInvalidVersion)
	case c.Version < 1:
		return fmt.Errorf("%w: version %d", ErrInvalidVersion, c.Version)
	case c.Definition == "":
		return fmt.Errorf("%w: empty definition", ErrInvalidVersion)
	}
	return nil
}

func readErr(op string, err error) error {
	if errors.Is(err, ErrStorageRead) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageRead, op, err)
}

func writeErr(op string, err error) error {
	if errors.Is(err, ErrStorageWrite) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidVersion) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageWrite, op, err)
}
