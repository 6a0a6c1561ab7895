package versioning

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Allocator appends new versions with gap-free, strictly increasing numbers.
//
// Calls for the same subject are serialized in-process; a Locker extends that
// across processes. The store's conditional append is the final guard: a
// conflict is retried with a recomputed number up to maxRetries times.
type Allocator struct {
	store           Store
	locks           *subjectMutex
	locker          Locker
	resolver        SchemaIDResolver
	timeout         time.Duration
	resolverTimeout time.Duration
	maxRetries      int
	backoff         time.Duration
	mode            CompatibilityMode
	now             func() time.Time
	log             Logger
	metrics         Metrics
}

func NewAllocator(store Store, cfg Config, log Logger) *Allocator {
	cfg = cfg.withDefaults()
	if log == nil {
		log = nopLogger{}
	}
	return &Allocator{
		store:           store,
		locks:           newSubjectMutex(),
		timeout:         cfg.StoreTimeout,
		resolverTimeout: cfg.ResolverTimeout,
		maxRetries:      cfg.MaxRetries,
		backoff:         cfg.RetryBackoff,
		mode:            cfg.DefaultCompatibility,
		now:             time.Now,
		log:             log,
		metrics:         nopMetrics{},
	}
}

func (a *Allocator) WithLocker(l Locker) *Allocator {
	a.locker = l
	return a
}

func (a *Allocator) WithMetrics(m Metrics) *Allocator {
	if m != nil {
		a.metrics = m
	}
	return a
}

func (a *Allocator) WithSchemaIDResolver(r SchemaIDResolver) *Allocator {
	a.resolver = r
	return a
}

// WithClock replaces time.Now for RegisteredAt.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Register appends definition as the next version of subject.
func (a *Allocator) Register(ctx context.Context, subject, definition, registeredBy string) (SchemaVersion, error) {
	v, _, err := a.allocate(ctx, subject, definition, registeredBy, false)
	return v, err
}

// RegisterIfChanged is Register, except that when the latest version already
// holds definition, seen inside the critical section, it is returned as is and
// the boolean is false. Concurrent observers of one new shape thus produce a
// single version.
func (a *Allocator) RegisterIfChanged(ctx context.Context, subject, definition, registeredBy string) (SchemaVersion, bool, error) {
	return a.allocate(ctx, subject, definition, registeredBy, true)
}

func (a *Allocator) allocate(ctx context.Context, subject, definition, registeredBy string, onlyIfChanged bool) (SchemaVersion, bool, error) {
	if subject == "" || definition == "" {
		a.metrics.RecordRegistrationFailure("invalid")
		return SchemaVersion{}, false, fmt.Errorf("%w: subject and definition are required", ErrInvalidVersion)
	}

	schemaID := a.resolveSchemaID(ctx, subject)

	unlock, err := a.locks.lock(ctx, subject)
	if err != nil {
		a.metrics.RecordRegistrationFailure("lock")
		return SchemaVersion{}, false, fmt.Errorf("register %q: %w", subject, err)
	}
	defer unlock()

	if a.locker != nil {
		release, err := a.locker.Lock(ctx, subject)
		if err != nil {
			a.metrics.RecordRegistrationFailure("lock")
			return SchemaVersion{}, false, fmt.Errorf("register %q: %w", subject, err)
		}
		defer func() {
			// the caller's ctx may already be cancelled; the lock must still go
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				a.log.WarnWithContext(ctx, "failed to release subject lock", err, map[string]interface{}{"subject": subject})
			}
		}()
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := a.wait(ctx, attempt); err != nil {
				a.metrics.RecordRegistrationFailure("cancelled")
				return SchemaVersion{}, false, fmt.Errorf("register %q: %w", subject, err)
			}
		}

		versions, err := a.list(ctx, subject)
		if err != nil {
			a.fail(ctx, "read", subject, err)
			return SchemaVersion{}, false, fmt.Errorf("register %q: %w", subject, err)
		}

		latest, ok := Latest(versions)
		if onlyIfChanged && ok && latest.Definition == definition {
			return latest, false, nil
		}

		next := 1
		if ok {
			next = latest.Version + 1
		}

		stored, err := a.append(ctx, SchemaVersion{
			Subject:           subject,
			Version:           next,
			SchemaID:          schemaID,
			Definition:        definition,
			CompatibilityMode: a.mode,
			IsActive:          true,
			RegisteredAt:      a.now().UTC(),
			RegisteredBy:      registeredBy,
		})
		if err == nil {
			a.metrics.RecordVersionRegistered()
			a.log.InfoWithContext(ctx, "schema version registered", nil, map[string]interface{}{
				"subject":  subject,
				"version":  stored.Version,
				"attempts": attempt + 1,
			})
			return stored, true, nil
		}

		if !errors.Is(err, ErrVersionConflict) {
			a.fail(ctx, "write", subject, err)
			return SchemaVersion{}, false, fmt.Errorf("register %q: %w", subject, err)
		}

		if attempt >= a.maxRetries {
			err = fmt.Errorf("register %q: %w after %d attempts", subject, ErrVersionConflict, attempt+1)
			a.fail(ctx, "conflict", subject, err)
			return SchemaVersion{}, false, err
		}

		a.log.DebugWithContext(ctx, "version conflict, retrying", err, map[string]interface{}{
			"subject": subject,
			"version": next,
			"attempt": attempt + 1,
		})
	}
}

func (a *Allocator) list(ctx context.Context, subject string) ([]SchemaVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	versions, err := a.store.ListVersions(ctx, subject)
	if err != nil {
		return nil, readErr("list versions", err)
	}
	return versions, nil
}

func (a *Allocator) append(ctx context.Context, candidate SchemaVersion) (SchemaVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stored, err := a.store.AppendVersionAtomic(ctx, candidate)
	if err != nil {
		return SchemaVersion{}, writeErr("append version", err)
	}
	return stored, nil
}

// wait sleeps backoff*2^(attempt-1) plus jitter, or until ctx is done.
func (a *Allocator) wait(ctx context.Context, attempt int) error {
	delay := a.backoff << (attempt - 1)
	delay += rand.N(a.backoff)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Allocator) resolveSchemaID(ctx context.Context, subject string) *int {
	if a.resolver == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.resolverTimeout)
	defer cancel()

	id, err := a.resolver.ResolveSchemaID(ctx, subject)
	if err != nil {
		a.log.DebugWithContext(ctx, "no external schema id", err, map[string]interface{}{"subject": subject})
		return nil
	}
	return &id
}

func (a *Allocator) fail(ctx context.Context, reason, subject string, err error) {
	a.metrics.RecordRegistrationFailure(reason)
	a.log.ErrorWithContext(ctx, "schema version registration failed", err, map[string]interface{}{
		"subject": subject,
		"reason":  reason,
	})
}
