package versioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/redis"
)

// Locker serializes allocation for a subject across processes. The returned
// function releases the lock.
type Locker interface {
	Lock(ctx context.Context, subject string) (func(context.Context) error, error)
}

// subjectMutex is a set of per-subject mutexes whose acquisition honours
// context cancellation. Entries are dropped once nobody holds or waits for them.
type subjectMutex struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	sem  chan struct{}
	refs int
}

func newSubjectMutex() *subjectMutex {
	return &subjectMutex{locks: make(map[string]*subjectLock)}
}

func (m *subjectMutex) lock(ctx context.Context, subject string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[subject]
	if !ok {
		l = &subjectLock{sem: make(chan struct{}, 1)}
		m.locks[subject] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				m.release(subject, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(subject, l)
		return nil, ctx.Err()
	}
}

func (m *subjectMutex) release(subject string, l *subjectLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, subject)
	}
}

func (m *subjectMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// RedisLocker implements Locker with a Redis SET NX lock per subject.
type RedisLocker struct {
	client    *redis.RedisClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocker locks keys "<keyPrefix><subject>" for at most ttl. The TTL
// bounds how long a crashed holder blocks other replicas.
func NewRedisLocker(client *redis.RedisClient, keyPrefix string, ttl time.Duration) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "schemawatch:lock:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisLocker) Lock(ctx context.Context, subject string) (func(context.Context) error, error) {
	lock, err := r.client.WaitLock(ctx, r.keyPrefix+subject, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("lock subject %q: %w", subject, err)
	}
	return lock.Release, nil
}
