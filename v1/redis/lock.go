package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Lock is an owned lock key.
type Lock struct {
	client *RedisClient
	key    string
	token  string
	ttl    time.Duration
}

func (l *Lock) Key() string { return l.key }

// AcquireLock tries once to take key for ttl.
func (r *RedisClient) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	start := time.Now()
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		err = fmt.Errorf("failed to acquire lock %q: %w", key, err)
		r.observeOperation("lock_acquire", key, start, err)
		return nil, err
	}
	if !ok {
		r.observeOperation("lock_acquire", key, start, ErrLockNotAcquired)
		return nil, ErrLockNotAcquired
	}

	r.observeOperation("lock_acquire", key, start, nil)
	return &Lock{client: r, key: key, token: token, ttl: ttl}, nil
}

// WaitLock polls AcquireLock until it succeeds or ctx is done.
func (r *RedisClient) WaitLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	ticker := time.NewTicker(r.cfg.LockRetryDelay)
	defer ticker.Stop()

	for {
		lock, err := r.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %q: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release deletes the key if this lock still owns it.
func (l *Lock) Release(ctx context.Context) error {
	start := time.Now()
	n, err := releaseScript.Run(ctx, l.client.client, []string{l.key}, l.token).Int64()
	if err == nil && n == 0 {
		err = ErrLockNotHeld
	}
	l.client.observeOperation("lock_release", l.key, start, err)
	return err
}

// Refresh extends the TTL if this lock still owns the key.
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
