package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when the lock key is held by someone else.
	ErrLockNotAcquired = errors.New("redis: lock already held")

	// ErrLockNotHeld is returned by Release and Refresh when the lock expired
	// or was taken over by another owner.
	ErrLockNotHeld = errors.New("redis: lock not held")
)

// IsNilError reports whether err is redis.Nil, i.e. a missing key.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsClosedError reports whether the client was used after Close.
func IsClosedError(err error) bool {
	return errors.Is(err, redis.ErrClosed)
}
