// Package lock provides the keyed write locks that serialize mutations of
// one learning path.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the
// configured wait.
var ErrTimeout = errors.New("timed out waiting for lock")

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker hands out exclusive locks by key.
type Locker interface {
	// Lock blocks until the lock for key is held, the context is done, or
	// the locker's wait budget runs out (ErrTimeout). The returned
	// UnlockFunc must be called exactly once.
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// Config configures a Locker.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// Wait bounds how long Lock blocks. Default: 10s.
	Wait time.Duration `yaml:"wait"`

	// TTL is the Redis key expiry, which bounds how long a crashed holder
	// can keep a path locked. Default: 2m.
	TTL time.Duration `yaml:"ttl"`

	// Prefix namespaces Redis keys. Default: "traverse:".
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns an in-process locker configuration.
func DefaultConfig() Config {
	return Config{
		Backend: "memory",
		Wait:    10 * time.Second,
		TTL:     2 * time.Minute,
		Prefix:  "traverse:",
	}
}

// With runs fn while holding the lock for key. The lock is released even if
// ctx is cancelled while fn runs.
func With(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()
	return fn(ctx)
}

// PathKey is the lock key guarding one learning path.
func PathKey(pathID string) string {
	return "path:" + pathID
}
