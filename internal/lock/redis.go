package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPollInterval = 25 * time.Millisecond

// unlockScript deletes the key only if it still holds our token, so a
// holder whose TTL expired cannot release someone else's lock.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// ErrLockLost is returned on unlock when the key expired or was taken over
// while the lock was held.
var ErrLockLost = errors.New("lock expired before release")

// Redis is a Locker shared by every process using the same Redis server.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithPollInterval sets how often a waiting Lock retries.
func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.poll = d }
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, cfg Config, opts ...RedisOption) *Redis {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	r := &Redis{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		wait:   cfg.Wait,
		poll:   defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock acquires the key with SET NX PX and a random token, polling until it
// succeeds or the wait budget runs out.
func (r *Redis) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	lockKey := r.prefix + "lock:" + key
	token := uuid.NewString()

	var deadline time.Time
	if r.wait > 0 {
		deadline = time.Now().Add(r.wait)
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			return r.unlocker(lockKey, token), nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q: %w", key, ErrTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlocker(lockKey, token string) UnlockFunc {
	return func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, r.client, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
}
