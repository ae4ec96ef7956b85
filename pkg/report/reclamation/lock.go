package reclamation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"mercator-hq/reportkeeper/pkg/report"
)

// DefaultLockKey is the Redis key guarding reclamation runs.
const DefaultLockKey = "reportkeeper:reclamation:run"

// Lease is a held run lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker serializes reclamation runs across instances sharing one store.
// Obtain returns report.ErrRunInProgress when another holder has the lock.
type Locker interface {
	Obtain(ctx context.Context) (Lease, error)
}

// RedisLocker is a Locker backed by a Redis key with a TTL.
type RedisLocker struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a locker on rdb. The TTL bounds how long a crashed
// holder can block other instances, so it should exceed the longest run.
func NewRedisLocker(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		key:    key,
		ttl:    ttl,
	}
}

// Obtain takes the lock without retrying.
func (l *RedisLocker) Obtain(ctx context.Context) (Lease, error) {
	lock, err := l.client.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, report.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain reclamation lock: %w", err)
	}
	return redisLease{lock: lock}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (l redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
