// Package lock provides the per-campaign in-flight marker that keeps two
// ticks from processing the same campaign at once.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker hands out non-blocking, keyed locks.
type Locker interface {
	// TryAcquire returns a held Lock and true, or false when the key is
	// already held by someone else.
	TryAcquire(ctx context.Context, key string) (Lock, bool, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
	// Extend resets the lock's lifetime to ttl. It returns ErrLockLost when
	// the lock expired and is no longer ours.
	Extend(ctx context.Context, ttl time.Duration) error
}

// ErrLockLost reports an Extend on a lock that is no longer held.
var ErrLockLost = errors.New("lock no longer held")

// New returns a Redis-backed locker when client is non-nil (cross-process),
// otherwise an in-process one.
func New(client *redis.Client, ttl time.Duration) Locker {
	if client != nil {
		return NewRedisLocker(client, ttl)
	}
	return NewLocalLocker()
}

// =============================================================================
// Redis
// =============================================================================
// SET NX with a TTL and a random owner token; release is a compare-and-delete
// Lua script so an expired lock re-acquired by another worker is never freed.

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Lock, bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}
	held := &redisLock{client: l.client, key: "lock:" + key, value: hex.EncodeToString(b)}

	ok, err := l.client.SetNX(ctx, held.key, held.value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", held.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return held, true, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	value  string
}

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}

func (l *redisLock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// =============================================================================
// In-process
// =============================================================================

// LocalLocker serializes work inside one process only.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryAcquire(ctx context.Context, key string) (Lock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return &localLock{owner: l, key: key}, true, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	once  sync.Once
}

// Extend is a no-op: in-process locks never expire.
func (l *localLock) Extend(ctx context.Context, ttl time.Duration) error {
	return nil
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
