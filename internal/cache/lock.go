package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DistributedLock serializes access to a logical key (typically a
// normalized-name+type pair or a canonical entity id) across processes.
// Acquire blocks until the lock is held or ctx is done; Release is a no-op
// if the caller no longer holds the lock (e.g. it expired).
type DistributedLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock represents a held lock. Release must be called exactly once.
type Lock interface {
	Release(ctx context.Context) error
}

// unlockScript deletes a key only if its value still matches the token
// this holder set, preventing one holder from releasing a lock it no
// longer owns (e.g. after TTL expiry and reacquisition by another
// process). Grounded on the teacher's rate limiter's atomic
// check-and-increment Lua script — same "read+act atomically" shape,
// applied to compare-and-delete instead of increment-and-threshold.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLock implements DistributedLock with SET NX PX acquisition and a
// token-guarded Lua unlock.
type RedisLock struct {
	client     *redis.Client
	pollPeriod time.Duration
}

// NewRedisLock wraps an existing Redis client.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, pollPeriod: 50 * time.Millisecond}
}

// Acquire polls SET NX PX until it succeeds or ctx is done.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	ticker := time.NewTicker(l.pollPeriod)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock acquisition failed for %s: %w", key, err)
		}
		if ok {
			return &redisHeldLock{client: l.client, key: lockKey, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out acquiring lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

type redisHeldLock struct {
	client *redis.Client
	key    string
	token  string
}

// Release deletes the lock key only if it still holds the original token.
func (h *redisHeldLock) Release(ctx context.Context) error {
	if err := unlockScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil {
		return fmt.Errorf("redis lock release failed for %s: %w", h.key, err)
	}
	return nil
}

// LocalLock implements DistributedLock with an in-process striped mutex
// map, suitable for single-process deployments or tests where no Redis
// instance is available. Locks never expire on their own — Release is
// mandatory.
type LocalLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLock builds a process-local lock registry.
func NewLocalLock() *LocalLock {
	return &LocalLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks on the key's mutex, respecting ctx cancellation via a
// goroutine racing the lock acquisition. If ctx is done first, the
// goroutine still completes the Lock call (mutexes can't be cancelled) and
// immediately unlocks again so the key isn't left permanently jammed.
func (l *LocalLock) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	mu := l.mutexFor(key)

	acquired := make(chan struct{})
	var claimed int32 // 0 = undecided, 1 = caller claimed it, 2 = caller gave up
	go func() {
		mu.Lock()
		if atomic.CompareAndSwapInt32(&claimed, 0, 1) {
			close(acquired)
			return
		}
		// Caller already gave up; this goroutine's Lock() call can't be
		// cancelled, so release immediately instead of holding forever.
		mu.Unlock()
	}()

	select {
	case <-acquired:
		return &localHeldLock{mu: mu}, nil
	case <-ctx.Done():
		if !atomic.CompareAndSwapInt32(&claimed, 0, 2) {
			// The goroutine already claimed the mutex for this caller;
			// release it so the key isn't left jammed.
			mu.Unlock()
		}
		return nil, fmt.Errorf("timed out acquiring local lock %s: %w", key, ctx.Err())
	}
}

func (l *LocalLock) mutexFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[key] = mu
	}
	return mu
}

type localHeldLock struct {
	mu       *sync.Mutex
	released sync.Once
}

// Release unlocks the underlying mutex; safe to call more than once per
// held lock.
func (h *localHeldLock) Release(ctx context.Context) error {
	h.released.Do(h.mu.Unlock)
	return nil
}
