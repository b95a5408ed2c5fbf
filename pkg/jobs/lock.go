package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Lock serializes workflow runs that touch the same resource. Acquire is
// non-blocking; callers retry on their own schedule.
type Lock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// RedisLock implements Lock with SET NX PX and an ownership token, so a
// holder that outlives its TTL cannot release a lock someone else now owns.
type RedisLock struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLock(client redis.UniversalClient, prefix string) *RedisLock {
	if prefix == "" {
		prefix = "polytrans:lock:"
	}

	return &RedisLock{
		client: client,
		prefix: prefix,
	}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.New().String()
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}

	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}

	return release, true, nil
}

// MemoryLock is a process-local Lock for tests and single-node deployments.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]string
	clock func() time.Time

	expiry map[string]time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		held:   make(map[string]string),
		expiry: make(map[string]time.Time),
		clock:  time.Now,
	}
}

func (l *MemoryLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	if owner, ok := l.held[key]; ok && owner != "" {
		if expiry, hasExpiry := l.expiry[key]; !hasExpiry || now.Before(expiry) {
			return nil, false, nil
		}
	}

	token := uuid.New().String()
	l.held[key] = token
	l.expiry[key] = now.Add(ttl)

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.held[key] == token {
			delete(l.held, key)
			delete(l.expiry, key)
		}

		return nil
	}

	return release, true, nil
}
