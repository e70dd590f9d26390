package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/timesbus/velio/pkg/redis_client"
)

// ChangeDetector decides whether an item represents new information for a
// vehicle. ShouldProcess records the fingerprint as a side effect so a
// repeat of the same fingerprint on a later pass is suppressed.
type ChangeDetector interface {
	ShouldProcess(ctx context.Context, key string, fingerprint string) bool
}

// MemoryChangeDetector keeps fingerprints in process memory. State is lost
// on restart, which just means one redundant pass after startup.
type MemoryChangeDetector struct {
	mutex        sync.Mutex
	fingerprints map[string]string
}

func NewMemoryChangeDetector() *MemoryChangeDetector {
	return &MemoryChangeDetector{
		fingerprints: map[string]string{},
	}
}

func (d *MemoryChangeDetector) ShouldProcess(ctx context.Context, key string, fingerprint string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.fingerprints[key] == fingerprint {
		return false
	}

	d.fingerprints[key] = fingerprint
	return true
}

// RedisChangeDetector keeps fingerprints in redis so they survive restarts
// and are shared between replicas. Entries expire so a stale fingerprint
// never suppresses a vehicle forever.
type RedisChangeDetector struct {
	sourcePrefix string
	cache        *cache.Cache[string]
}

func NewRedisChangeDetector(sourceName string, expiration time.Duration) *RedisChangeDetector {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(expiration))

	return &RedisChangeDetector{
		sourcePrefix: sourceName,
		cache:        cache.New[string](redisStore),
	}
}

func (d *RedisChangeDetector) ShouldProcess(ctx context.Context, key string, fingerprint string) bool {
	cacheKey := fmt.Sprintf("velio/fingerprint/%s/%s", d.sourcePrefix, key)

	cachedFingerprint, err := d.cache.Get(ctx, cacheKey)
	if err == nil && cachedFingerprint == fingerprint {
		return false
	}

	d.cache.Set(ctx, cacheKey, fingerprint)
	return true
}
