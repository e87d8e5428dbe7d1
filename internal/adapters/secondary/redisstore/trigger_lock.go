package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"asset-lifecycle-service/internal/core/ports/output"
)

type triggerLock struct {
	rdb    *redis.Client
	prefix string
	owner  string
}

// NewTriggerLock shares auto trigger claims between replicas. owner is stored
// as the key value so a held lock can be traced to an instance.
func NewTriggerLock(rdb *redis.Client, prefix, owner string) ports.TriggerLock {
	return &triggerLock{rdb: rdb, prefix: prefix, owner: owner}
}

func (l *triggerLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}

func (l *triggerLock) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
