package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/instance"
	pkgredis "github.com/angelmondragon/crm-backend/pkg/redis"
)

// LockName is the redis lock shared by every cron-worker replica.
const LockName = "crm-cron"

const defaultLockTTL = 30 * time.Minute

// Lock coordinates exclusive cron cycles across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lock whose value identifies the holder, so a replica
// never deletes a lock that expired and was taken over by another one.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock. A non-positive ttl falls back
// to thirty minutes.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to take the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, pkgredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
