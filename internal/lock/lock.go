// Package lock serialises work on a key across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"cafecogs/backend/internal/logger"
	"cafecogs/backend/internal/store"
)

// Release frees a lock. It never fails the caller; an expired lock is
// simply gone.
type Release func(ctx context.Context)

type Locker interface {
	// Acquire returns store.ErrConflict when someone else holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

func PeriodCloseKey(periodID string) string {
	return "cogs:period-close:" + periodID
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	held, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s is locked", store.ErrConflict, key)
	}
	if err != nil {
		logger.LogError("lock", "Acquire", "Error obtaining redis lock", key, err)
		return nil, err
	}
	return func(ctx context.Context) {
		if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.WithModule("lock").WithError(err).WithField("key", key).Warn("release redis lock failed")
		}
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, fmt.Errorf("%w: %s is locked", store.ErrConflict, key)
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A holder whose lock expired must not free the next holder's lock.
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
	}, nil
}
