package cron

import (
	"context"
	"errors"
	"time"

	"github.com/orderdesk/orderdesk-backend/pkg/redis"
)

const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	redis.KeyStore
	LockKey(name string) string
}

// NewRedisLock builds the cycle lock stored under the namespaced lock key for name.
func NewRedisLock(store lockStore, name string, ttl time.Duration) (Lock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return redis.NewLock(store, store.LockKey(name), ttl)
}

// localLock serializes cycles inside one process when redis is not configured.
type localLock struct {
	held chan struct{}
}

// NewLocalLock returns a process-local lock.
func NewLocalLock() Lock {
	return &localLock{held: make(chan struct{}, 1)}
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	select {
	case l.held <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *localLock) Release(context.Context) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
