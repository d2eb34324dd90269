package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/orderdesk/orderdesk-backend/pkg/redis"
)

// Guard serializes concurrent processing of the same order number.
type Guard interface {
	Acquire(ctx context.Context, orderNumber string) (release func(context.Context) error, ok bool, err error)
}

type inFlightStore interface {
	redis.KeyStore
	InFlightKey(orderNumber string) string
}

// RedisGuard takes a short SETNX lock per order number.
type RedisGuard struct {
	store inFlightStore
	ttl   time.Duration
}

// NewRedisGuard builds a guard whose locks expire after ttl.
func NewRedisGuard(store inFlightStore, ttl time.Duration) (*RedisGuard, error) {
	if store == nil {
		return nil, errors.New("redis store required for in-flight guard")
	}
	if ttl <= 0 {
		return nil, errors.New("in-flight ttl must be positive")
	}
	return &RedisGuard{store: store, ttl: ttl}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, orderNumber string) (func(context.Context) error, bool, error) {
	lock, err := redis.NewLock(g.store, g.store.InFlightKey(orderNumber), g.ttl)
	if err != nil {
		return nil, false, err
	}
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	return lock.Release, true, nil
}
