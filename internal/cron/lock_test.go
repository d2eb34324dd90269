package cron

import (
	"context"
	"testing"
	"time"

	"github.com/orderdesk/orderdesk-backend/pkg/redis"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) LockKey(name string) string { return redis.BuildKey("lock", name) }

func TestRedisLockUsesNamespacedKey(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "cron", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, "cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok := store.values["od:lock:cron"]; !ok {
		t.Fatalf("expected od:lock:cron to be set, got %v", store.values)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second acquire must fail while held")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("second acquire must succeed after release")
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "cron", time.Minute); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewRedisLock(&memoryStore{values: map[string]string{}}, "", time.Minute); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to fail")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}
