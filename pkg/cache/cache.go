package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Entry is one key write with its own TTL, for batched publishes where
// different keys carry different expirations.
type Entry struct {
	Key   string
	Value interface{}
	TTL   time.Duration
}

// Service defines cache operations interface.
type Service interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetEntries(ctx context.Context, entries []Entry) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}
