package store

import (
	"context"
	"errors"
)

// ErrMissing is returned by Get when the key does not exist.
var ErrMissing = errors.New("key not found")

// KV is the small key-value surface the profile store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Del(ctx context.Context, keys ...string) error
}
