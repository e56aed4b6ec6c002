// Package cache stores raw pack bytes keyed by asset path.
package cache

import (
	"context"
	"time"
)

// RawCache is a byte-oriented cache. A zero or negative ttl means the backend default.
type RawCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Close() error
}
