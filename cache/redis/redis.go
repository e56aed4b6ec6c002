package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/langpack/cache"
)

const connectionTimeout = 5 * time.Second

// Cache stores pack bytes in Redis.
type Cache struct {
	client *redis.Client
	prefix string
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to the redis:// or rediss:// URL and verifies the connection.
// Keys are namespaced with prefix so Flush only drops this cache's entries.
func New(ctx context.Context, url string, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Cache{client: client, prefix: prefix}, nil
}

func (rc *Cache) key(k string) string {
	return rc.prefix + k
}

func (rc *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (rc *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return rc.client.Set(ctx, rc.key(key), value, ttl).Err()
}

func (rc *Cache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

// Flush removes every key under the prefix.
func (rc *Cache) Flush(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (rc *Cache) Close() error {
	return rc.client.Close()
}
