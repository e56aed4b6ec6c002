package jetstream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pitabwire/langpack/cache"
)

// Cache stores pack bytes in a NATS JetStream key-value bucket. The bucket TTL
// applies to every entry; per-call ttl values are ignored.
type Cache struct {
	conn   *nats.Conn
	client nats.KeyValue
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to url and creates the bucket, or binds to it when it already exists.
func New(_ context.Context, url string, bucket string, maxAge time.Duration) (*Cache, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	client, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, TTL: maxAge})
	if err != nil {
		var apiErr *nats.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode != nats.JSErrCodeStreamNameInUse {
			conn.Close()
			return nil, err
		}
		if client, err = js.KeyValue(bucket); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Cache{conn: conn, client: client}, nil
}

// KV keys may not contain '/', asset paths use '.' instead.
func kvKey(key string) string {
	return strings.ReplaceAll(key, "/", ".")
}

func (jc *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, err := jc.client.Get(kvKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (jc *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	_, err := jc.client.Put(kvKey(key), value)
	return err
}

func (jc *Cache) Delete(_ context.Context, key string) error {
	err := jc.client.Delete(kvKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (jc *Cache) Flush(_ context.Context) error {
	keys, err := jc.client.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}
	for _, key := range keys {
		if err = jc.client.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (jc *Cache) Close() error {
	jc.conn.Close()
	return nil
}
