package valkey

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/langpack/cache"
)

const connectionTimeout = 5 * time.Second

// Cache stores pack bytes in Valkey using the official client.
type Cache struct {
	client valkey.Client
	prefix string
	maxAge time.Duration
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to a valkey:// (or redis://) URL. maxAge applies when Set gets no ttl.
func New(ctx context.Context, url string, prefix string, maxAge time.Duration) (*Cache, error) {
	if rest, ok := strings.CutPrefix(url, "valkey://"); ok {
		url = "redis://" + rest
	}

	opts, err := valkey.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if pingErr := client.Do(pingCtx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, pingErr
	}

	return &Cache{client: client, prefix: prefix, maxAge: maxAge}, nil
}

func (vc *Cache) key(k string) string {
	return vc.prefix + k
}

func (vc *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := vc.client.Do(ctx, vc.client.B().Get().Key(vc.key(key)).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	val, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (vc *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = vc.maxAge
	}

	set := vc.client.B().Set().Key(vc.key(key)).Value(valkey.BinaryString(value))
	if ttl <= 0 {
		return vc.client.Do(ctx, set.Build()).Error()
	}

	// EX takes whole seconds
	seconds := max(int64(ttl.Seconds()), 1)
	return vc.client.Do(ctx, set.ExSeconds(seconds).Build()).Error()
}

func (vc *Cache) Delete(ctx context.Context, key string) error {
	return vc.client.Do(ctx, vc.client.B().Del().Key(vc.key(key)).Build()).Error()
}

// Flush removes every key under the prefix.
func (vc *Cache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		resp := vc.client.Do(ctx, vc.client.B().Scan().Cursor(cursor).Match(vc.prefix+"*").Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return err
		}
		for _, k := range entry.Elements {
			if err = vc.client.Do(ctx, vc.client.B().Del().Key(k).Build()).Error(); err != nil {
				return err
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}

func (vc *Cache) Close() error {
	vc.client.Close()
	return nil
}
