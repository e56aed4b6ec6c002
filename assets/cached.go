package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/langpack/cache"
	cachejetstream "github.com/pitabwire/langpack/cache/jetstream"
	cacheredis "github.com/pitabwire/langpack/cache/redis"
	cachevalkey "github.com/pitabwire/langpack/cache/valkey"
)

// CachedProvider keeps the raw bytes of every opened object in a cache so a
// forced reload or a switch back to an earlier language skips the origin.
type CachedProvider struct {
	next  Provider
	cache cache.RawCache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, c cache.RawCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	log := util.Log(ctx).WithField("path", path)

	data, found, err := p.cache.Get(ctx, path)
	if err != nil {
		log.WithError(err).Warn("pack cache read failed, using origin")
	}
	if found {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	r, err := p.next.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer util.CloseAndLogOnError(ctx, r)

	data, err = io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if err = p.cache.Set(ctx, path, data, p.ttl); err != nil {
		log.WithError(err).Warn("pack cache write failed")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Invalidate drops a cached object, e.g. before a forced reload of a rebuilt pack.
func (p *CachedProvider) Invalidate(ctx context.Context, path string) error {
	return p.cache.Delete(ctx, path)
}

const (
	cacheKeyPrefix  = "langpack:"
	cacheNatsBucket = "langpack"
)

// ErrUnsupportedCache is returned by OpenCache for an unknown URL scheme.
var ErrUnsupportedCache = errors.New("assets: unsupported cache url")

// OpenCache builds a pack cache from a URL: mem://, redis://, rediss://, valkey:// or
// nats:// (JetStream key-value, bucket taken from the path). An empty url returns nil.
func OpenCache(ctx context.Context, rawURL string, ttl time.Duration) (cache.RawCache, error) {
	if rawURL == "" {
		return nil, nil //nolint:nilnil // no cache configured
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedCache, err)
	}

	var c cache.RawCache
	switch u.Scheme {
	case "mem":
		c = cache.NewInMemoryCache()
	case "redis", "rediss":
		c, err = openRedis(ctx, rawURL)
	case "valkey":
		c, err = openValkey(ctx, rawURL, ttl)
	case "nats":
		bucket := strings.Trim(u.Path, "/")
		if bucket == "" {
			bucket = cacheNatsBucket
		}
		u.Path = ""
		c, err = openJetstream(ctx, u.String(), bucket, ttl)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedCache, u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openRedis(ctx context.Context, rawURL string) (cache.RawCache, error) {
	c, err := cacheredis.New(ctx, rawURL, cacheKeyPrefix)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openValkey(ctx context.Context, rawURL string, ttl time.Duration) (cache.RawCache, error) {
	c, err := cachevalkey.New(ctx, rawURL, cacheKeyPrefix, ttl)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openJetstream(ctx context.Context, rawURL, bucket string, ttl time.Duration) (cache.RawCache, error) {
	c, err := cachejetstream.New(ctx, rawURL, bucket, ttl)
	if err != nil {
		return nil, err
	}
	return c, nil
}
