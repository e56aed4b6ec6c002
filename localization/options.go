package localization

import (
	"context"
	"errors"
	"io"

	"github.com/pitabwire/util"

	"github.com/pitabwire/langpack/assets"
	"github.com/pitabwire/langpack/config"
	"github.com/pitabwire/langpack/events"
	"github.com/pitabwire/langpack/workerpool"
)

type options struct {
	cfg       config.ConfigurationLocalization
	pool      workerpool.Manager
	publisher events.Publisher
	closers   []io.Closer
}

// Option configures a Manager.
type Option func(*options)

// WithConfig sets where packs are looked up. When it also implements
// config.ConfigurationWorkerPool it sizes the manager's own worker pool.
func WithConfig(cfg config.ConfigurationLocalization) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithWorkerPool runs tasks on a pool owned by the caller.
func WithWorkerPool(pool workerpool.Manager) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// WithPublisher forwards every task completion to publisher. The manager closes it.
func WithPublisher(publisher events.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithCloser hands a resource to the manager to close on Close.
func WithCloser(c io.Closer) Option {
	return func(o *options) {
		o.closers = append(o.closers, c)
	}
}

type loadOptions struct {
	forceReload bool
	callback    func(Outcome)
}

// LoadOption configures a single load request.
type LoadOption func(*loadOptions)

// WithForceReload loads even when the resource is already loaded or queued.
func WithForceReload() LoadOption {
	return func(o *loadOptions) {
		o.forceReload = true
	}
}

// WithCallback is called once with the request's outcome, after contents are updated.
func WithCallback(fn func(Outcome)) LoadOption {
	return func(o *loadOptions) {
		o.callback = fn
	}
}

func newLoadOptions(opts []LoadOption) *loadOptions {
	lo := &loadOptions{}
	for _, opt := range opts {
		opt(lo)
	}
	return lo
}

// NewManagerFromConfig wires a manager from configuration: packs come from the bucket
// at the assets url, optionally through a pack cache, and completions are published
// when an events url is set.
func NewManagerFromConfig(ctx context.Context, cfg *config.ConfigurationDefault) (*Manager, error) {
	log := util.Log(ctx)

	bucket, err := assets.OpenBucket(ctx, cfg.GetAssetsURL())
	if err != nil {
		return nil, err
	}
	closers := []io.Closer{bucket}

	cleanup := func() {
		for _, c := range closers {
			util.CloseAndLogOnError(ctx, c, "could not release localization resource")
		}
	}

	var provider assets.Provider = bucket
	rawCache, err := assets.OpenCache(ctx, cfg.GetCacheURL(), cfg.GetCacheTTL())
	if err != nil {
		cleanup()
		return nil, err
	}
	if rawCache != nil {
		closers = append(closers, rawCache)
		provider = assets.NewCachedProvider(bucket, rawCache, cfg.GetCacheTTL())
		log.WithField("cache", cfg.GetCacheURL()).Debug("pack cache enabled")
	}

	opts := []Option{WithConfig(cfg)}
	for _, c := range closers {
		opts = append(opts, WithCloser(c))
	}

	var publisher *events.TopicPublisher
	if url := cfg.GetEventsURL(); url != "" {
		publisher, err = events.OpenTopicPublisher(ctx, url)
		if err != nil {
			cleanup()
			return nil, err
		}
		opts = append(opts, WithPublisher(publisher))
	}

	m, err := NewManager(ctx, provider, opts...)
	if err != nil {
		cleanup()
		if publisher != nil {
			err = errors.Join(err, publisher.Close(ctx))
		}
		return nil, err
	}
	return m, nil
}
