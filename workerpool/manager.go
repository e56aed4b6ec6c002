package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/langpack/config"
)

var ErrPoolNotConfigured = errors.New("worker pool is not configured")

type manager struct {
	mu             sync.Mutex
	pool           WorkerPool
	disposeTimeout time.Duration
}

// NewManager builds a worker pool from cfg; opts override the configured values.
func NewManager(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (Manager, error) {
	log := util.Log(ctx)

	poolOpts := defaultWorkerPoolOpts(cfg, log)

	for _, opt := range opts {
		opt(poolOpts)
	}

	pool, err := setupWorkerPool(ctx, poolOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	return &manager{
		pool:           pool,
		disposeTimeout: poolOpts.DisposeTimeout,
	}, nil
}

func (m *manager) GetPool() (WorkerPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil {
		return nil, ErrPoolNotConfigured
	}
	return m.pool, nil
}

// Shutdown releases the pool, waiting up to the dispose timeout for running workers.
// The wait is cut short when ctx ends first.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	pool := m.pool
	m.pool = nil
	m.mu.Unlock()

	if pool == nil {
		return nil
	}

	timeout := m.disposeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	err := pool.Shutdown(timeout)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("timeout", timeout).Warn("worker pool did not drain in time")
		return err
	}
	return nil
}

// Submit runs task on m's pool.
func Submit(ctx context.Context, m Manager, task func()) error {
	if m == nil {
		return ErrPoolNotConfigured
	}

	pool, err := m.GetPool()
	if err != nil {
		return err
	}

	return pool.Submit(ctx, task)
}
