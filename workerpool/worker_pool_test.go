package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/langpack/config"
	"github.com/pitabwire/langpack/workerpool"
)

type WorkerPoolSuite struct {
	suite.Suite
}

func TestWorkerPoolSuite(t *testing.T) {
	suite.Run(t, new(WorkerPoolSuite))
}

func (s *WorkerPoolSuite) config() *config.ConfigurationDefault {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)
	return &cfg
}

func (s *WorkerPoolSuite) TestSubmitRunsTasks() {
	testCases := []struct {
		name  string
		count int
	}{
		{name: "single pool", count: 1},
		{name: "multi pool", count: 3},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ctx := context.Background()

			m, err := workerpool.NewManager(ctx, s.config(), workerpool.WithPoolCount(tc.count))
			s.Require().NoError(err)

			var ran atomic.Int32
			var wg sync.WaitGroup
			for range 10 {
				wg.Add(1)
				s.Require().NoError(workerpool.Submit(ctx, m, func() {
					defer wg.Done()
					ran.Add(1)
				}))
			}
			wg.Wait()
			s.Equal(int32(10), ran.Load())

			s.Require().NoError(m.Shutdown(ctx))
			s.ErrorIs(workerpool.Submit(ctx, m, func() {}), workerpool.ErrPoolNotConfigured)
			s.NoError(m.Shutdown(ctx))
		})
	}
}

func (s *WorkerPoolSuite) TestSubmitWithCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := workerpool.NewManager(context.Background(), s.config())
	s.Require().NoError(err)
	defer func() { _ = m.Shutdown(context.Background()) }()

	s.ErrorIs(workerpool.Submit(ctx, m, func() {}), context.Canceled)
	s.ErrorIs(workerpool.Submit(ctx, nil, func() {}), workerpool.ErrPoolNotConfigured)
}

func (s *WorkerPoolSuite) TestPanicIsRecovered() {
	ctx := context.Background()

	recovered := make(chan any, 1)
	m, err := workerpool.NewManager(ctx, s.config(), workerpool.WithPoolPanicHandler(func(p any) {
		recovered <- p
	}))
	s.Require().NoError(err)
	defer func() { _ = m.Shutdown(ctx) }()

	s.Require().NoError(workerpool.Submit(ctx, m, func() { panic("boom") }))

	select {
	case p := <-recovered:
		s.Equal("boom", p)
	case <-time.After(5 * time.Second):
		s.FailNow("panic handler was not called")
	}
}

func (s *WorkerPoolSuite) TestShutdownWaitsForRunningWorkers() {
	ctx := context.Background()

	m, err := workerpool.NewManager(ctx, s.config(), workerpool.WithPoolDisposeTimeout(5*time.Second))
	s.Require().NoError(err)

	var finished atomic.Bool
	started := make(chan struct{})
	s.Require().NoError(workerpool.Submit(ctx, m, func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))
	<-started

	s.Require().NoError(m.Shutdown(ctx))
	s.True(finished.Load())
}

func (s *WorkerPoolSuite) TestNonblockingPoolRejectsWhenFull() {
	ctx := context.Background()

	m, err := workerpool.NewManager(ctx, s.config(),
		workerpool.WithSinglePoolCapacity(1),
		workerpool.WithPoolNonblocking(true),
		workerpool.WithPoolExpiryDuration(time.Second),
	)
	s.Require().NoError(err)
	defer func() { _ = m.Shutdown(ctx) }()

	release := make(chan struct{})
	started := make(chan struct{})
	s.Require().NoError(workerpool.Submit(ctx, m, func() {
		close(started)
		<-release
	}))
	<-started

	pool, err := m.GetPool()
	s.Require().NoError(err)
	s.Equal(1, pool.Running())

	s.ErrorIs(workerpool.Submit(ctx, m, func() {}), ants.ErrPoolOverload)
	close(release)
}
