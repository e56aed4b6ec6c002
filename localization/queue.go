package localization

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/util"

	"github.com/pitabwire/langpack/workerpool"
)

var errTaskPanicked = errors.New("localization: task panicked")

// enqueue appends t and settles it against the tasks already queued. It never blocks
// on I/O; a task that survives is handed to the worker pool. Once the manager is
// closed t is rejected and "" is returned. closing marks the manager closed in the
// same critical section that queues t, so nothing can be queued behind it.
func (m *Manager) enqueue(t *task, closing bool) string {
	m.mu.Lock()

	if m.closed.Load() {
		m.mu.Unlock()
		t.cancel()
		return m.rejectClosed(t.ctx, t.callback)
	}
	if closing {
		m.closed.Store(true)
	}

	if len(m.tasks) == 0 {
		m.idle = make(chan struct{})
	}
	m.tasks = append(m.tasks, t)

	var run bool
	if t.loads() && t.ctx.Err() != nil {
		// the caller gave up before queueing; settle as canceled without superseding anyone
		t.abort()
	} else {
		run = m.beforeEnqueue(t)
	}

	m.mu.Unlock()

	log := util.Log(t.ctx).
		WithField("task", t.id).
		WithField("kind", t.kind.String()).
		WithField("detail", t.detail())

	if !run {
		log.Debug("task settled without loading")
		t.finish(nil)
		m.signal()
		return t.id
	}

	err := workerpool.Submit(t.ctx, m.pool, func() { m.process(t) })
	if err != nil {
		log.WithError(err).Error("could not schedule task")
		t.finish(fmt.Errorf("localization: schedule task: %w", err))
		m.signal()
	}
	return t.id
}

// beforeEnqueue runs under m.mu. It reports whether t still has loading to do: a
// redundant request cancels itself, a winning request cancels the tasks it supersedes.
func (m *Manager) beforeEnqueue(t *task) bool {
	switch t.kind {
	case KindMeta:
		if !t.forceReload && m.metaPending(t) {
			t.abort()
			return false
		}
		m.cancelOthers(t, func(o *task) bool { return o.loads() })
		return true

	case KindLanguage:
		if !t.forceReload && m.languagePending(t) {
			t.abort()
			return false
		}
		m.cancelOthers(t, func(o *task) bool { return o.kind == KindLanguage })
		return true

	case kindUnload:
		m.cancelOthers(t, func(o *task) bool { return o.kind == KindLanguage })
		return false

	default:
		m.cancelOthers(t, func(o *task) bool { return o.loads() })
		return false
	}
}

// metaPending reports whether meta is loaded, or will be once the queue drains.
func (m *Manager) metaPending(t *task) bool {
	loaded := m.state().metaLoaded()

	for _, o := range m.pendingEffects(t) {
		switch o.kind {
		case KindMeta:
			loaded = true
		case kindReset:
			loaded = false
		}
	}
	return loaded
}

// languagePending reports whether t's language is active, or will be once the queue
// drains. Queued tasks are replayed on top of the committed state in enqueue order,
// which is the order they commit in.
func (m *Manager) languagePending(t *task) bool {
	projected := m.state().languageType()

	for _, o := range m.pendingEffects(t) {
		switch o.kind {
		case KindLanguage:
			projected = o.languageType
		case KindMeta, kindUnload, kindReset:
			projected = ""
		}
	}
	return projected == t.languageType
}

// pendingEffects lists the queued tasks other than t that may still change the state:
// the live ones that have succeeded or are still loading. Tasks known to have failed
// are left out since they will not commit.
func (m *Manager) pendingEffects(t *task) []*task {
	effects := make([]*task, 0, len(m.tasks))
	for _, o := range m.tasks {
		if o == t || !o.live() {
			continue
		}
		if o.done.Load() && !o.succeeded.Load() {
			continue
		}
		effects = append(effects, o)
	}
	return effects
}

func (m *Manager) cancelOthers(t *task, match func(o *task) bool) {
	for _, o := range m.tasks {
		if o == t || !o.live() || !match(o) {
			continue
		}
		o.abort()
	}
}

// process runs on a pool worker.
func (m *Manager) process(t *task) {
	ctx, span := m.tracer.Start(t.ctx, "process."+t.kind.String())

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errTaskPanicked, r)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			util.Log(ctx).
				WithError(err).
				WithField("task", t.id).
				WithField("detail", t.detail()).
				Error("localization task failed")
		}
		m.tracer.End(ctx, span, err)
		t.finish(err)
		m.signal()
	}()

	err = m.load(ctx, t)
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch is the only goroutine that commits tasks or notifies listeners.
func (m *Manager) dispatch() {
	defer close(m.stopped)

	for {
		select {
		case <-m.stop:
			return
		case <-m.wake:
		}
		m.drain()
	}
}

// drain completes finished tasks from the head of the queue in enqueue order.
func (m *Manager) drain() {
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return
		}
		head := m.tasks[0]
		m.mu.Unlock()

		if !head.done.Load() {
			return
		}

		m.complete(head)

		m.mu.Lock()
		m.tasks[0] = nil
		m.tasks = m.tasks[1:]
		if len(m.tasks) == 0 {
			close(m.idle)
		}
		m.mu.Unlock()
	}
}

// Wait blocks until every queued task has completed and its notifications have run.
// It must not be called from a callback or listener.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLoading reports whether any task is queued or completing.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks) > 0
}
