package localization

import (
	"context"
	"fmt"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/langpack/pack"
	"github.com/pitabwire/langpack/telemetry"
	"github.com/pitabwire/langpack/workerpool"
)

// invalidator is implemented by providers that keep their own copy of the bytes.
type invalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// load reads the task's resource into its private fields.
func (m *Manager) load(ctx context.Context, t *task) error {
	if t.canceled.Load() {
		return context.Canceled
	}

	if t.forceReload {
		if inv, ok := m.provider.(invalidator); ok {
			if err := inv.Invalidate(ctx, t.path); err != nil {
				util.Log(ctx).WithError(err).WithField("path", t.path).Warn("could not invalidate cached pack")
			}
		}
	}

	r, err := m.provider.Open(ctx, t.path)
	if err != nil {
		return err
	}
	defer util.CloseAndLogOnError(ctx, r, "could not close pack stream")

	switch t.kind {
	case KindMeta:
		t.meta, err = pack.ReadMeta(ctx, r)
	case KindLanguage:
		t.texts, err = pack.ReadTexts(ctx, r)
	default:
		err = fmt.Errorf("localization: %s tasks do not load", t.kind)
	}
	return err
}

// complete runs on the dispatch goroutine once t is done.
func (m *Manager) complete(t *task) {
	ctx := t.ctx
	err := t.err

	before := m.state()
	after := before

	outcome := t.outcome()
	if outcome == Success {
		var next *snapshot
		next, err = m.commit(before, t)
		switch {
		case err != nil:
			outcome = Failure
			util.Log(ctx).
				WithError(err).
				WithField("task", t.id).
				WithField("detail", t.detail()).
				Warn("localization task could not commit")
		case next != nil:
			m.current.Store(next)
			after = next
		}
	}

	if t.loads() {
		m.reportCompleted(ctx, t, outcome, err)
	}

	if after != before && (after.publicIndex() != before.publicIndex() || t.kind == KindLanguage) {
		m.notifyLanguageChange(LanguageChange{Old: before.publicIndex(), New: after.publicIndex()})
	}

	if t.callback != nil {
		m.safely(ctx, "completion callback", func() { t.callback(outcome) })
	}
}

// commit returns the snapshot t publishes, or nil when t changes nothing.
func (m *Manager) commit(current *snapshot, t *task) (*snapshot, error) {
	next := &snapshot{version: current.version + 1}

	switch t.kind {
	case KindMeta:
		next.meta = t.meta
		next.index = indexMetaLoaded

	case KindLanguage:
		if !current.metaLoaded() {
			return nil, ErrNotLoaded
		}
		index := current.meta.LanguageIndex(t.languageType)
		if index < 0 {
			return nil, fmt.Errorf("%w: %q", ErrLanguageNotFound, t.languageType)
		}
		if len(t.texts) != len(current.meta.TextNames) {
			return nil, fmt.Errorf("%w: %q has %d texts, meta names %d",
				ErrPackMismatch, t.languageType, len(t.texts), len(current.meta.TextNames))
		}
		next.meta = current.meta
		next.index = index
		next.texts = t.texts

	case kindUnload:
		if !current.languageLoaded() {
			return nil, nil //nolint:nilnil // nothing to unload
		}
		next.meta = current.meta
		next.index = indexMetaLoaded

	case kindReset:
		if !current.metaLoaded() {
			return nil, nil //nolint:nilnil // already unloaded
		}
		next.index = indexUnloaded
	}

	return next, nil
}

func (m *Manager) reportCompleted(ctx context.Context, t *task, outcome Outcome, err error) {
	event := TaskCompleted{
		ID:      t.id,
		Kind:    t.kind,
		Outcome: outcome,
		Detail:  t.detail(),
		Err:     err,
	}
	if err != nil && outcome == Failure {
		event.Error = err.Error()
	}

	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrKindKey.String(t.kind.String()),
		telemetry.AttrOutcomeKey.String(outcome.String()),
	))

	m.safely(ctx, "task completed listener", func() { m.taskCompleted.Emit(event) })

	if m.publisher == nil {
		return
	}
	pctx := context.WithoutCancel(ctx)
	submitErr := workerpool.Submit(pctx, m.pool, func() {
		if pubErr := m.publisher.Publish(pctx, TaskCompletedEvent, event); pubErr != nil {
			util.Log(pctx).WithError(pubErr).WithField("task", t.id).Warn("could not publish task completion")
		}
	})
	if submitErr != nil {
		util.Log(pctx).WithError(submitErr).WithField("task", t.id).Warn("could not schedule task completion publish")
	}
}

// safely runs fn, logging instead of propagating a panic so one bad listener cannot
// stop the dispatch goroutine.
func (m *Manager) safely(ctx context.Context, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			util.Log(ctx).WithField("panic", r).WithField("listener", what).Error("localization listener panicked")
		}
	}()
	fn()
}
