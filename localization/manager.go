// Package localization loads language packs in the background and publishes them as
// an immutable snapshot.
//
// Load requests go through a queue that drops redundant requests and cancels the ones
// a newer request supersedes. Finished tasks are committed one at a time, in the
// order they were requested, by a single dispatch goroutine; that goroutine is also
// the only one that notifies listeners and registered contents. Queries can be made
// from any goroutine and always observe a whole snapshot.
package localization

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/language"

	"github.com/pitabwire/langpack/assets"
	"github.com/pitabwire/langpack/config"
	"github.com/pitabwire/langpack/events"
	"github.com/pitabwire/langpack/registry"
	"github.com/pitabwire/langpack/telemetry"
	"github.com/pitabwire/langpack/workerpool"
)

var (
	ErrNotLoaded        = errors.New("localization: meta is not loaded")
	ErrLanguageNotFound = errors.New("localization: language not found")
	ErrPackMismatch     = errors.New("localization: language pack does not match meta")
	ErrClosed           = errors.New("localization: manager is closed")
)

// TaskCompletedEvent names task completions sent to the events publisher.
const TaskCompletedEvent = "localization.task.completed"

const instrumentationName = "langpack/localization"

// Manager owns the loaded localization state.
type Manager struct {
	ctx      context.Context
	cfg      config.ConfigurationLocalization
	provider assets.Provider

	pool      workerpool.Manager
	ownPool   bool
	publisher events.Publisher
	closers   []io.Closer

	tracer   telemetry.Tracer
	outcomes metric.Int64Counter

	current atomic.Pointer[snapshot]

	mu    sync.Mutex
	tasks []*task
	idle  chan struct{}

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool

	contents             *registry.Registry[*trackedContent]
	taskCompleted        *events.Emitter[TaskCompleted]
	languageChanged      *events.Emitter[LanguageChange]
	languageChangedLate  *events.Emitter[LanguageChange]
	beforeContentsChange *events.Emitter[struct{}]
	afterContentsChange  *events.Emitter[struct{}]
}

// NewManager creates a manager reading packs from provider and starts its dispatch
// goroutine. Close must be called to release it.
func NewManager(ctx context.Context, provider assets.Provider, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("localization: provider is required")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.cfg == nil {
		cfg, err := config.FromEnv[config.ConfigurationDefault]()
		if err != nil {
			return nil, fmt.Errorf("localization: load configuration: %w", err)
		}
		o.cfg = &cfg
	}

	m := &Manager{
		ctx:       context.WithoutCancel(ctx),
		cfg:       o.cfg,
		provider:  provider,
		pool:      o.pool,
		publisher: o.publisher,
		closers:   o.closers,

		tracer: telemetry.NewTracer(instrumentationName),
		outcomes: telemetry.DimensionlessMeasure(instrumentationName, telemetry.TaskCountSuffix,
			"Count of localization tasks by kind and outcome."),

		idle:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),

		contents:             registry.New[*trackedContent](64),
		taskCompleted:        events.NewEmitter[TaskCompleted](),
		languageChanged:      events.NewEmitter[LanguageChange](),
		languageChangedLate:  events.NewEmitter[LanguageChange](),
		beforeContentsChange: events.NewEmitter[struct{}](),
		afterContentsChange:  events.NewEmitter[struct{}](),
	}
	close(m.idle)
	m.current.Store(unloadedSnapshot())

	if m.pool == nil {
		poolCfg, ok := o.cfg.(config.ConfigurationWorkerPool)
		if !ok {
			return nil, errors.New("localization: configuration has no worker pool settings")
		}
		pool, err := workerpool.NewManager(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		m.pool = pool
		m.ownPool = true
	}

	go m.dispatch()

	return m, nil
}

func (m *Manager) state() *snapshot {
	return m.current.Load()
}

// LoadMetaAsync queues a meta load and returns the task id. Unless forced, the
// request is canceled when meta is already loaded or being loaded.
func (m *Manager) LoadMetaAsync(ctx context.Context, opts ...LoadOption) string {
	return m.enqueue(newTask(ctx, KindMeta, "", m.cfg.GetMetaPath(), newLoadOptions(opts)), false)
}

// LoadLanguageAsync queues a load of the pack for languageType and returns the task
// id. Unless forced, the request is canceled when that language is already active
// or about to be.
func (m *Manager) LoadLanguageAsync(ctx context.Context, languageType string, opts ...LoadOption) string {
	lo := newLoadOptions(opts)
	return m.enqueue(newTask(ctx, KindLanguage, languageType, m.cfg.GetLanguagePath(languageType), lo), false)
}

// LoadLanguageIndexAsync is LoadLanguageAsync for the language at index in the
// loaded meta.
func (m *Manager) LoadLanguageIndexAsync(ctx context.Context, index int, opts ...LoadOption) (string, error) {
	languageType, ok := m.GetLanguageType(index)
	if !ok {
		if !m.IsMetaLoaded() {
			return "", ErrNotLoaded
		}
		return "", fmt.Errorf("%w: index %d", ErrLanguageNotFound, index)
	}
	return m.LoadLanguageAsync(ctx, languageType, opts...), nil
}

func (m *Manager) rejectClosed(ctx context.Context, callback func(Outcome)) string {
	util.Log(ctx).WithError(ErrClosed).Warn("request made after close")
	if callback != nil {
		m.safely(ctx, "completion callback", func() { callback(Failure) })
	}
	return ""
}

// UnloadLanguage cancels queued language loads and drops the active pack, returning
// to the meta-loaded state. The change is applied by the dispatch goroutine; use
// Wait to observe it.
func (m *Manager) UnloadLanguage(ctx context.Context) {
	m.enqueue(newTask(ctx, kindUnload, "", "", nil), false)
}

// Quit cancels every queued task, waits for the queue to drain and resets to the
// unloaded state. It must not be called from a callback or listener.
func (m *Manager) Quit(ctx context.Context) error {
	if m.enqueue(newTask(ctx, kindReset, "", "", nil), false) == "" {
		return ErrClosed
	}
	return m.Wait(ctx)
}

// Close quits, stops the dispatch goroutine and releases the worker pool and any
// resources the manager was given to own.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error

	m.closeOnce.Do(func() {
		m.enqueue(newTask(ctx, kindReset, "", "", nil), true)
		if err := m.Wait(ctx); err != nil {
			errs = append(errs, err)
		}

		close(m.stop)
		<-m.stopped

		if m.publisher != nil {
			if err := m.publisher.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if m.ownPool {
			if err := m.pool.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		for _, c := range m.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}

// LanguageType is the active language type, empty when none is loaded.
func (m *Manager) LanguageType() string {
	return m.state().languageType()
}

// LanguageIndex is the active language index, -1 when none is loaded.
func (m *Manager) LanguageIndex() int {
	return m.state().publicIndex()
}

// LanguageCount is the number of languages in the meta, 0 before meta is loaded.
func (m *Manager) LanguageCount() int {
	return m.state().languageCount()
}

func (m *Manager) IsMetaLoaded() bool {
	return m.state().metaLoaded()
}

func (m *Manager) IsLanguageLoaded() bool {
	return m.state().languageLoaded()
}

func (m *Manager) GetLanguageType(index int) (string, bool) {
	s := m.state()
	if index < 0 || index >= s.languageCount() {
		return "", false
	}
	return s.meta.Languages[index].Type, true
}

// GetLanguageIndex returns -1 for an unknown type or when meta is not loaded.
func (m *Manager) GetLanguageIndex(languageType string) int {
	s := m.state()
	if !s.metaLoaded() {
		return -1
	}
	return s.meta.LanguageIndex(languageType)
}

func (m *Manager) GetLanguageAttribute(index int, name string) (string, bool) {
	s := m.state()
	if !s.metaLoaded() {
		return "", false
	}
	return s.meta.Attribute(index, name)
}

func (m *Manager) GetLanguageAttributeByType(languageType, name string) (string, bool) {
	s := m.state()
	if !s.metaLoaded() {
		return "", false
	}
	return s.meta.Attribute(s.meta.LanguageIndex(languageType), name)
}

// GetText returns the active language's text for name.
func (m *Manager) GetText(name string) (string, bool) {
	return m.state().text(name)
}

// TextNames lists the text names of the loaded meta in pack order.
func (m *Manager) TextNames() []string {
	s := m.state()
	if !s.metaLoaded() {
		return nil
	}
	return slices.Clone(s.meta.TextNames)
}

// HasText reports whether the meta defines a text called name.
func (m *Manager) HasText(name string) bool {
	s := m.state()
	return s.metaLoaded() && s.meta.TextIndex(name) >= 0
}

// FormatText renders the active language's text for name as a template with data.
func (m *Manager) FormatText(ctx context.Context, name string, data map[string]any) (string, bool) {
	s := m.state()
	if _, ok := s.text(name); !ok {
		return "", false
	}

	bundle, tag := s.i18n()
	out, err := i18n.NewLocalizer(bundle, tag.String()).Localize(&i18n.LocalizeConfig{
		MessageID:    name,
		TemplateData: data,
	})
	if err != nil {
		util.Log(ctx).WithError(err).WithField("text", name).Warn("could not format text")
		return "", false
	}
	return out, true
}

// LanguageTag parses the active language type as a BCP 47 tag.
func (m *Manager) LanguageTag() (language.Tag, bool) {
	s := m.state()
	if !s.languageLoaded() {
		return language.Und, false
	}
	s.i18n()
	return s.tag, s.tag != language.Und
}

// UsedCharacters lists every character the active language can display, sorted and
// without duplicates. Useful for building font atlases.
func (m *Manager) UsedCharacters() string {
	return m.state().usedCharacters()
}

// OnTaskCompleted subscribes to load completions. Listeners run on the dispatch goroutine.
func (m *Manager) OnTaskCompleted(fn func(TaskCompleted)) registry.Handle {
	return m.taskCompleted.Subscribe(fn)
}

// OnLanguageChanged is notified before contents are updated.
func (m *Manager) OnLanguageChanged(fn func(LanguageChange)) registry.Handle {
	return m.languageChanged.Subscribe(fn)
}

// OnLanguageChangedLate is notified after contents are updated.
func (m *Manager) OnLanguageChangedLate(fn func(LanguageChange)) registry.Handle {
	return m.languageChangedLate.Subscribe(fn)
}

func (m *Manager) OnBeforeContentsChange(fn func()) registry.Handle {
	return m.beforeContentsChange.Subscribe(func(struct{}) { fn() })
}

func (m *Manager) OnAfterContentsChange(fn func()) registry.Handle {
	return m.afterContentsChange.Subscribe(func(struct{}) { fn() })
}

// RemoveListener unsubscribes a listener added with any of the On methods.
func (m *Manager) RemoveListener(h registry.Handle) bool {
	return m.taskCompleted.Unsubscribe(h) ||
		m.languageChanged.Unsubscribe(h) ||
		m.languageChangedLate.Unsubscribe(h) ||
		m.beforeContentsChange.Unsubscribe(h) ||
		m.afterContentsChange.Unsubscribe(h)
}
