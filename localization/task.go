package localization

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/pitabwire/langpack/pack"
)

// Kind tells what a task loads.
type Kind int

const (
	KindMeta Kind = iota
	KindLanguage

	// internal transitions routed through the queue
	kindUnload
	kindReset
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindLanguage:
		return "language"
	case kindUnload:
		return "unload"
	case kindReset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "meta":
		*k = KindMeta
	case "language":
		*k = KindLanguage
	default:
		return fmt.Errorf("unknown task kind %q", text)
	}
	return nil
}

// Outcome is reported exactly once for every load request.
type Outcome int

const (
	Success Outcome = iota
	Cancel
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Cancel:
		return "cancel"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*o = Success
	case "cancel":
		*o = Cancel
	case "failure":
		*o = Failure
	default:
		return fmt.Errorf("unknown task outcome %q", text)
	}
	return nil
}

// TaskCompleted describes a finished load. Detail is the meta path for meta loads
// and the language type for language loads.
type TaskCompleted struct {
	ID      string  `json:"id"`
	Kind    Kind    `json:"kind"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
	Error   string  `json:"error,omitempty"`

	Err error `json:"-"`
}

// LanguageChange carries the public language index before and after a commit.
type LanguageChange struct {
	Old int
	New int
}

type task struct {
	id           string
	kind         Kind
	languageType string
	path         string
	forceReload  bool
	callback     func(Outcome)

	ctx    context.Context
	cancel context.CancelFunc

	canceled  atomic.Bool
	succeeded atomic.Bool
	done      atomic.Bool

	// written by process before done is set
	meta  *pack.Meta
	texts pack.Texts
	err   error
}

func newTask(ctx context.Context, kind Kind, languageType, path string, lo *loadOptions) *task {
	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		id:           xid.New().String(),
		kind:         kind,
		languageType: languageType,
		path:         path,
		ctx:          tctx,
		cancel:       cancel,
	}
	if lo != nil {
		t.forceReload = lo.forceReload
		t.callback = lo.callback
	}
	return t
}

func (t *task) detail() string {
	if t.kind == KindLanguage {
		return t.languageType
	}
	return t.path
}

func (t *task) loads() bool {
	return t.kind == KindMeta || t.kind == KindLanguage
}

func (t *task) live() bool {
	return !t.canceled.Load()
}

// abort marks the task canceled and interrupts any I/O it is doing.
func (t *task) abort() {
	t.canceled.Store(true)
	t.cancel()
}

// finish records the result of process. Nothing touches the task's private fields
// from the worker after this.
func (t *task) finish(err error) {
	t.err = err
	if err == nil && !t.canceled.Load() {
		t.succeeded.Store(true)
	}
	t.done.Store(true)
	t.cancel()
}

// outcome classifies a finished task before commit; a commit error can still turn
// Success into Failure.
func (t *task) outcome() Outcome {
	switch {
	case t.canceled.Load():
		return Cancel
	case errors.Is(t.err, context.Canceled):
		return Cancel
	case t.succeeded.Load():
		return Success
	default:
		return Failure
	}
}
