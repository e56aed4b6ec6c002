package localization_test

import (
	"context"
	"io"
	"sync"

	"github.com/pitabwire/langpack/assets"
	"github.com/pitabwire/langpack/localization"
)

// gatedProvider counts opens and can hold every read until the gate is released.
type gatedProvider struct {
	next assets.Provider

	mu    sync.Mutex
	opens map[string]int
	reads map[string]int
	gate  chan struct{}
}

func newGatedProvider(next assets.Provider) *gatedProvider {
	return &gatedProvider{
		next:  next,
		opens: map[string]int{},
		reads: map[string]int{},
	}
}

func (p *gatedProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	p.mu.Lock()
	p.opens[path]++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r, err := p.next.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.reads[path]++
	p.mu.Unlock()
	return r, nil
}

func (p *gatedProvider) hold() func() {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.gate = nil
		p.mu.Unlock()
		close(gate)
	}
}

func (p *gatedProvider) readCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[path]
}

func (p *gatedProvider) totalReads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.reads {
		total += n
	}
	return total
}

// recordingContent remembers every index pushed to it.
type recordingContent struct {
	mu    sync.Mutex
	index int
	calls []int
	onSet func(index int)
}

func newRecordingContent() *recordingContent {
	return &recordingContent{index: -1}
}

func (c *recordingContent) LanguageIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *recordingContent) SetLanguageIndex(index int) {
	c.mu.Lock()
	c.index = index
	c.calls = append(c.calls, index)
	onSet := c.onSet
	c.mu.Unlock()

	if onSet != nil {
		onSet(index)
	}
}

func (c *recordingContent) pushes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.calls...)
}

func (c *recordingContent) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// outcomes collects callback results in the order they arrive.
type outcomes struct {
	mu  sync.Mutex
	got map[string]localization.Outcome
	seq []string
}

func newOutcomes() *outcomes {
	return &outcomes{got: map[string]localization.Outcome{}}
}

func (o *outcomes) record(name string) localization.LoadOption {
	return localization.WithCallback(func(v localization.Outcome) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.got[name] = v
		o.seq = append(o.seq, name)
	})
}

func (o *outcomes) of(name string) (localization.Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.got[name]
	return v, ok
}

func (o *outcomes) order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seq...)
}
