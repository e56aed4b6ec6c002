package localization

import (
	"sync"

	"github.com/pitabwire/langpack/registry"
)

// Content is kept in sync with the active language index. SetLanguageIndex is called
// with -1 when no language is loaded.
type Content interface {
	LanguageIndex() int
	SetLanguageIndex(index int)
}

// trackedContent orders pushes to one content by snapshot version, so a push racing
// with a commit can never leave the content on an older index.
type trackedContent struct {
	mu      sync.Mutex
	content Content
	version uint64
	pushed  bool
}

func (c *trackedContent) push(version uint64, index int, force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pushed && version < c.version {
		return
	}
	c.pushed = true
	c.version = version

	if force || c.content.LanguageIndex() != index {
		c.content.SetLanguageIndex(index)
	}
}

// AddContent registers c and brings it to the current language index. The returned
// handle removes it again.
func (m *Manager) AddContent(c Content) registry.Handle {
	tracked := &trackedContent{content: c}
	h := m.contents.Add(tracked)

	current := m.state()
	tracked.push(current.version, current.publicIndex(), false)
	return h
}

// RemoveContent unregisters a content. It is safe to call from SetLanguageIndex.
func (m *Manager) RemoveContent(h registry.Handle) bool {
	return m.contents.Remove(h)
}

// ContentCount reports how many contents are registered.
func (m *Manager) ContentCount() int {
	return m.contents.Len()
}

// notifyLanguageChange runs on the dispatch goroutine after a commit.
func (m *Manager) notifyLanguageChange(change LanguageChange) {
	ctx := m.ctx
	current := m.state()

	m.safely(ctx, "language changed listener", func() { m.languageChanged.Emit(change) })
	m.safely(ctx, "before contents change listener", func() { m.beforeContentsChange.Emit(struct{}{}) })

	m.contents.Each(func(c *trackedContent) {
		m.safely(ctx, "content", func() { c.push(current.version, current.publicIndex(), true) })
	})

	m.safely(ctx, "after contents change listener", func() { m.afterContentsChange.Emit(struct{}{}) })
	m.safely(ctx, "language changed late listener", func() { m.languageChangedLate.Emit(change) })
}
