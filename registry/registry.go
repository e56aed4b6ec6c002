// Package registry keeps an ordered set of items behind stable handles.
//
// Items live in an arena of slots linked in insertion order. Removing an item frees its
// slot for reuse; every Add stamps the slot with a fresh generation drawn from a
// process-wide counter, so stale handles are ignored and handles issued by different
// registries never compare equal. Removal
// while Each is running only marks the slot dead; the slot is unlinked once the
// outermost walk returns, which keeps the traversal valid.
package registry

import (
	"sync"
	"sync/atomic"
)

// Handle identifies an item. The zero Handle is never issued.
type Handle uint64

const none = -1

var generations atomic.Uint32

func makeHandle(slot int, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(uint32(slot))) //nolint:gosec // slot fits in 32 bits
}

func (h Handle) split() (int, uint32) {
	return int(uint32(h)), uint32(h >> 32) //nolint:gosec // inverse of makeHandle
}

type slot[T any] struct {
	item       T
	generation uint32
	live       bool
	dead       bool // removed during a walk, unlinked afterwards
	prev, next int
}

// Registry is safe for concurrent use. Callbacks passed to Each run without the
// lock held and may call Add or Remove.
type Registry[T any] struct {
	mu      sync.Mutex
	slots   []slot[T]
	free    []int
	head    int
	tail    int
	count   int
	walking int
	pending []int
}

// New creates a registry with room for capacity items before growing.
func New[T any](capacity int) *Registry[T] {
	return &Registry[T]{
		slots: make([]slot[T], 0, capacity),
		head:  none,
		tail:  none,
	}
}

// Add appends item and returns its handle.
func (r *Registry[T]) Add(item T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var i int
	if n := len(r.free); n > 0 {
		i = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		i = len(r.slots) - 1
	}

	s := &r.slots[i]
	s.generation = generations.Add(1)
	s.item = item
	s.live = true
	s.dead = false
	s.prev = r.tail
	s.next = none

	if r.tail == none {
		r.head = i
	} else {
		r.slots[r.tail].next = i
	}
	r.tail = i
	r.count++

	return makeHandle(i, s.generation)
}

// Remove deletes the item behind h. Unknown or stale handles are ignored.
func (r *Registry[T]) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, generation := h.split()
	if i < 0 || i >= len(r.slots) {
		return false
	}
	s := &r.slots[i]
	if !s.live || s.dead || s.generation != generation {
		return false
	}

	var zero T
	s.item = zero
	r.count--

	if r.walking > 0 {
		s.dead = true
		r.pending = append(r.pending, i)
		return true
	}
	r.unlink(i)
	return true
}

func (r *Registry[T]) unlink(i int) {
	s := &r.slots[i]
	if s.prev == none {
		r.head = s.next
	} else {
		r.slots[s.prev].next = s.next
	}
	if s.next == none {
		r.tail = s.prev
	} else {
		r.slots[s.next].prev = s.prev
	}

	s.live = false
	s.dead = false
	s.prev, s.next = none, none
	r.free = append(r.free, i)
}

// Get returns the item behind h.
func (r *Registry[T]) Get(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	i, generation := h.split()
	if i < 0 || i >= len(r.slots) {
		return zero, false
	}
	s := r.slots[i]
	if !s.live || s.dead || s.generation != generation {
		return zero, false
	}
	return s.item, true
}

// Len reports the number of live items.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Each calls fn for every live item in insertion order. Items removed before the
// walk reaches them are skipped; items added during the walk are visited.
func (r *Registry[T]) Each(fn func(T)) {
	r.mu.Lock()
	r.walking++
	i := r.head
	r.mu.Unlock()

	defer r.endWalk()

	for i != none {
		r.mu.Lock()
		s := r.slots[i]
		r.mu.Unlock()

		if s.live && !s.dead {
			fn(s.item)
		}

		r.mu.Lock()
		i = r.slots[i].next
		r.mu.Unlock()
	}
}

func (r *Registry[T]) endWalk() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.walking--
	if r.walking > 0 {
		return
	}
	for _, i := range r.pending {
		r.unlink(i)
	}
	r.pending = r.pending[:0]
}
