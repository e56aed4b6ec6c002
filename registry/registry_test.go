package registry_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/langpack/registry"
)

type RegistrySuite struct {
	suite.Suite
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func collect(r *registry.Registry[string]) []string {
	var out []string
	r.Each(func(s string) { out = append(out, s) })
	return out
}

func (s *RegistrySuite) TestInsertionOrderAndRemoval() {
	r := registry.New[string](2)
	a := r.Add("a")
	b := r.Add("b")
	r.Add("c")

	s.Require().NotZero(a)
	s.Equal([]string{"a", "b", "c"}, collect(r))
	s.Equal(3, r.Len())

	s.True(r.Remove(b))
	s.False(r.Remove(b))
	s.Equal([]string{"a", "c"}, collect(r))

	got, ok := r.Get(a)
	s.True(ok)
	s.Equal("a", got)
}

func (s *RegistrySuite) TestStaleHandleIgnoredAfterSlotReuse() {
	r := registry.New[string](0)
	old := r.Add("old")
	s.True(r.Remove(old))

	fresh := r.Add("fresh")
	s.NotEqual(old, fresh)

	_, ok := r.Get(old)
	s.False(ok)
	s.False(r.Remove(old))
	s.Equal([]string{"fresh"}, collect(r))

	s.False(r.Remove(registry.Handle(0)))
	s.False(r.Remove(registry.Handle(1 << 40)))
}

func (s *RegistrySuite) TestRemoveDuringWalk() {
	testCases := []struct {
		name    string
		remove  func(h map[string]registry.Handle, current string) []registry.Handle
		visited []string
		after   []string
	}{
		{
			name: "self",
			remove: func(h map[string]registry.Handle, current string) []registry.Handle {
				if current == "b" {
					return []registry.Handle{h["b"]}
				}
				return nil
			},
			visited: []string{"a", "b", "c"},
			after:   []string{"a", "c"},
		},
		{
			name: "later item",
			remove: func(h map[string]registry.Handle, current string) []registry.Handle {
				if current == "a" {
					return []registry.Handle{h["c"]}
				}
				return nil
			},
			visited: []string{"a", "b"},
			after:   []string{"a", "b"},
		},
		{
			name: "everything",
			remove: func(h map[string]registry.Handle, current string) []registry.Handle {
				if current == "a" {
					return []registry.Handle{h["a"], h["b"], h["c"]}
				}
				return nil
			},
			visited: []string{"a"},
			after:   nil,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			r := registry.New[string](0)
			handles := map[string]registry.Handle{}
			for _, name := range []string{"a", "b", "c"} {
				handles[name] = r.Add(name)
			}

			var visited []string
			r.Each(func(current string) {
				visited = append(visited, current)
				for _, h := range tc.remove(handles, current) {
					r.Remove(h)
				}
			})

			s.Equal(tc.visited, visited)
			s.Equal(tc.after, collect(r))
			s.Equal(len(tc.after), r.Len())
		})
	}
}

func (s *RegistrySuite) TestAddDuringWalkIsVisited() {
	r := registry.New[string](0)
	r.Add("a")

	var visited []string
	r.Each(func(current string) {
		visited = append(visited, current)
		if current == "a" {
			r.Add("b")
		}
	})

	s.Equal([]string{"a", "b"}, visited)
}

func (s *RegistrySuite) TestNestedWalkDefersUnlinkUntilOutermostReturns() {
	r := registry.New[string](0)
	r.Add("a")
	b := r.Add("b")

	var inner []string
	r.Each(func(current string) {
		if current != "a" {
			return
		}
		r.Each(func(x string) {
			inner = append(inner, x)
			if x == "b" {
				r.Remove(b)
			}
		})
		// the slot is still linked until the outer walk returns
		reused := r.Add("c")
		s.NotEqual(b, reused)
	})

	s.Equal([]string{"a", "b"}, inner)
	s.Equal([]string{"a", "c"}, collect(r))
}

func (s *RegistrySuite) TestHandlesAreDistinctAcrossRegistries() {
	first := registry.New[string](0)
	second := registry.New[int](0)

	h := first.Add("x")
	s.False(second.Remove(h))
	s.Equal(1, first.Len())
	s.True(first.Remove(h))
}
