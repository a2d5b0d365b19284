package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGraph inserts a node per id with the given deps declared.
func buildGraph(t *testing.T, deps map[Id][]Id) *Graph[string] {
	t.Helper()
	g := New[string]()
	for id, ds := range deps {
		n := NewNode(string(id), id)
		n.Add(ds...)
		_, ok := g.Insert(n)
		require.True(t, ok)
	}
	return g
}

func TestTraverseUpstream(t *testing.T) {
	t.Run("visits each reachable vertex once", func(t *testing.T) {
		// Diamond: a -> {b, c} -> d.
		g := buildGraph(t, map[Id][]Id{
			"a": {"b", "c"},
			"b": {"d"},
			"c": {"d"},
			"d": nil,
		})

		var visited []Id
		edges := 0
		err := g.TraverseUpstream(g.Find("a"),
			func(v *Vertex[string]) error {
				visited = append(visited, v.Key())
				return nil
			},
			func(u, w *Vertex[string]) error {
				edges++
				return nil
			},
		)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Id{"a", "b", "c", "d"}, visited)
		assert.Equal(t, 4, edges) // a->b, a->c, b->d, c->d
	})

	t.Run("ignores vertices not reachable from the root", func(t *testing.T) {
		g := buildGraph(t, map[Id][]Id{
			"a": {"b"},
			"b": nil,
			"x": {"b"},
		})

		var visited []Id
		err := g.TraverseUpstream(g.Find("a"),
			func(v *Vertex[string]) error {
				visited = append(visited, v.Key())
				return nil
			},
			nil,
		)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Id{"a", "b"}, visited)
	})

	t.Run("reports the first back edge as a cycle", func(t *testing.T) {
		g := buildGraph(t, map[Id][]Id{
			"a": {"b"},
			"b": {"c"},
			"c": {"a"},
		})

		err := g.TraverseUpstream(g.Find("a"), nil, nil)
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Len(t, cycle.Path, 4)
		assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
		assert.Contains(t, err.Error(), "cyclic dependency")
	})

	t.Run("self-declared cycles cannot exist", func(t *testing.T) {
		// Node.Add drops self-references, so a one-vertex graph is trivially
		// acyclic.
		g := buildGraph(t, map[Id][]Id{"a": {"a"}})
		assert.NoError(t, g.TraverseUpstream(g.Find("a"), nil, nil))
	})

	t.Run("visit errors abort the walk", func(t *testing.T) {
		g := buildGraph(t, map[Id][]Id{
			"a": {"b"},
			"b": {"c"},
			"c": nil,
		})

		boom := errors.New("boom")
		count := 0
		err := g.TraverseUpstream(g.Find("a"),
			func(v *Vertex[string]) error {
				count++
				if v.Key() == "b" {
					return boom
				}
				return nil
			},
			nil,
		)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, count)
	})

	t.Run("visits a vertex before its upstream neighbors", func(t *testing.T) {
		g := buildGraph(t, map[Id][]Id{
			"a": {"b"},
			"b": {"c"},
			"c": nil,
		})

		order := map[Id]int{}
		next := 0
		err := g.TraverseUpstream(g.Find("a"),
			func(v *Vertex[string]) error {
				order[v.Key()] = next
				next++
				return nil
			},
			nil,
		)
		require.NoError(t, err)
		assert.Less(t, order["a"], order["b"])
		assert.Less(t, order["b"], order["c"])
	})
}
