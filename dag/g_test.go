package dag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type strNode string

func (s strNode) String() string { return string(s) }

func TestTopoSortLinear(t *testing.T) {
	g := New[strNode]()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	order, err := g.TopoSort()
	require.NoError(t, err)
	require.Equal(t, []strNode{"a", "b", "c"}, order)
}

func TestDetectCycle(t *testing.T) {
	g := New[strNode]()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := g.TopoSort()
	require.Error(t, err)

	cycle := g.DetectFirstCycle()
	require.NotEmpty(t, cycle)
}

func TestSelfLoopRejected(t *testing.T) {
	g := New[strNode]()
	g.AddNode("a")
	err := g.AddEdge("a", "a")
	require.ErrorIs(t, err, ErrSelfLoop)
}

func TestMissingNodeRejected(t *testing.T) {
	g := New[strNode]()
	g.AddNode("a")
	err := g.AddEdge("a", "ghost")
	require.ErrorIs(t, err, ErrNodeMissing)
}
