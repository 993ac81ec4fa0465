package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addChain links the named vertices into a path and returns their indices.
func addChain(g *Graph, names ...string) []int {
	var vs []int
	for i, name := range names {
		v := newVertex(g, name, int64(g.NumVertices()+1))
		if i > 0 {
			g.AddEdge(vs[i-1], v)
		}
		vs = append(vs, v)
	}
	return vs
}

func TestExtractCandidatesSingleTree(t *testing.T) {
	g := New()
	root := newVertex(g, "/r", 1)
	a := newVertex(g, "/r/a", 2)
	b := newVertex(g, "/r/a/b", 3)
	c := newVertex(g, "/r/c", 4)
	g.AddEdge(root, a)
	g.AddEdge(a, b)
	g.AddEdge(root, c)

	candidates, err := g.ExtractCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 1, "a connected graph is a single candidate")

	cand := candidates[0]
	assert.Equal(t, 4, cand.NumVertices())
	assert.Equal(t, 3, cand.NumEdges())
	assert.Equal(t, 0, g.NumVertices(), "the working graph is drained")
	assert.Equal(t, 0, g.NumEdges())

	top, err := cand.TreeTop()
	require.NoError(t, err)
	assert.Equal(t, "/r", cand.Attrs(top).Filename)
}

func TestExtractCandidatesPartition(t *testing.T) {
	g := New()
	first := addChain(g, "/r1", "/r1/a", "/r1/a/b")
	second := addChain(g, "/r2", "/r2/x")
	third := addChain(g, "/r3")

	candidates, err := g.ExtractCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// Candidates come out in order of their lowest original vertex index and
	// together form an exact partition of the input.
	assert.Equal(t, len(first), candidates[0].NumVertices())
	assert.Equal(t, len(second), candidates[1].NumVertices())
	assert.Equal(t, len(third), candidates[2].NumVertices())
	assert.Equal(t, "/r1", candidates[0].Attrs(0).Filename)
	assert.Equal(t, "/r2", candidates[1].Attrs(0).Filename)
	assert.Equal(t, "/r3", candidates[2].Attrs(0).Filename)

	total := 0
	for _, c := range candidates {
		total += c.NumVertices()
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 0, g.NumVertices())
}

func TestExtractCandidatesFollowsInEdges(t *testing.T) {
	// Weak connectivity: the component must be found even when the seed can
	// only reach part of it by walking edges backwards.
	g := New()
	leaf := newVertex(g, "/r/a", 2)
	root := newVertex(g, "/r", 1)
	other := newVertex(g, "/q", 3)
	g.AddEdge(root, leaf)

	candidates, err := g.ExtractCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 2, candidates[0].NumVertices(), "seed is the leaf, root found via in-edge")
	assert.Equal(t, 1, candidates[1].NumVertices())
	_ = other
}

func TestExtractCandidatesPreservesAttrs(t *testing.T) {
	g := New()
	g.EnableExtendedAttrs()
	root := newVertex(g, "/r", 1)
	child := newVertex(g, "/r/enc", 2)
	g.AddEdge(root, child)
	g.Attrs(child).Encrypted = true
	g.Attrs(child).SrcFiles = []int16{1, 2}

	candidates, err := g.ExtractCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.True(t, cand.HasExtendedAttrs())
	assert.True(t, cand.HasEncryptedFiles())
	v := findVertex(cand, "/r/enc")
	require.GreaterOrEqual(t, v, 0)
	assert.Equal(t, []int16{1, 2}, cand.Attrs(v).SrcFiles)
}

func TestExtractCandidatesEmptyGraph(t *testing.T) {
	candidates, err := New().ExtractCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtractCandidatesDeterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		addChain(g, "/r1", "/r1/a")
		addChain(g, "/r2", "/r2/b", "/r2/b/c")
		return g
	}

	first, err := build().ExtractCandidates()
	require.NoError(t, err)
	second, err := build().ExtractCandidates()
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].NumVertices(), second[i].NumVertices())
		assert.Equal(t, first[i].Attrs(0).Filename, second[i].Attrs(0).Filename)
	}
}
