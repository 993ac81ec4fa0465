package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addFSVertex(g *Graph, name string, depth int, typ int8, encrypted, gtMinDepth bool) int {
	return g.AddVertex(Attrs{
		Inode:      int64(g.NumVertices() + 1),
		Filename:   name,
		FilenameID: FilenameID(name),
		Type:       typ,
		DirDepth:   depth,
		Encrypted:  encrypted,
		GtMinDepth: gtMinDepth,
		Eval:       EvalNone,
		Keeper:     true,
	})
}

// vaultFixture builds a small home tree against a minimum depth of 4: one
// well-formed extension branch, a stray file where only encrypted
// directories belong, and an unencrypted branch that reaches past the
// minimum depth.
func vaultFixture(g *Graph) (home, version, file int) {
	home = addFSVertex(g, "/home", 1, TypeDirectory, false, false)

	extensions := addFSVertex(g, "/home/exts", 2, TypeDirectory, true, false)
	extID := addFSVertex(g, "/home/exts/id", 3, TypeDirectory, true, false)
	version = addFSVertex(g, "/home/exts/id/ver", 4, TypeDirectory, true, true)
	file = addFSVertex(g, "/home/exts/id/ver/f", 5, TypeFile, true, true)
	g.AddEdge(home, extensions)
	g.AddEdge(extensions, extID)
	g.AddEdge(extID, version)
	g.AddEdge(version, file)

	junk := addFSVertex(g, "/home/junk", 2, TypeFile, false, false)
	g.AddEdge(home, junk)

	badDir := addFSVertex(g, "/home/plain", 2, TypeDirectory, false, false)
	badChild := addFSVertex(g, "/home/plain/sub", 3, TypeDirectory, false, false)
	badGrand := addFSVertex(g, "/home/plain/sub/deep", 4, TypeDirectory, false, true)
	g.AddEdge(home, badDir)
	g.AddEdge(badDir, badChild)
	g.AddEdge(badChild, badGrand)

	return home, version, file
}

func TestTrimUnuseful(t *testing.T) {
	g := New()
	home, version, file := vaultFixture(g)
	pats := &Patterns{MinDepth: 4}

	stats, err := g.TrimUnuseful(home, true, pats)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Removed)
	assert.Equal(t, 2, g.NumVertices(), "only the extension version subtree survives")
	assert.True(t, g.Valid(version))
	assert.True(t, g.Valid(file))
	assert.Equal(t, 1, g.NumEdges())
	assert.Equal(t, EvalTrue, g.Attrs(version).Eval)
}

func TestTrimUnusefulCascade(t *testing.T) {
	// A vertex below a disqualified branch is dropped even when it clears
	// the depth bar on its own.
	g := New()
	home, _, _ := vaultFixture(g)
	deep := findVertex(g, "/home/plain/sub/deep")
	require.GreaterOrEqual(t, deep, 0)

	_, err := g.TrimUnuseful(home, true, &Patterns{MinDepth: 4})
	require.NoError(t, err)

	assert.False(t, g.Valid(deep))
}

func TestTrimUnusefulNoDepthFilter(t *testing.T) {
	g := New()
	home, _, _ := vaultFixture(g)

	stats, err := g.TrimUnuseful(home, false, &Patterns{MinDepth: 4})
	require.NoError(t, err)

	// Usefulness is evaluated but nothing is purged without the depth pass.
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 9, g.NumVertices())
	assert.False(t, g.Attrs(findVertex(g, "/home/junk")).Keeper)
	assert.True(t, g.Attrs(findVertex(g, "/home/exts/id/ver")).Keeper)
}

func TestTrimUnusefulBadHome(t *testing.T) {
	g := New()
	_, err := g.TrimUnuseful(0, true, nil)
	assert.Error(t, err)

	v := addFSVertex(g, "/home", 1, TypeDirectory, false, false)
	g.RemoveVertex(v)
	_, err = g.TrimUnuseful(v, true, nil)
	assert.Error(t, err, "a removed home vertex is invalid")
}

func TestTrimWhere(t *testing.T) {
	g := New()
	home, _, _ := vaultFixture(g)

	removed := g.TrimWhere(func(a *Attrs) bool {
		return a.Type == TypeDirectory
	})

	assert.Equal(t, 2, removed)
	assert.Equal(t, 7, g.NumVertices())
	assert.True(t, g.Valid(home))
	assert.Equal(t, -1, findVertex(g, "/home/junk"))
}
