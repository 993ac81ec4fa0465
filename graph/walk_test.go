package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeLstat hands out sequential inode numbers so the tests do not depend on
// the filesystem the temp dir lives on.
func fakeLstat() func(string) (RawMeta, error) {
	next := int64(100)
	inodes := make(map[string]int64)
	return func(path string) (RawMeta, error) {
		fi, err := os.Lstat(path)
		if err != nil {
			return RawMeta{}, err
		}
		ino, ok := inodes[path]
		if !ok {
			next++
			ino = next
			inodes[path] = ino
		}
		mode := uint32(unix.S_IFREG | 0o644)
		switch {
		case fi.IsDir():
			mode = unix.S_IFDIR | 0o755
		case fi.Mode()&os.ModeSymlink != 0:
			mode = unix.S_IFLNK | 0o777
		}
		return RawMeta{Inode: ino, Mode: mode, Size: fi.Size(), Mtime: fi.ModTime()}, nil
	}
}

func buildTestTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "file1"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "c", "file2"), []byte("two"), 0o644))
	require.NoError(t, os.Symlink("a", filepath.Join(dir, "link")))
	return dir
}

func findVertex(g *Graph, suffix string) int {
	for _, v := range g.Vertices() {
		if strings.HasSuffix(g.Attrs(v).Filename, suffix) {
			return v
		}
	}
	return -1
}

func TestBuildFromDir(t *testing.T) {
	dir := buildTestTree(t)
	g := New()
	w := &Walker{Lstat: fakeLstat()}

	stats, err := w.BuildFromDir(dir, g)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 7, g.NumVertices())
	assert.Equal(t, 6, g.NumEdges())

	file1 := findVertex(g, "/a/b/file1")
	require.GreaterOrEqual(t, file1, 0)
	b := findVertex(g, "/a/b")
	assert.Equal(t, g.Attrs(b).Inode, g.Attrs(file1).ParentInode)
	assert.Equal(t, int8(TypeFile), g.Attrs(file1).Type)
	assert.Equal(t, int8(TypeDirectory), g.Attrs(b).Type)

	// Symlinks are recorded but never followed.
	link := findVertex(g, "/link")
	require.GreaterOrEqual(t, link, 0)
	assert.Equal(t, int8(TypeSymlink), g.Attrs(link).Type)
	assert.Equal(t, 0, g.OutDegree(link))

	top, err := g.TreeTop()
	require.NoError(t, err)
	assert.Equal(t, dir, g.Attrs(top).Filename)
}

func TestBuildFromDirSkipsUnreadableFile(t *testing.T) {
	dir := buildTestTree(t)
	lstat := fakeLstat()
	w := &Walker{Lstat: func(path string) (RawMeta, error) {
		if strings.HasSuffix(path, "file2") {
			return RawMeta{}, os.ErrPermission
		}
		return lstat(path)
	}}

	g := New()
	stats, err := w.BuildFromDir(dir, g)
	require.NoError(t, err, "a per-object metadata failure is not fatal")
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, -1, findVertex(g, "file2"))
}

func TestBuildFromDirSkipsUnreadableSubtree(t *testing.T) {
	dir := buildTestTree(t)
	lstat := fakeLstat()
	w := &Walker{Lstat: func(path string) (RawMeta, error) {
		if strings.HasSuffix(path, string(filepath.Separator)+"c") {
			return RawMeta{}, os.ErrPermission
		}
		return lstat(path)
	}}

	g := New()
	stats, err := w.BuildFromDir(dir, g)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped, "only the directory itself is tallied")
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, -1, findVertex(g, "file2"), "objects below the skipped dir never appear")
}

func TestBuildFromDirTwoRoots(t *testing.T) {
	// Walking two unrelated trees into one graph leaves two disconnected
	// structures, and decomposition hands back exactly those two.
	dir1 := buildTestTree(t)
	dir2 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "lone"), []byte("x"), 0o644))

	g := New()
	w := &Walker{Lstat: fakeLstat()}
	_, err := w.BuildFromDir(dir1, g)
	require.NoError(t, err)
	_, err = w.BuildFromDir(dir2, g)
	require.NoError(t, err)
	require.Equal(t, 9, g.NumVertices())

	candidates, err := g.ExtractCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, 7, candidates[0].NumVertices())
	assert.Equal(t, 2, candidates[1].NumVertices())
	assert.Equal(t, 0, g.NumVertices(), "the working graph is drained")

	first, err := candidates[0].TreeTop()
	require.NoError(t, err)
	assert.Equal(t, dir1, candidates[0].Attrs(first).Filename)
	second, err := candidates[1].TreeTop()
	require.NoError(t, err)
	assert.Equal(t, dir2, candidates[1].Attrs(second).Filename)
	assert.GreaterOrEqual(t, findVertex(candidates[1], "lone"), 0)
}

func TestBuildFromDirBadRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	w := &Walker{Lstat: fakeLstat()}
	var rootErr *InvalidRootError

	_, err := w.BuildFromDir(file, New())
	assert.ErrorAs(t, err, &rootErr, "root must be a directory")

	_, err = w.BuildFromDir(filepath.Join(dir, "missing"), New())
	assert.ErrorAs(t, err, &rootErr, "root must exist")
}
