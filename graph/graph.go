// Package graph holds the attributed digraph used to store filesystem
// metadata for centroids, plus the traversal, trimming and candidate
// decomposition built on top of it.
package graph

// Filesystem object type codes, matching the standard VFS numbering.
const (
	TypeUnknown = iota
	TypeFile
	TypeDirectory
	TypeCharDevice
	TypeBlockDevice
	TypeFifo
	TypeSocket
	TypeSymlink
)

// typeToName maps a type code to its canonical name.
var typeToName = map[int8]string{
	TypeUnknown:     "unknown",
	TypeFile:        "regular file",
	TypeDirectory:   "directory",
	TypeCharDevice:  "character device",
	TypeBlockDevice: "block device",
	TypeFifo:        "fifo",
	TypeSocket:      "socket",
	TypeSymlink:     "symlink",
}

// TypeName returns the canonical name for a type code.
func TypeName(t int8) string {
	if n, ok := typeToName[t]; ok {
		return n
	}
	return typeToName[TypeUnknown]
}

// Values for the tri-state eval vertex attribute.
const (
	EvalFalse uint8 = 0
	EvalTrue  uint8 = 1
	EvalNone  uint8 = 2
)

// Attrs is the full attribute set of one vertex (one filesystem object).
//
// The stat-like fields (Size, Mode, UID, GID, Nlink and the timestamps) are
// kept as strings so that objects imported from a DFXML file, where any of
// them may be missing and recorded as "?", share the same schema as objects
// read from a live mount.
type Attrs struct {
	Inode       int64
	ParentInode int64

	Filename     string // absolute, normalized path
	FilenameID   string // sha256 hex digest of Filename
	FilenameEnd  string // basename of the last 13 bytes of Filename
	FilenameBLen int    // byte length of the basename

	Type     int8
	NameType string
	Mode     string
	Size     string
	UID      string
	GID      string
	Nlink    string
	Mtime    string
	Ctime    string
	Atime    string

	DirDepth   int
	GtMinDepth bool
	Encrypted  bool
	Eval       uint8
	Keeper     bool

	// Extended attributes, meaningful only when the graph was created with
	// extended attributes enabled.
	Alloc    bool
	Used     bool
	FSOffset string
	SrcFiles []int16
	Crtime   string
	Color    []float32
	Shape    string
}

// Graph is a directed graph customized to store filesystem metadata for
// centroids. Vertices live in an indexed arena; removing a vertex leaves a
// tombstone so the indices of the survivors never shift.
type Graph struct {
	verts   []Attrs
	out     [][]int
	in      [][]int
	removed []bool
	live    int

	extAttrs bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// EnableExtendedAttrs marks the graph as carrying the extended vertex
// attributes (allocation flags, on-disk offset, source files, crtime and the
// cosmetic attributes used for drawing).
func (g *Graph) EnableExtendedAttrs() {
	g.extAttrs = true
}

// HasExtendedAttrs reports whether extended attributes are enabled.
func (g *Graph) HasExtendedAttrs() bool {
	return g.extAttrs
}

// NumVertices returns the number of live vertices.
func (g *Graph) NumVertices() int {
	return g.live
}

// NumEdges returns the number of edges between live vertices.
func (g *Graph) NumEdges() int {
	n := 0
	for v, targets := range g.out {
		if g.removed[v] {
			continue
		}
		n += len(targets)
	}
	return n
}

// Vertices returns the indices of all live vertices in ascending order.
func (g *Graph) Vertices() []int {
	vs := make([]int, 0, g.live)
	for v := range g.verts {
		if !g.removed[v] {
			vs = append(vs, v)
		}
	}
	return vs
}

// Valid reports whether v is the index of a live vertex.
func (g *Graph) Valid(v int) bool {
	return v >= 0 && v < len(g.verts) && !g.removed[v]
}

// AddVertex adds a vertex with the given attributes and returns its index.
func (g *Graph) AddVertex(a Attrs) int {
	g.verts = append(g.verts, a)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.removed = append(g.removed, false)
	g.live++
	return len(g.verts) - 1
}

// Attrs returns a pointer to the attributes of vertex v so callers may
// update them in place.
func (g *Graph) Attrs(v int) *Attrs {
	return &g.verts[v]
}

// AddEdge adds the directed edge u -> v. Self loops and duplicates are
// silently ignored.
func (g *Graph) AddEdge(u, v int) {
	if u == v || !g.Valid(u) || !g.Valid(v) {
		return
	}
	for _, t := range g.out[u] {
		if t == v {
			return
		}
	}
	g.out[u] = append(g.out[u], v)
	g.in[v] = append(g.in[v], u)
}

// OutNeighbors returns the children of v in insertion order.
func (g *Graph) OutNeighbors(v int) []int {
	return g.out[v]
}

// InNeighbors returns the parents of v in insertion order.
func (g *Graph) InNeighbors(v int) []int {
	return g.in[v]
}

// OutDegree returns the number of outgoing edges of v.
func (g *Graph) OutDegree(v int) int {
	return len(g.out[v])
}

// InDegree returns the number of incoming edges of v.
func (g *Graph) InDegree(v int) int {
	return len(g.in[v])
}

// ClearInEdges removes every incoming edge of v.
func (g *Graph) ClearInEdges(v int) {
	for _, u := range g.in[v] {
		g.out[u] = cut(g.out[u], v)
	}
	g.in[v] = nil
}

// ResolveParentInode sets the parent_inode attribute of v from its unique
// in-neighbour. Vertices without exactly one parent are left untouched.
func (g *Graph) ResolveParentInode(v int) {
	if len(g.in[v]) == 1 {
		g.verts[v].ParentInode = g.verts[g.in[v][0]].Inode
	}
}

// RemoveVertex removes v and every edge touching it. It reports whether a
// live vertex was actually removed.
func (g *Graph) RemoveVertex(v int) bool {
	if !g.Valid(v) {
		return false
	}
	for _, t := range g.out[v] {
		g.in[t] = cut(g.in[t], v)
	}
	for _, u := range g.in[v] {
		g.out[u] = cut(g.out[u], v)
	}
	g.out[v] = nil
	g.in[v] = nil
	g.removed[v] = true
	g.live--
	return true
}

// RemoveVertices removes every listed vertex and returns how many live
// vertices were removed.
func (g *Graph) RemoveVertices(vs []int) int {
	n := 0
	for _, v := range vs {
		if g.RemoveVertex(v) {
			n++
		}
	}
	return n
}

// Copy returns a deep, independent copy of the graph. Vertex indices,
// tombstones included, are preserved.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		verts:    make([]Attrs, len(g.verts)),
		out:      make([][]int, len(g.out)),
		in:       make([][]int, len(g.in)),
		removed:  make([]bool, len(g.removed)),
		live:     g.live,
		extAttrs: g.extAttrs,
	}
	copy(c.verts, g.verts)
	copy(c.removed, g.removed)
	for v := range g.verts {
		c.out[v] = append([]int(nil), g.out[v]...)
		c.in[v] = append([]int(nil), g.in[v]...)
		c.verts[v].SrcFiles = append([]int16(nil), g.verts[v].SrcFiles...)
		c.verts[v].Color = append([]float32(nil), g.verts[v].Color...)
	}
	return c
}

// HasEncryptedFiles folds the encrypted attribute over all live vertices.
func (g *Graph) HasEncryptedFiles() bool {
	for v := range g.verts {
		if !g.removed[v] && g.verts[v].Encrypted {
			return true
		}
	}
	return false
}

// TreeTop walks from the first live vertex up the parent edges and returns
// the top-most vertex of the (sub)tree.
func (g *Graph) TreeTop() (int, error) {
	v := -1
	for i := range g.verts {
		if !g.removed[i] {
			v = i
			break
		}
	}
	if v < 0 {
		return -1, &InvalidTreeError{Msg: "tree has no vertices"}
	}
	// A parent chain over live vertices can be at most live hops long;
	// running out of hops means the chain loops.
	for hops := 0; hops < g.live; hops++ {
		switch {
		case len(g.in[v]) > 1:
			return -1, &InvalidTreeError{Msg: "found vertex with more than one parent"}
		case len(g.in[v]) == 0:
			return v, nil
		default:
			v = g.in[v][0]
		}
	}
	return -1, &InvalidTreeError{Msg: "parent chain does not terminate"}
}

func cut(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
