package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Filters applied to every fileobject taken from a DFXML document. Only the
// shadow subtree is of interest; home and home/.shadow themselves stay so
// that deeper objects can hang their edges off them.
var (
	exPatDot    = regexp.MustCompile(`/\.\.?$`)
	exPatShadow = regexp.MustCompile(`^/?home/\.shadow/(.+)`)
	inPatHome   = regexp.MustCompile(`^/?home$`)
	inPatShadow = regexp.MustCompile(`^/?home/\.shadow$`)
)

type xmlByteRun struct {
	FSOffset string `xml:"fs_offset,attr"`
	Len      string `xml:"len,attr"`
}

type xmlParentObject struct {
	Inode *int64 `xml:"inode"`
}

type xmlFileObject struct {
	Filename *string          `xml:"filename"`
	Inode    *int64           `xml:"inode"`
	MetaType *int8            `xml:"meta_type"`
	NameType *string          `xml:"name_type"`
	Alloc    *int             `xml:"alloc"`
	Unalloc  *int             `xml:"unalloc"`
	Used     *int             `xml:"used"`
	Unused   *int             `xml:"unused"`
	Filesize *string          `xml:"filesize"`
	Mode     *string          `xml:"mode"`
	UID      *string          `xml:"uid"`
	GID      *string          `xml:"gid"`
	Nlink    *string          `xml:"nlink"`
	Mtime    *string          `xml:"mtime"`
	Ctime    *string          `xml:"ctime"`
	Atime    *string          `xml:"atime"`
	Crtime   *string          `xml:"crtime"`
	Parent   *xmlParentObject `xml:"parent_object"`
	ByteRuns struct {
		Runs []xmlByteRun `xml:"byte_run"`
	} `xml:"byte_runs"`
}

// DFXMLStats summarizes one DFXML import.
type DFXMLStats struct {
	Total               int
	SkippedDuplicates   int
	Unallocated         int
	Unused              int
	DuplicateParentDirs int
	NoName              int
	TypeCount           [8]int
}

// DFXMLReader imports the fileobjects of a DFXML image description into a
// graph, behind the same contract as the live-mount walker. No mount is
// required; allocation and usage flags from the document are preserved in
// the extended attributes.
type DFXMLReader struct {
	// Patterns are the injected predicates; nil means DefaultPatterns.
	Patterns *Patterns
	// ImgFileID identifies the contributing source image in the src_files
	// extended attribute. Zero means 1.
	ImgFileID int16
}

type pendingEdge struct {
	parent int64
	vertex int
}

// Read parses the DFXML file at path and populates g. It returns the index
// of the home vertex (-1 when the document has none) and the import
// statistics. An unreadable or unparsable file is an InvalidRootError.
func (r *DFXMLReader) Read(path string, g *Graph) (int, *DFXMLStats, error) {
	pats := r.Patterns
	if pats == nil {
		pats = DefaultPatterns()
	}
	imgID := r.ImgFileID
	if imgID == 0 {
		imgID = 1
	}

	f, err := os.Open(path)
	if err != nil {
		return -1, nil, &InvalidRootError{Root: path, Err: err}
	}
	defer f.Close()

	log.Infof("Beginning import from file: %s", path)
	g.EnableExtendedAttrs()

	dec := xml.NewDecoder(f)
	dec.CharsetReader = charsetReader

	stats := &DFXMLStats{}
	home := -1
	idToVertex := make(map[string]int)   // filename_id -> vertex
	inodePaths := make(map[int64]string) // inode -> filename_id
	var edges []pendingEdge

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return -1, stats, &InvalidRootError{Root: path, Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "fileobject" {
			continue
		}

		var fo xmlFileObject
		if err := dec.DecodeElement(&fo, &se); err != nil {
			return -1, stats, &InvalidRootError{Root: path, Err: err}
		}
		r.addFileObject(g, &fo, pats, imgID, stats, idToVertex, inodePaths, &edges, &home)
	}

	// Wire the deferred edges now that every vertex exists. An edge to a
	// vertex replaces whatever in-edge it already had.
	for _, e := range edges {
		id, ok := inodePaths[e.parent]
		if !ok {
			continue
		}
		u, ok := idToVertex[id]
		if !ok || u == e.vertex {
			continue
		}
		g.ClearInEdges(e.vertex)
		g.AddEdge(u, e.vertex)
	}

	log.Info("Done importing.")
	log.Debugf("Number of skipped (duplicate) files: %d", stats.SkippedDuplicates)
	log.Debugf("Number of unallocated files: %d", stats.Unallocated)
	log.Debugf("Number of allocated but unused files: %d", stats.Unused)
	log.Debugf("Number of duplicate parent directory entries: %d", stats.DuplicateParentDirs)
	log.Debugf("File count by type: %v", stats.TypeCount)
	log.Infof("Total imported file objects: %d", stats.Total)

	return home, stats, nil
}

func (r *DFXMLReader) addFileObject(g *Graph, fo *xmlFileObject, pats *Patterns, imgID int16,
	stats *DFXMLStats, idToVertex map[string]int, inodePaths map[int64]string,
	edges *[]pendingEdge, home *int) {

	var filename string
	if fo.Filename != nil {
		filename = *fo.Filename
	}

	// Allocation status; unalloc is the inverted spelling of the same flag.
	alloc, ok := intFlag(fo.Alloc, fo.Unalloc)
	if !ok {
		log.Errorf("File object has neither an alloc or unalloc tag: %s", filename)
		return
	}
	if !alloc {
		stats.Unallocated++
		return
	}
	used, ok := intFlag(fo.Used, fo.Unused)
	if !ok {
		log.Errorf("File object has neither a used or unused tag: %s", filename)
		return
	}
	if !used {
		stats.Unused++
		return
	}

	if fo.Filename == nil || fo.Inode == nil || fo.MetaType == nil || fo.Parent == nil || fo.Parent.Inode == nil {
		stats.NoName++
		return
	}

	// Exclude the . and .. entries.
	if exPatDot.MatchString(filename) {
		return
	}

	skipAddEdge := false
	isHome := false
	switch {
	case inPatHome.MatchString(filename):
		skipAddEdge = true
		isHome = true
	case inPatShadow.MatchString(filename):
	case !exPatShadow.MatchString(filename):
		// Everything else outside home/.shadow/ is of no interest.
		return
	}

	inode := *fo.Inode
	parentInode := *fo.Parent.Inode
	metaType := *fo.MetaType
	if metaType >= 0 && int(metaType) < len(stats.TypeCount) {
		stats.TypeCount[metaType]++
	}

	// Coerce the parent to be a directory if we already know it as
	// something else.
	if pid, seen := inodePaths[parentInode]; seen {
		if pv, ok := idToVertex[pid]; ok && g.Attrs(pv).Type != TypeDirectory {
			g.Attrs(pv).Type = TypeDirectory
			log.Debugf("Coerced inode %d to have file type %d (dir)", g.Attrs(pv).Inode, TypeDirectory)
		}
	}

	depth := GetDirDepth(filename)

	// Lowest on-disk offset across the byte runs.
	fsOffset := "?"
	lowest := int64(-1)
	for _, run := range fo.ByteRuns.Runs {
		off, err := strconv.ParseInt(run.FSOffset, 10, 64)
		if err != nil {
			continue
		}
		if lowest < 0 || off < lowest {
			lowest = off
		}
	}
	if lowest >= 0 {
		fsOffset = strconv.FormatInt(lowest, 10)
	}

	// Prefer the DFXML-computed length, fall back to summing byte runs.
	filesize := "?"
	if fo.Filesize != nil {
		filesize = *fo.Filesize
	} else {
		var sum int64
		for _, run := range fo.ByteRuns.Runs {
			if n, err := strconv.ParseInt(run.Len, 10, 64); err == nil {
				sum += n
			}
		}
		if sum > 0 {
			filesize = strconv.FormatInt(sum, 10)
		}
	}

	attrs := Attrs{
		Inode:        inode,
		ParentInode:  parentInode,
		Filename:     filename,
		FilenameID:   FilenameID(filename),
		FilenameEnd:  FilenameEnd(filename),
		FilenameBLen: len(baseName(filename)),
		Type:         metaType,
		NameType:     strOrQ(fo.NameType),
		Mode:         strOrQ(fo.Mode),
		Size:         filesize,
		UID:          strOrQ(fo.UID),
		GID:          strOrQ(fo.GID),
		Nlink:        strOrQ(fo.Nlink),
		Mtime:        strOrQ(fo.Mtime),
		Ctime:        strOrQ(fo.Ctime),
		Atime:        strOrQ(fo.Atime),
		DirDepth:     depth,
		GtMinDepth:   pats.Vault.MatchString(filename) && depth >= pats.MinDepth,
		Encrypted:    pats.Enc.MatchString(filename),
		Eval:         EvalNone,
		Keeper:       true,
		Alloc:        alloc,
		Used:         used,
		FSOffset:     fsOffset,
		SrcFiles:     []int16{imgID},
		Crtime:       strOrQ(fo.Crtime),
	}
	id := attrs.FilenameID

	// The same inode under two different paths means duplicate parent
	// directory entries; keep the one closer to /home.
	if oldID, seen := inodePaths[inode]; seen && oldID != id {
		stats.DuplicateParentDirs++
		if dup, ok := idToVertex[oldID]; ok && attrs.DirDepth < g.Attrs(dup).DirDepth {
			dropPendingEdge(edges, dup)
			*edges = append(*edges, pendingEdge{parent: parentInode, vertex: dup})
			*g.Attrs(dup) = attrs
			inodePaths[inode] = id
			idToVertex[id] = dup
			return
		}
	} else {
		inodePaths[inode] = id
	}

	// Never double-add an object already materialized as a vertex.
	if dup, ok := idToVertex[id]; ok {
		stats.SkippedDuplicates++
		a := g.Attrs(dup)
		found := false
		for _, s := range a.SrcFiles {
			if s == imgID {
				found = true
				break
			}
		}
		if !found {
			a.SrcFiles = append(a.SrcFiles, imgID)
		}
		return
	}

	v := g.AddVertex(attrs)
	idToVertex[id] = v
	stats.Total++

	if isHome {
		*home = v
		g.Attrs(v).Color = []float32{0, 0.8, 0, 0.9}
	}
	if !skipAddEdge {
		*edges = append(*edges, pendingEdge{parent: parentInode, vertex: v})
	}
}

// dropPendingEdge removes the queued edge pointing at vertex v, if any.
func dropPendingEdge(edges *[]pendingEdge, v int) {
	for i, e := range *edges {
		if e.vertex == v {
			*edges = append((*edges)[:i], (*edges)[i+1:]...)
			return
		}
	}
}

func intFlag(direct, inverted *int) (val, ok bool) {
	if direct != nil {
		return *direct != 0, true
	}
	if inverted != nil {
		return *inverted == 0, true
	}
	return false, false
}

func strOrQ(s *string) string {
	if s == nil || *s == "" {
		return "?"
	}
	return *s
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// charsetReader decodes DFXML documents whose declaration names a non-UTF-8
// encoding.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "us-ascii":
		return input, nil
	case "iso-8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1251":
		return transform.NewReader(input, charmap.Windows1251.NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	case "utf-16", "utf-16le":
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(input, dec), nil
	case "utf-16be":
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(input, dec), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}
