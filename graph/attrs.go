package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// isoTime is the layout for all timestamp attributes (second resolution).
const isoTime = "2006-01-02T15:04:05"

// filenameEndLen bounds the filename_end attribute, in characters, for
// compact display.
const filenameEndLen = 13

// RawMeta is the stat-like metadata the deriver consumes for one object.
type RawMeta struct {
	Inode int64
	Mode  uint32
	Nlink uint64
	UID   uint32
	GID   uint32
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// SeparateModeType separates the permission bits and the file type from a
// raw mode. The type corresponds to the standard VFS numbering (see the
// Type* constants).
func SeparateModeType(mode uint32) (perm uint32, typ int8) {
	perm = mode & 0o7777
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		typ = TypeFile
	case unix.S_IFDIR:
		typ = TypeDirectory
	case unix.S_IFCHR:
		typ = TypeCharDevice
	case unix.S_IFBLK:
		typ = TypeBlockDevice
	case unix.S_IFIFO:
		typ = TypeFifo
	case unix.S_IFSOCK:
		typ = TypeSocket
	case unix.S_IFLNK:
		typ = TypeSymlink
	default:
		typ = TypeUnknown
	}
	return perm, typ
}

// FilenameID returns the sha256 hex digest of the UTF-8 encoded path. It is
// a content-addressed identifier for the path string, not a hash of file
// content, and is the stable lookup key used during traversal.
func FilenameID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])
}

// FilenameEnd returns the basename of the last 13 characters of filename.
func FilenameEnd(filename string) string {
	end := filename
	if r := []rune(end); len(r) > filenameEndLen {
		end = string(r[len(r)-filenameEndLen:])
	}
	return filepath.Base(end)
}

// GetDirDepth calculates how many directory levels deep the filename is.
// Empty segments from trailing separators are not counted.
func GetDirDepth(filename string) int {
	depth := 0
	head := filename
	for {
		prev := head
		var tail string
		head, tail = splitPath(head)
		if prev == head {
			break
		}
		if len(tail) == 0 {
			continue
		}
		depth++
		if len(head) == 0 {
			break
		}
	}
	return depth
}

// splitPath splits a path into head and tail around the final separator,
// stripping trailing separators from the head unless it is the root.
func splitPath(p string) (head, tail string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	head, tail = p[:i+1], p[i+1:]
	if trimmed := strings.TrimRight(head, "/"); trimmed != "" {
		head = trimmed
	}
	return head, tail
}

// Deriver computes the vertex attribute set for a filesystem object from its
// path and raw metadata.
type Deriver struct {
	// Patterns are the injected predicates; nil means DefaultPatterns.
	Patterns *Patterns
	// SlicePath controls whether the depth and encryption checks run on the
	// sliced path. Set when the traversed image is mounted under another
	// filesystem, so the mount point prefix never skews the depth.
	SlicePath bool
}

func (d *Deriver) patterns() *Patterns {
	if d.Patterns == nil {
		d.Patterns = DefaultPatterns()
	}
	return d.Patterns
}

// Derive returns the full attribute set for the object at filename. The
// caller passes the absolute, normalized path; parent_inode is resolved
// later from the in-neighbour once the vertex is wired into a graph.
func (d *Deriver) Derive(filename string, st RawMeta) Attrs {
	pats := d.patterns()

	sliced := filename
	if d.SlicePath {
		sliced = pats.SlicePath(filename)
	}

	perm, typ := SeparateModeType(st.Mode)
	base := filepath.Base(filename)
	depth := GetDirDepth(sliced)

	return Attrs{
		Inode:        st.Inode,
		Filename:     filename,
		FilenameID:   FilenameID(filename),
		FilenameEnd:  FilenameEnd(filename),
		FilenameBLen: len(base),
		Type:         typ,
		NameType:     TypeName(typ),
		Mode:         strconv.FormatUint(uint64(perm), 10),
		Size:         strconv.FormatInt(st.Size, 10),
		UID:          strconv.FormatUint(uint64(st.UID), 10),
		GID:          strconv.FormatUint(uint64(st.GID), 10),
		Nlink:        strconv.FormatUint(st.Nlink, 10),
		Mtime:        st.Mtime.Format(isoTime),
		Ctime:        st.Ctime.Format(isoTime),
		Atime:        st.Atime.Format(isoTime),
		DirDepth:     depth,
		GtMinDepth:   pats.Vault.MatchString(sliced) && depth >= pats.MinDepth,
		Encrypted:    pats.Enc.MatchString(sliced),
		Eval:         EvalNone,
		Keeper:       true,
	}
}
