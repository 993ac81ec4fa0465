package graph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// progressPeriod controls how often traversal progress is logged.
const progressPeriod = 1000

// WalkStats summarizes one traversal.
type WalkStats struct {
	// Total is the number of objects materialized as vertices.
	Total int
	// Skipped counts objects whose metadata could not be read. They are
	// tallied here and reported once at job end, never per object.
	Skipped int
}

// Walker populates a graph from a live directory tree, one vertex per
// visited filesystem object and one edge per direct containment.
type Walker struct {
	Deriver Deriver
	// Lstat reads the raw metadata of one object. Nil selects the platform
	// implementation; tests override it to simulate unreadable objects.
	Lstat func(path string) (RawMeta, error)
}

// BuildFromDir traverses topDir and adds its contents to g. Parents are
// always added before their children so that parent linkage can be resolved
// from the unique in-neighbour at creation time. Symlinks are recorded but
// never followed.
//
// A per-object metadata failure is non-fatal: the object (and, for a
// directory, its subtree) is skipped and tallied. An unreadable or
// non-directory root aborts the walk with an InvalidRootError.
func (w *Walker) BuildFromDir(topDir string, g *Graph) (*WalkStats, error) {
	lstat := w.Lstat
	if lstat == nil {
		lstat = lstatMeta
	}

	top, err := filepath.Abs(topDir)
	if err != nil {
		return nil, &InvalidRootError{Root: topDir, Err: err}
	}
	fi, err := os.Lstat(top)
	if err != nil {
		return nil, &InvalidRootError{Root: top, Err: err}
	}
	if !fi.IsDir() {
		return nil, &InvalidRootError{Root: top, Err: errors.New("not a directory")}
	}

	log.Infof("Beginning import from mount point: %s", top)
	stats := &WalkStats{}

	// Directories are looked up by the digest of their absolute path so
	// children find their container vertex without re-walking.
	idToVertex := make(map[string]int)

	walkErr := filepath.WalkDir(top, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == top {
				return &InvalidRootError{Root: top, Err: err}
			}
			// The directory vertex itself was added on the first visit;
			// only its listing failed.
			log.Warnf("cannot list %s: %v", p, err)
			return nil
		}

		meta, lerr := lstat(p)
		if lerr != nil {
			if p == top {
				return &InvalidRootError{Root: top, Err: lerr}
			}
			stats.Skipped++
			log.Debugf("skipping object: %v", &MetadataError{Path: p, Err: lerr})
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		v := g.AddVertex(w.Deriver.Derive(p, meta))
		if p != top {
			parent, ok := idToVertex[FilenameID(filepath.Dir(p))]
			if !ok {
				// Should not happen: WalkDir hands us parents first.
				return &InvalidTreeError{Msg: fmt.Sprintf("no container vertex for %s", p)}
			}
			g.AddEdge(parent, v)
			g.ResolveParentInode(v)
		}
		if d.IsDir() {
			idToVertex[g.Attrs(v).FilenameID] = v
		}

		stats.Total++
		if stats.Total%progressPeriod == 0 {
			log.Debugf("Imported %d file objects so far", stats.Total)
		}
		return nil
	})
	if walkErr != nil {
		return stats, walkErr
	}

	log.Infof("Total imported file objects: %d", stats.Total)
	if stats.Skipped > 0 {
		log.Infof("Objects skipped due to unreadable metadata: %d", stats.Skipped)
	}
	return stats, nil
}
