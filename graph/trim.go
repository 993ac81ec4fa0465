package graph

import "errors"

// TrimStats summarizes one trim pass.
type TrimStats struct {
	Removed  int // vertices purged from the graph
	MinDepth int // marked because they sit above the minimum depth of interest
	NoParent int // marked because they ended up with no edges at all
}

// KeepFunc decides whether a vertex survives a trim pass.
type KeepFunc func(a *Attrs) bool

// TrimWhere marks every live vertex for which keep returns false as a
// non-keeper, purges the marked vertices and returns how many were removed.
func (g *Graph) TrimWhere(keep KeepFunc) int {
	for _, v := range g.Vertices() {
		a := g.Attrs(v)
		if a.Keeper && !keep(a) {
			a.Keeper = false
		}
	}
	return g.purgeNonKeepers()
}

// TrimUnuseful removes unuseful vertices from the graph, starting the
// recursive usefulness evaluation at the children of home.
//
// A vertex is useful if any of its children are useful, or if it is a leaf.
// Vertices at the depth of the Extensions directory must be encrypted
// directories whose children are directories and whose grandchildren sit two
// levels below; vertices at the depth of an extension ID directory must have
// only directory children. When filterDepth is set, vertices above the
// minimum depth of interest are removed as well, and the subgraphs that
// remain are prime candidates for extension directories.
func (g *Graph) TrimUnuseful(home int, filterDepth bool, pats *Patterns) (*TrimStats, error) {
	if !g.Valid(home) {
		return nil, errors.New("must generate the graph before trimming it")
	}
	if pats == nil {
		pats = DefaultPatterns()
	}

	before := g.NumVertices()
	stats := &TrimStats{}
	t := &trimmer{g: g, pats: pats, filterDepth: filterDepth}

	// Usually just one child (.shadow), but just in case.
	for _, n := range g.OutNeighbors(home) {
		t.checkEval(n, false)
	}

	for _, v := range g.Vertices() {
		a := g.Attrs(v)
		if !a.Keeper {
			continue
		}
		if filterDepth && !a.GtMinDepth {
			a.Keeper = false
			stats.MinDepth++
			continue
		}
		if v == home {
			continue
		}
		if g.InDegree(v) == 0 && g.OutDegree(v) == 0 {
			a.Keeper = false
			stats.NoParent++
		}
	}

	if filterDepth {
		g.purgeNonKeepers()

		// Purging can strand vertices; sweep the stragglers too.
		for _, v := range g.Vertices() {
			if g.InDegree(v) == 0 && g.OutDegree(v) == 0 {
				g.Attrs(v).Keeper = false
			}
		}
		g.purgeNonKeepers()

		log.Debugf("Graph now has %d objects", g.NumVertices())
	}

	stats.Removed = before - g.NumVertices()
	log.Infof("Finished trimming %d unuseful nodes from the graph.", stats.Removed)
	log.Debugf("Below min depth:  %d    No parent node:  %d", stats.MinDepth, stats.NoParent)
	return stats, nil
}

func (g *Graph) purgeNonKeepers() int {
	var rm []int
	for _, v := range g.Vertices() {
		if !g.Attrs(v).Keeper {
			rm = append(rm, v)
		}
	}
	return g.RemoveVertices(rm)
}

type trimmer struct {
	g           *Graph
	pats        *Patterns
	filterDepth bool
}

// checkEval recursively evaluates the usefulness of v through the tri-state
// eval attribute. Already-evaluated vertices are not revisited.
func (t *trimmer) checkEval(v int, forceFalse bool) bool {
	g, a := t.g, t.g.Attrs(v)
	if a.Eval != EvalNone {
		return a.Eval == EvalTrue
	}
	if forceFalse {
		return t.forceFalse(v)
	}

	extDepth := t.pats.MinDepth - 2 // depth of the Extensions directory

	// At the Extensions dir level only encrypted directories qualify.
	if a.DirDepth == extDepth && (a.Type != TypeDirectory || !a.Encrypted) {
		return t.forceFalse(v)
	}

	// An Extensions dir holds only directories, and its grandchildren sit
	// exactly two levels below it.
	if a.DirDepth == extDepth {
		allDirChildren := g.OutDegree(v) > 0
		for _, c := range g.OutNeighbors(v) {
			if g.Attrs(c).Type != TypeDirectory {
				allDirChildren = false
				break
			}
			for _, gc := range g.OutNeighbors(c) {
				if g.Attrs(gc).DirDepth-a.DirDepth != 2 {
					t.forceFalse(gc)
				}
			}
		}
		if !allDirChildren {
			return t.forceFalse(v)
		}
	}

	// An extension ID dir holds only version directories.
	if a.DirDepth == t.pats.MinDepth-1 {
		allDirChildren := g.OutDegree(v) > 0
		for _, c := range g.OutNeighbors(v) {
			if g.Attrs(c).Type != TypeDirectory {
				allDirChildren = false
				break
			}
		}
		if !allDirChildren {
			return t.forceFalse(v)
		}
	}

	anyChildrenTrue := g.OutDegree(v) == 0 // leaves are useful by default
	for _, c := range g.OutNeighbors(v) {
		e := t.checkEval(c, false)
		if !e {
			g.Attrs(c).Keeper = false
		}
		anyChildrenTrue = anyChildrenTrue || e
	}

	if anyChildrenTrue {
		a.Eval = EvalTrue
	} else {
		a.Eval = EvalFalse
	}
	if t.filterDepth {
		anyChildrenTrue = anyChildrenTrue && a.DirDepth >= t.pats.MinDepth
	}
	return anyChildrenTrue
}

// forceFalse marks v useless and cascades the verdict to its successors.
func (t *trimmer) forceFalse(v int) bool {
	a := t.g.Attrs(v)
	a.Eval = EvalFalse
	a.Keeper = false
	for _, c := range t.g.OutNeighbors(v) {
		t.checkEval(c, true)
	}
	return false
}
