package graph

import (
	"fmt"
	"sort"
)

// ExtractCandidates splits the graph into its weakly-connected components
// and returns each as a standalone candidate graph, draining the working
// graph in the process.
//
// Each iteration seeds a breadth-first search at the lowest-index live
// vertex, collects everything reachable over edges treated as undirected,
// materializes the component as a new graph and removes it from the working
// graph. The seed always belongs to its own component, so every iteration
// strictly shrinks the graph and the loop terminates. Candidate order is
// deterministic for a fixed input.
func (g *Graph) ExtractCandidates() ([]*Graph, error) {
	var candidates []*Graph
	for g.NumVertices() > 0 {
		seed := -1
		for v := range g.verts {
			if !g.removed[v] {
				seed = v
				break
			}
		}

		comp := g.component(seed)
		cand := g.induced(comp)

		if removed := g.RemoveVertices(comp); removed != len(comp) || cand.NumVertices() != removed {
			return candidates, &DecompositionError{
				Msg: fmt.Sprintf("component has %d vertices but %d were removed", len(comp), removed),
			}
		}

		if cand.NumVertices() > 0 {
			candidates = append(candidates, cand)
			if len(candidates)%5 == 0 {
				log.Debugf("Extracted candidate graph %d", len(candidates))
			}
		}
	}
	return candidates, nil
}

// component returns the weakly-connected component containing seed, as
// ascending vertex indices.
func (g *Graph) component(seed int) []int {
	visited := map[int]bool{seed: true}
	queue := []int{seed}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, adj := range [2][]int{g.out[v], g.in[v]} {
			for _, n := range adj {
				if !visited[n] && !g.removed[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
	}

	comp := make([]int, 0, len(visited))
	for v := range visited {
		comp = append(comp, v)
	}
	sort.Ints(comp)
	return comp
}

// induced builds a new graph holding copies of the listed vertices and every
// edge whose both endpoints survive. The new graph shares nothing with g.
func (g *Graph) induced(vs []int) *Graph {
	c := New()
	c.extAttrs = g.extAttrs

	idx := make(map[int]int, len(vs))
	for _, v := range vs {
		a := g.verts[v]
		a.SrcFiles = append([]int16(nil), a.SrcFiles...)
		a.Color = append([]float32(nil), a.Color...)
		idx[v] = c.AddVertex(a)
	}
	for _, v := range vs {
		for _, t := range g.out[v] {
			if nt, ok := idx[t]; ok {
				c.AddEdge(idx[v], nt)
			}
		}
	}
	return c
}
