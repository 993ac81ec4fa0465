package graph

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Display colors, RGBA in [0,1].
var (
	colorRed    = []float32{0.640625, 0, 0, 0.9} // objects from the first source only
	colorBlue   = []float32{0, 0, 0.640625, 0.9} // objects from the second source only
	colorPurple = []float32{0.502, 0, 0.502, 0.9}
	colorCyan   = []float32{0, 0.749, 0.749, 0.9} // unknown object kinds
	colorBlack  = []float32{0, 0, 0, 0.8}         // non-keepers
)

// AssignDisplayAttrs fills in the cosmetic color and shape attributes used
// when rendering: files draw as circles (hexagons when encrypted),
// directories as triangles (double circles when encrypted), everything else
// as a cyan square. Colors already set are left alone.
func (g *Graph) AssignDisplayAttrs() {
	g.EnableExtendedAttrs()
	for _, v := range g.Vertices() {
		a := g.Attrs(v)

		color := colorRed
		switch {
		case len(a.SrcFiles) >= 2:
			color = colorPurple
		case containsSrc(a.SrcFiles, 2):
			color = colorBlue
		}

		var shape string
		switch a.Type {
		case TypeFile:
			shape = "circle"
			if a.Encrypted {
				shape = "hexagon"
			}
		case TypeDirectory:
			shape = "triangle"
			if a.Encrypted {
				shape = "doublecircle"
			}
		default:
			color = colorCyan
			shape = "square"
		}

		if len(a.Color) == 0 {
			a.Color = color
		}
		a.Shape = shape
		if !a.Keeper {
			a.Color = colorBlack
		}
	}
}

// WriteDOT renders the graph in Graphviz DOT format. Node labels carry the
// filename tail, inode, depth and the min-depth flag.
func (g *Graph) WriteDOT(w io.Writer, name string) error {
	g.AssignDisplayAttrs()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", name)
	fmt.Fprintln(bw, "\tnode [style=filled];")
	for _, v := range g.Vertices() {
		a := g.Attrs(v)
		label := fmt.Sprintf("%s\\n%d d=%d gt=%t", escapeDOT(a.FilenameEnd), a.Inode, a.DirDepth, a.GtMinDepth)
		fmt.Fprintf(bw, "\tn%d [label=\"%s\", shape=%s, fillcolor=\"%s\"];\n", v, label, a.Shape, hexRGBA(a.Color))
	}
	for _, v := range g.Vertices() {
		for _, t := range g.OutNeighbors(v) {
			fmt.Fprintf(bw, "\tn%d -> n%d;\n", v, t)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func hexRGBA(c []float32) string {
	if len(c) < 4 {
		return "#a0a0a0"
	}
	return fmt.Sprintf("#%02x%02x%02x%02x",
		int(c[0]*255), int(c[1]*255), int(c[2]*255), int(c[3]*255))
}

func containsSrc(srcs []int16, id int16) bool {
	for _, s := range srcs {
		if s == id {
			return true
		}
	}
	return false
}
