package ncompose

import (
	"fmt"
	"strings"

	"github.com/muir/ncompose/ntypes"
)

type VertexKind uint8

const (
	// BindingVertex is built by a binding of the setup.
	BindingVertex VertexKind = iota
	// ArrayVertex is a []T of every binding of T.
	ArrayVertex
	// LazyVertex is a func() T.
	LazyVertex
	// SeqVertex is an iter.Seq[T] of every binding of T.
	SeqVertex
	// ArgVertex is a composition argument.
	ArgVertex
	// AccumulatorVertex collects the instances created by a root.
	AccumulatorVertex
	// OverrideVertex is a value supplied with ctx.Override or ctx.Let.
	OverrideVertex
	// ImplicitVertex is built by a type that was not bound.
	ImplicitVertex
)

var vertexKindNames = [...]string{
	BindingVertex:     "binding",
	ArrayVertex:       "array",
	LazyVertex:        "lazy",
	SeqVertex:         "seq",
	ArgVertex:         "arg",
	AccumulatorVertex: "accumulator",
	OverrideVertex:    "override",
	ImplicitVertex:    "implicit",
}

func (k VertexKind) String() string {
	if int(k) < len(vertexKindNames) {
		return vertexKindNames[k]
	}
	return fmt.Sprintf("VertexKind(%d)", int(k))
}

// Vertex is one instance in a construction plan.
type Vertex struct {
	ID   int
	Kind VertexKind
	// Binding is set for binding, arg and implicit vertices.  Generic
	// bindings appear with their type arguments applied.
	Binding  *Binding
	Type     *ntypes.Type
	Tag      Tag
	Lifetime Lifetime
	Override *Override
	// Edges are the dependencies, in the order they are injected.
	Edges []*Edge
	// Accumulated lists the vertices collected by an accumulator.
	Accumulated []*Vertex

	key string
}

func (v *Vertex) String() string {
	s := fmt.Sprintf("%d:%s %s", v.ID, v.Kind, v.Type)
	if !v.Tag.IsNone() {
		s += "(" + v.Tag.String() + ")"
	}
	return s
}

// Edge is the injection of To into From.
type Edge struct {
	From      *Vertex
	To        *Vertex
	Injection Injection
	// Lazy edges are resolved when the consumer asks for the value and
	// so never close a construction cycle.
	Lazy     bool
	Position int
}

type ResolvedRoot struct {
	Root   *Root
	Vertex *Vertex
}

// VariantChoice records the candidate used at an injection that had
// more than one.
type VariantChoice struct {
	Injection Injection
	Chosen    *Vertex
	Of        int
}

// DependencyGraph is the construction plan of a setup.
type DependencyGraph struct {
	Setup    *Setup
	Vertices []*Vertex
	Edges    []*Edge
	Roots    []ResolvedRoot
	Variant  []VariantChoice
	// Iterations is the number of variants that were tried.
	Iterations int
}

// Root returns the vertex of the named root.
func (g *DependencyGraph) Root(name string) (*Vertex, bool) {
	for _, r := range g.Roots {
		if r.Root.Name == name {
			return r.Vertex, true
		}
	}
	return nil, false
}

// TopologicalOrder returns the vertices so that every vertex comes after
// the vertices it depends on through non-lazy edges.  Among vertices
// that are ready at the same time the lowest id comes first.
func (g *DependencyGraph) TopologicalOrder() []*Vertex {
	index := make(map[*Vertex]int, len(g.Vertices))
	for i, v := range g.Vertices {
		index[v] = i
	}
	waiting := make([]int, len(g.Vertices))
	consumers := make([][]int, len(g.Vertices))
	for i, v := range g.Vertices {
		for _, e := range v.Edges {
			if e.Lazy {
				continue
			}
			waiting[i]++
			consumers[index[e.To]] = append(consumers[index[e.To]], i)
		}
	}
	h := &readyHeap{vertices: g.Vertices}
	for i := range g.Vertices {
		if waiting[i] == 0 {
			h.push(i)
		}
	}
	order := make([]*Vertex, 0, len(g.Vertices))
	for h.Len() > 0 {
		i := h.pop()
		order = append(order, g.Vertices[i])
		for _, c := range consumers[i] {
			waiting[c]--
			if waiting[c] == 0 {
				h.push(c)
			}
		}
	}
	return order
}

func (g *DependencyGraph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s (%d vertices, %d variants tried)\n", g.Setup, len(g.Vertices), g.Iterations)
	for _, r := range g.Roots {
		fmt.Fprintf(&b, "  %s -> %s\n", r.Root, r.Vertex)
	}
	for _, v := range g.Vertices {
		fmt.Fprintf(&b, "  %s\n", v)
		for _, e := range v.Edges {
			lazy := ""
			if e.Lazy {
				lazy = " lazy"
			}
			fmt.Fprintf(&b, "    %s -> %s%s\n", e.Injection, e.To, lazy)
		}
	}
	return b.String()
}
