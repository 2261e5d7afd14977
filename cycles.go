package ncompose

import (
	"strings"
)

// findCycle returns the vertices of a cycle of non-lazy edges, or nil.
// The cycle starts and ends with the same vertex.
func findCycle(vertices []*Vertex) []*Vertex {
	const (
		white = iota
		grey
		black
	)
	color := make(map[*Vertex]int, len(vertices))
	var stack []*Vertex
	var found []*Vertex
	var visit func(v *Vertex) bool
	visit = func(v *Vertex) bool {
		color[v] = grey
		stack = append(stack, v)
		for _, e := range v.Edges {
			if e.Lazy {
				continue
			}
			switch color[e.To] {
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == e.To {
						found = append(append([]*Vertex(nil), stack[i:]...), e.To)
						return true
					}
				}
			case white:
				if visit(e.To) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[v] = black
		return false
	}
	for _, v := range vertices {
		if color[v] == white && visit(v) {
			return found
		}
	}
	return nil
}

// cycleDiagnostic classifies a cycle: shared instances can never be part
// of one.
func cycleDiagnostic(cycle []*Vertex) (DiagnosticID, string) {
	id := CyclicDependency
	names := make([]string, len(cycle))
	for i, v := range cycle {
		names[i] = v.Type.String()
		if !v.Tag.IsNone() {
			names[i] += "(" + v.Tag.String() + ")"
		}
		if v.Lifetime.cycleIntolerant() {
			id = LifetimeCycle
		}
	}
	return id, strings.Join(names, " -> ")
}

func cycleLocations(cycle []*Vertex) []Location {
	var out []Location
	for _, v := range cycle {
		if v.Binding != nil {
			out = append(out, v.Binding.Location)
		}
	}
	return out
}
