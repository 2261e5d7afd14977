package ncompose

import (
	"container/heap"
)

// readyHeap holds the indexes of vertices whose dependencies have all
// been placed, lowest vertex id first.
type readyHeap struct {
	vertices []*Vertex
	ready    []int
}

func (h *readyHeap) Len() int { return len(h.ready) }

func (h *readyHeap) Less(i, j int) bool {
	return h.vertices[h.ready[i]].ID < h.vertices[h.ready[j]].ID
}

func (h *readyHeap) Swap(i, j int) { h.ready[i], h.ready[j] = h.ready[j], h.ready[i] }

func (h *readyHeap) Push(x any) { h.ready = append(h.ready, x.(int)) }

func (h *readyHeap) Pop() any {
	n := len(h.ready)
	x := h.ready[n-1]
	h.ready = h.ready[:n-1]
	return x
}

func (h *readyHeap) push(i int) { heap.Push(h, i) }

func (h *readyHeap) pop() int {
	//nolint:errcheck // only ints are pushed
	return heap.Pop(h).(int)
}
