// Package topk keeps the best n scored items seen in a stream.
package topk

import (
	"container/heap"
	"sort"

	"github.com/munnellg/tri/internal/vector"
)

// Selector retains the n highest-scoring items offered to it. The working set
// is a min-heap, so the weakest retained item is always at the root.
type Selector struct {
	n     int
	items minHeap
}

// New returns a selector that keeps at most n items. n <= 0 keeps nothing.
func New(n int) *Selector {
	if n < 0 {
		n = 0
	}
	return &Selector{n: n, items: make(minHeap, 0, n)}
}

// Offer considers a candidate. While fewer than n items are held it is always
// admitted; afterwards it replaces the current minimum when its score is not
// lower than that minimum.
func (s *Selector) Offer(item vector.ObjectVector) {
	if s.n == 0 {
		return
	}
	if len(s.items) < s.n {
		heap.Push(&s.items, item)
		return
	}
	if item.Score < s.items[0].Score {
		return
	}
	s.items[0] = item
	heap.Fix(&s.items, 0)
}

// Len returns the number of retained items.
func (s *Selector) Len() int { return len(s.items) }

// Results returns the retained items sorted by descending score.
// The selector can keep receiving offers afterwards.
func (s *Selector) Results() []vector.ObjectVector {
	out := make([]vector.ObjectVector, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

type minHeap []vector.ObjectVector

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) {
	*h = append(*h, x.(vector.ObjectVector))
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = vector.ObjectVector{}
	*h = old[:n-1]
	return item
}
