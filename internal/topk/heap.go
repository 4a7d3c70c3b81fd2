// Package topk implements the bounded min-heap used by both the text and
// image retrievers to select the k best-scoring results without sorting
// the full candidate set.
//
// Both retrievers convert into one canonical element shape — Result{ID,
// Score} — at their boundary instead of inventing their own ordering, so
// the heap itself only ever compares a single tuple layout.
package topk

import "container/heap"

// Result is the canonical (id, score) tuple produced by a query. ID is a
// docId for the text retriever or an imageId for the image retriever.
type Result struct {
	ID    string
	Score float64
}

// less reports whether a sorts before b under the documented tie-break:
// higher score wins; on equal score the lexicographically smaller ID wins.
func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// resultHeap is a min-heap of Result ordered by less, so the weakest
// current member of the top-k set is always at index 0 and can be evicted
// in O(log k) when a better candidate arrives.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Selector accumulates scored results and retains only the k best seen so
// far. Not safe for concurrent use; each query owns its own Selector.
type Selector struct {
	k int
	h resultHeap
}

// NewSelector returns a Selector that retains at most k results. k <= 0
// yields a no-op Selector: every Offer is ignored and Results always
// returns an empty slice.
func NewSelector(k int) *Selector {
	return &Selector{k: k, h: make(resultHeap, 0, max(k, 0))}
}

// Offer considers r for inclusion in the top-k set.
func (s *Selector) Offer(r Result) {
	if s.k <= 0 {
		return
	}
	if len(s.h) < s.k {
		heap.Push(&s.h, r)
		return
	}
	if less(s.h[0], r) {
		s.h[0] = r
		heap.Fix(&s.h, 0)
	}
}

// Results returns a copy of the selector's contents sorted best-first under
// the same tie-break rule used internally; the selector itself is unchanged.
func (s *Selector) Results() []Result {
	out := make([]Result, len(s.h))
	copy(out, s.h)
	// Sort descending by score, tie-break ascending by ID — the inverse of
	// less, since less defines the min-heap (weakest-first) ordering.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j-1], out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
