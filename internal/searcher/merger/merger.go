package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
)

// Merge k-way merges lists that are each already in ranker.Less order. A
// non-positive limit keeps everything.
func Merge(lists [][]ranker.Match, limit int) []ranker.Match {
	total := 0
	h := make(cursorHeap, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			h = append(h, cursor{list: l})
			total += len(l)
		}
	}
	if limit <= 0 || limit > total {
		limit = total
	}
	heap.Init(&h)

	result := make([]ranker.Match, 0, limit)
	for h.Len() > 0 && len(result) < limit {
		top := &h[0]
		result = append(result, top.list[top.pos])
		top.pos++
		if top.pos == len(top.list) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return result
}

type cursor struct {
	list []ranker.Match
	pos  int
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	return ranker.Less(h[i].list[h[i].pos], h[j].list[h[j].pos])
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
