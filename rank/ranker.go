package rank

import (
	"container/heap"
	"image"
	"sort"
	"time"
)

// Candidate is a scene that may end up in the final results: a sampled
// frame, its position in the video, and the smile confidence.
type Candidate struct {
	Timestamp time.Duration
	Score     float64
	Frame     image.Image
}

// beats reports whether a should be kept over b: higher score wins,
// equal scores prefer the earlier timestamp.
func (a Candidate) beats(b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Timestamp < b.Timestamp
}

// candidateHeap is a min-heap: the root is the weakest candidate and the
// first to be evicted.
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[j].beats(h[i]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// Ranker keeps a bounded top-K selection of scene candidates. Candidates
// at or below the minimum score are never inserted, regardless of
// occupancy. On Finalize, candidates closer than the diversity window to
// an already-selected scene are suppressed, then the survivors come back
// ordered by score descending with ties on ascending timestamp.
type Ranker struct {
	k        int
	minScore float64
	window   time.Duration
	heap     candidateHeap
}

func New(k int, minScore float64, window time.Duration) *Ranker {
	return &Ranker{
		k:        k,
		minScore: minScore,
		window:   window,
		heap:     make(candidateHeap, 0, k),
	}
}

// Offer feeds one candidate into the selection. It reports whether the
// candidate was retained.
func (r *Ranker) Offer(c Candidate) bool {
	if r.k <= 0 || c.Score <= r.minScore {
		return false
	}

	if r.heap.Len() < r.k {
		heap.Push(&r.heap, c)
		return true
	}

	if !c.beats(r.heap[0]) {
		return false
	}
	r.heap[0] = c
	heap.Fix(&r.heap, 0)
	return true
}

// Len is the current number of retained candidates.
func (r *Ranker) Len() int {
	return r.heap.Len()
}

// Finalize drains the selection. The ranker is empty afterwards.
func (r *Ranker) Finalize() []Candidate {
	ranked := make([]Candidate, len(r.heap))
	copy(ranked, r.heap)
	r.heap = r.heap[:0]

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].beats(ranked[j]) })

	if r.window <= 0 {
		return ranked
	}

	selected := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		diverse := true
		for _, s := range selected {
			gap := c.Timestamp - s.Timestamp
			if gap < 0 {
				gap = -gap
			}
			if gap < r.window {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		}
	}
	return selected
}
