// Package vectorindex holds the immutable, hot-swappable snapshot of
// pattern vectors the Classifier searches against, and the bounded
// top-k search over it. A Snapshot never mutates once built; a reload
// builds an entirely new one and the Loader swaps it in atomically (see
// pkg/loader), so a search in flight always sees a single consistent view.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/phaiel/weaveclassify/pkg/weave"
)

// Snapshot is the immutable result of a successful load: a dense matrix of
// unit-normalized vectors, the pattern each row belongs to, and the model
// descriptor the vectors were produced under. ID identifies this particular
// build so a client polling /status can tell two snapshots apart even when
// their pattern counts and model descriptor happen to match.
type Snapshot struct {
	ID              string
	ModelDescriptor string
	Dimension       int
	ids             []weave.PatternID
	vectors         [][]float32
}

// NewSnapshot builds a Snapshot from parallel ids/vectors slices. Every
// vector must already be unit-normalized and of length dimension; the
// Loader is responsible for that validation before calling this
// constructor, so NewSnapshot itself only re-asserts the invariants rather
// than silently tolerating a malformed artifact.
func NewSnapshot(modelDescriptor string, dimension int, ids []weave.PatternID, vectors [][]float32) (*Snapshot, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("vectorindex: ids/vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vectorindex: %w: pattern %q has dimension %d, expected %d", weave.ErrDimMismatch, ids[i], len(v), dimension)
		}
	}

	idsCopy := make([]weave.PatternID, len(ids))
	copy(idsCopy, ids)
	vectorsCopy := make([][]float32, len(vectors))
	for i, v := range vectors {
		vectorsCopy[i] = append([]float32(nil), v...)
	}

	return &Snapshot{
		ID:              uuid.NewString(),
		ModelDescriptor: modelDescriptor,
		Dimension:       dimension,
		ids:             idsCopy,
		vectors:         vectorsCopy,
	}, nil
}

// Size returns the number of patterns held in the snapshot.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// ScoredMatch is one ranked candidate from a Search, before the Catalogue
// hydrates it with pattern metadata.
type ScoredMatch struct {
	PatternID  weave.PatternID
	Similarity float64
}

// Search returns the k highest-cosine-similarity patterns to query,
// restricted to those for which predicate(id) reports true when predicate
// is non-nil. The predicate is evaluated before each candidate enters the
// heap, so a selective predicate keeps the heap itself small. Results are
// ordered by descending similarity, with ties broken by ascending
// PatternID so that repeated searches over an unchanged snapshot are
// fully deterministic.
//
// Search is a brute-force scan, as in a FlatIndex: exact rather than
// approximate, which the expected pattern-catalogue scale (low thousands)
// makes cheap enough that an approximate index would add complexity
// without a measurable benefit.
func (s *Snapshot) Search(query []float32, k int, predicate func(weave.PatternID) bool) ([]ScoredMatch, error) {
	if s == nil || s.Size() == 0 {
		return nil, weave.ErrIndexEmpty
	}
	if len(query) != s.Dimension {
		return nil, fmt.Errorf("vectorindex: %w: query has dimension %d, expected %d", weave.ErrDimMismatch, len(query), s.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	h := &similarityHeap{}
	heap.Init(h)

	for i, vector := range s.vectors {
		id := s.ids[i]
		if predicate != nil && !predicate(id) {
			continue
		}

		sim := dotProduct(query, vector)

		if h.Len() < k {
			heap.Push(h, similarityItem{id: id, similarity: sim})
			continue
		}
		if sim > (*h)[0].similarity || (sim == (*h)[0].similarity && id < (*h)[0].id) {
			heap.Pop(h)
			heap.Push(h, similarityItem{id: id, similarity: sim})
		}
	}

	results := make([]ScoredMatch, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		item := heap.Pop(h).(similarityItem)
		results[i] = ScoredMatch{PatternID: item.id, Similarity: item.similarity}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].PatternID < results[j].PatternID
	})

	return results, nil
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Confidence maps a cosine similarity in [-1, 1] to a confidence in [0, 1]
// via (sim+1)/2, clamped defensively against floating-point drift at the
// boundaries.
func Confidence(similarity float64) float64 {
	c := (similarity + 1) / 2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// similarityItem is one entry in the bounded min-similarity heap used to
// retain the k best candidates seen so far.
type similarityItem struct {
	id         weave.PatternID
	similarity float64
}

// similarityHeap is a min-heap on similarity: its root is always the
// weakest of the current top-k, so a new candidate only needs comparing
// against index 0 to decide whether it displaces something.
type similarityHeap []similarityItem

func (h similarityHeap) Len() int { return len(h) }
func (h similarityHeap) Less(i, j int) bool {
	if h[i].similarity != h[j].similarity {
		return h[i].similarity < h[j].similarity
	}
	// Among equal similarities the heap root should be the one with the
	// largest id, so it is the first displaced by a smaller-id newcomer
	// (keeping the ascending-id tie-break stable across displacement).
	return h[i].id > h[j].id
}
func (h similarityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *similarityHeap) Push(x interface{}) {
	*h = append(*h, x.(similarityItem))
}

func (h *similarityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
