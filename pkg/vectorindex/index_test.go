package vectorindex

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/phaiel/weaveclassify/pkg/weave"
)

func unit(x, y float32) []float32 {
	norm := float32(math.Sqrt(float64(x*x + y*y)))
	if norm == 0 {
		return []float32{0, 0}
	}
	return []float32{x / norm, y / norm}
}

func TestSnapshotSearchOrdersByDescendingSimilarity(t *testing.T) {
	ids := []weave.PatternID{"a/b", "a/c", "a/d"}
	vectors := [][]float32{
		unit(1, 0),
		unit(0.7, 0.3),
		unit(0, 1),
	}

	snap, err := NewSnapshot("model;dim=2", 2, ids, vectors)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	results, err := snap.Search(unit(1, 0), 3, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].PatternID != "a/b" {
		t.Fatalf("expected closest match a/b first, got %s", results[0].PatternID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Similarity < results[i].Similarity {
			t.Fatalf("results not sorted descending: %v then %v", results[i-1], results[i])
		}
	}
}

func TestSnapshotSearchTieBreakAscendingID(t *testing.T) {
	ids := []weave.PatternID{"z/last", "a/first", "m/mid"}
	vectors := [][]float32{unit(1, 0), unit(1, 0), unit(1, 0)}

	snap, err := NewSnapshot("model;dim=2", 2, ids, vectors)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	results, err := snap.Search(unit(1, 0), 3, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].PatternID != "a/first" || results[1].PatternID != "m/mid" || results[2].PatternID != "z/last" {
		t.Fatalf("expected ascending id tie-break, got %v", results)
	}
}

func TestSnapshotSearchBoundedK(t *testing.T) {
	ids := []weave.PatternID{"a/1", "a/2", "a/3", "a/4"}
	vectors := [][]float32{unit(1, 0), unit(0.9, 0.1), unit(0.1, 0.9), unit(0, 1)}

	snap, err := NewSnapshot("model;dim=2", 2, ids, vectors)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	results, err := snap.Search(unit(1, 0), 2, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].PatternID != "a/1" || results[1].PatternID != "a/2" {
		t.Fatalf("expected top-2 nearest, got %v", results)
	}
}

func TestSnapshotSearchPredicateFilter(t *testing.T) {
	ids := []weave.PatternID{"sleep/nap", "feeding/bottle"}
	vectors := [][]float32{unit(1, 0), unit(1, 0)}

	snap, err := NewSnapshot("model;dim=2", 2, ids, vectors)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	onlyFeeding := func(id weave.PatternID) bool {
		return strings.HasPrefix(string(id), "feeding/")
	}

	results, err := snap.Search(unit(1, 0), 5, onlyFeeding)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].PatternID != "feeding/bottle" {
		t.Fatalf("expected only feeding/bottle, got %v", results)
	}
}

func TestSnapshotSearchNilPredicateMatchesAll(t *testing.T) {
	ids := []weave.PatternID{"sleep/nap", "feeding/bottle"}
	vectors := [][]float32{unit(1, 0), unit(1, 0)}

	snap, err := NewSnapshot("model;dim=2", 2, ids, vectors)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	results, err := snap.Search(unit(1, 0), 5, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both patterns with a nil predicate, got %v", results)
	}
}

func TestSnapshotSearchEmptyIndex(t *testing.T) {
	snap, err := NewSnapshot("model;dim=2", 2, nil, nil)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	if _, err := snap.Search(unit(1, 0), 3, nil); !errors.Is(err, weave.ErrIndexEmpty) {
		t.Fatalf("expected ErrIndexEmpty, got %v", err)
	}
}

func TestSnapshotSearchDimensionMismatch(t *testing.T) {
	snap, err := NewSnapshot("model;dim=2", 2, []weave.PatternID{"a/b"}, [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}

	if _, err := snap.Search([]float32{1, 0, 0}, 3, nil); !errors.Is(err, weave.ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
}

func TestNewSnapshotRejectsDimensionMismatch(t *testing.T) {
	_, err := NewSnapshot("model;dim=2", 2, []weave.PatternID{"a/b"}, [][]float32{{1, 0, 0}})
	if !errors.Is(err, weave.ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
}

func TestConfidenceMapping(t *testing.T) {
	cases := []struct {
		similarity float64
		want       float64
	}{
		{1.0, 1.0},
		{-1.0, 0.0},
		{0.0, 0.5},
	}
	for _, c := range cases {
		got := Confidence(c.similarity)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Confidence(%v) = %v, want %v", c.similarity, got, c.want)
		}
	}
}

func TestConfidenceClampsOutOfRange(t *testing.T) {
	if got := Confidence(1.5); got != 1.0 {
		t.Errorf("Confidence(1.5) = %v, want 1.0", got)
	}
	if got := Confidence(-1.5); got != 0.0 {
		t.Errorf("Confidence(-1.5) = %v, want 0.0", got)
	}
}
