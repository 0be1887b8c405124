package index

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"sift/internal/mathutil"
)

// unitVectors generates n deterministic unit vectors of the given
// dimensionality.
func unitVectors(n, dims int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for d := range v {
			v[d] = float32(r.NormFloat64())
		}
		out[i] = mathutil.Normalize(v)
	}
	return out
}

func TestNew_AutoSelection(t *testing.T) {
	small, err := New(unitVectors(50, 8, 1), KindAuto, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if small.Kind() != KindFlat {
		t.Errorf("expected flat index for 50 vectors, got %s", small.Kind())
	}

	large, err := New(unitVectors(200, 8, 1), KindAuto, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if large.Kind() != KindIVF {
		t.Errorf("expected ivf index for 200 vectors, got %s", large.Kind())
	}

	// Explicit flat request wins regardless of size.
	forced, err := New(unitVectors(200, 8, 1), KindFlat, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if forced.Kind() != KindFlat {
		t.Errorf("expected flat index when requested, got %s", forced.Kind())
	}
}

func TestNew_RaggedMatrix(t *testing.T) {
	_, err := New([][]float32{{1, 0}, {1, 0, 0}}, KindAuto, Options{})
	if err == nil {
		t.Fatal("expected error for ragged matrix")
	}
}

func TestFlat_Search(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	for i := range vectors {
		vectors[i] = mathutil.Normalize(vectors[i])
	}

	idx, err := New(vectors, KindFlat, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	hits := idx.Search([]float32{1, 0, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Row != 0 {
		t.Errorf("expected exact match first, got row %d", hits[0].Row)
	}
	if hits[1].Row != 1 {
		t.Errorf("expected near match second, got row %d", hits[1].Row)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("hits not in ascending distance order")
	}
}

func TestSearch_NeverExceedsKOrRepeatsRows(t *testing.T) {
	vectors := unitVectors(150, 16, 7)
	for _, kind := range []Kind{KindFlat, KindIVF} {
		idx, err := New(vectors, kind, Options{})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", kind, err)
		}

		query := vectors[42]
		hits := idx.Search(query, 10)
		if len(hits) > 10 {
			t.Errorf("%s: got %d hits for k=10", kind, len(hits))
		}

		seen := map[int]bool{}
		for _, h := range hits {
			if h.Row < 0 || h.Row >= len(vectors) {
				t.Errorf("%s: invalid row %d", kind, h.Row)
			}
			if seen[h.Row] {
				t.Errorf("%s: duplicate row %d", kind, h.Row)
			}
			seen[h.Row] = true
		}
	}
}

func TestSearch_Idempotent(t *testing.T) {
	vectors := unitVectors(300, 16, 3)
	for _, kind := range []Kind{KindFlat, KindIVF} {
		idx, err := New(vectors, kind, Options{})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", kind, err)
		}

		query := vectors[5]
		first := idx.Search(query, 7)
		second := idx.Search(query, 7)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: repeated searches differ", kind)
		}
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := New(nil, KindAuto, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if hits := idx.Search([]float32{1, 0}, 5); len(hits) != 0 {
		t.Errorf("expected no hits from empty index, got %d", len(hits))
	}
	if idx.Len() != 0 {
		t.Errorf("expected Len()=0, got %d", idx.Len())
	}
}

func TestIVF_FindsExactMatch(t *testing.T) {
	vectors := unitVectors(500, 24, 11)
	idx, err := New(vectors, KindIVF, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// The query IS an indexed vector, so its own cluster must be the
	// nearest probe and the exact row must come back first.
	query := vectors[123]
	hits := idx.Search(query, 5)
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].Row != 123 {
		t.Errorf("expected row 123 first, got %d", hits[0].Row)
	}
	if math.Abs(float64(hits[0].Distance)) > 1e-5 {
		t.Errorf("expected near-zero distance for exact match, got %f", hits[0].Distance)
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	vectors := unitVectors(10, 8, 2)
	idx, err := New(vectors, KindFlat, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	hits := idx.Search(vectors[0], 50)
	if len(hits) != 10 {
		t.Errorf("expected all 10 rows, got %d", len(hits))
	}
}
