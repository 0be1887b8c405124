package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/classify"
	"sift/internal/index"
	"sift/internal/mathutil"
	"sift/internal/store"
)

// testPassage builds a minimal passage for a row.
func testPassage(id, sectionID string, order int, level string) store.Passage {
	weight := float32(1.0)
	switch level {
	case store.LevelQuickFact:
		weight = 1.2
	case store.LevelQA:
		weight = 1.15
	}
	return store.Passage{
		ID:           id,
		SectionID:    sectionID,
		ChunkOrder:   order,
		Content:      "content of " + id,
		OriginalText: "content of " + id,
		Title:        "Test Manual",
		Subtitle:     store.DefaultSubtitle,
		PageNumber:   "1",
		Version:      store.DefaultVersion,
		Language:     store.DefaultLanguage,
		SourceType:   "manual",
		Level:        level,
		SearchWeight: weight,
	}
}

// newTestEngine builds an engine over explicit vectors and passages using
// the exact flat index.
func newTestEngine(t *testing.T, embeddings [][]float32, passages []store.Passage, cfg Config) *Engine {
	t.Helper()
	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}
	corpus, err := store.New(embeddings, passages, ids)
	require.NoError(t, err)
	idx, err := index.New(embeddings, index.KindFlat, index.Options{})
	require.NoError(t, err)
	return New(idx, corpus, cfg)
}

func unit(vals ...float32) []float32 { return mathutil.Normalize(vals) }

func TestSearchDynamic_SectionExpansion(t *testing.T) {
	// Section A has 3 rows; the query hits 2 of them plus one row of
	// section B. Expansion must return all 3 A rows, each carrying the
	// best distance seen among the original A hits.
	embeddings := [][]float32{
		unit(1, 0),        // 0: A, exact match
		unit(0.99, 0.14),  // 1: A, near match
		unit(0, 1),        // 2: A, far
		unit(0.95, 0.31),  // 3: B, third-closest
		unit(-1, 0),       // 4: B, opposite
		unit(0, -1),       // 5: B, far
	}
	passages := []store.Passage{
		testPassage("a0", "A", 0, store.LevelProcedure),
		testPassage("a1", "A", 1, store.LevelProcedure),
		testPassage("a2", "A", 2, store.LevelProcedure),
		testPassage("b0", "B", 0, store.LevelProcedure),
		testPassage("b1", "B", 1, store.LevelProcedure),
		testPassage("b2", "B", 2, store.LevelProcedure),
	}
	e := newTestEngine(t, embeddings, passages, Config{
		MinChunksDetailed: 3,
		MaxChunksDetailed: 3,
		SectionExpansion:  true,
	})

	results := e.SearchDynamic(context.Background(), unit(1, 0), DynamicOptions{
		QueryType:       QueryDetailed,
		EstimatedChunks: 3,
	})
	require.Len(t, results, 4)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "a0")
	require.Contains(t, byID, "a1")
	require.Contains(t, byID, "a2") // pulled in by expansion
	require.Contains(t, byID, "b0") // single hit passes through

	// All A rows carry the section's best (minimum) distance.
	best := byID["a0"].Distance
	assert.Equal(t, best, byID["a1"].Distance)
	assert.Equal(t, best, byID["a2"].Distance)

	// Ascending distance order overall.
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchDynamic_NoExpansionForSimple(t *testing.T) {
	embeddings := [][]float32{unit(1, 0), unit(0.99, 0.14), unit(0, 1)}
	passages := []store.Passage{
		testPassage("a0", "A", 0, store.LevelProcedure),
		testPassage("a1", "A", 1, store.LevelProcedure),
		testPassage("a2", "A", 2, store.LevelProcedure),
	}
	e := newTestEngine(t, embeddings, passages, Config{
		MinChunksSimple:  2,
		MaxChunksSimple:  2,
		SectionExpansion: true,
	})

	results := e.SearchDynamic(context.Background(), unit(1, 0), DynamicOptions{
		QueryType:       QuerySimple,
		EstimatedChunks: 2,
	})
	// Simple queries never expand: two rows of a three-row section come
	// back alone, each at its own raw distance.
	require.Len(t, results, 2)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestSearchDynamic_Filters(t *testing.T) {
	embeddings := [][]float32{unit(1, 0), unit(0.99, 0.14), unit(0.97, 0.24)}
	passages := []store.Passage{
		testPassage("m0", "A", 0, store.LevelProcedure),
		testPassage("f0", "B", 0, store.LevelProcedure),
		testPassage("m1", "C", 0, store.LevelProcedure),
	}
	passages[1].SourceType = "faq"
	passages[2].Language = "es-ES"

	e := newTestEngine(t, embeddings, passages, Config{})

	results := e.SearchDynamic(context.Background(), unit(1, 0), DynamicOptions{
		QueryType:  QuerySimple,
		SourceType: "manual",
		Language:   store.DefaultLanguage,
	})
	require.Len(t, results, 1)
	assert.Equal(t, "m0", results[0].ID)
}

func TestSearchDynamic_NeverExceedsKOrRepeats(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	var embeddings [][]float32
	var passages []store.Passage
	for i := 0; i < 40; i++ {
		embeddings = append(embeddings, unit(float32(r.NormFloat64()), float32(r.NormFloat64()), float32(r.NormFloat64())))
		passages = append(passages, testPassage(fmt.Sprintf("p%d", i), fmt.Sprintf("S%d", i%7), i, store.LevelProcedure))
	}
	e := newTestEngine(t, embeddings, passages, Config{SectionExpansion: true})

	results := e.SearchDynamic(context.Background(), unit(1, 0.2, -0.1), DynamicOptions{
		QueryType:       QueryDetailed,
		EstimatedChunks: 8,
	})

	seen := map[int]bool{}
	for _, res := range results {
		assert.GreaterOrEqual(t, res.Row, 0)
		assert.Less(t, res.Row, 40)
		assert.False(t, seen[res.Row], "duplicate row %d", res.Row)
		seen[res.Row] = true
	}
}

func TestSearch_LegacyTopK(t *testing.T) {
	embeddings := [][]float32{unit(1, 0), unit(0.9, 0.44), unit(0, 1)}
	passages := []store.Passage{
		testPassage("a", "A", 0, store.LevelProcedure),
		testPassage("b", "B", 0, store.LevelProcedure),
		testPassage("c", "C", 0, store.LevelProcedure),
	}
	e := newTestEngine(t, embeddings, passages, Config{})

	results := e.Search(context.Background(), unit(1, 0), 2)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearch_EmptyStateReturnsEmpty(t *testing.T) {
	e := newTestEngine(t, nil, nil, Config{})
	assert.Empty(t, e.Search(context.Background(), unit(1, 0), 5))
	assert.Empty(t, e.SearchLevelAware(context.Background(), unit(1, 0), classify.Setup, 5))

	// Nil embedding on a loaded engine also degrades to empty.
	loaded := newTestEngine(t, [][]float32{unit(1, 0)}, []store.Passage{testPassage("a", "A", 0, store.LevelProcedure)}, Config{})
	assert.Empty(t, loaded.SearchDynamic(context.Background(), nil, DynamicOptions{}))
}

func TestSearchDynamic_Idempotent(t *testing.T) {
	embeddings := [][]float32{unit(1, 0), unit(0.9, 0.44), unit(0, 1), unit(0.7, 0.71)}
	passages := []store.Passage{
		testPassage("a", "A", 0, store.LevelProcedure),
		testPassage("b", "B", 0, store.LevelProcedure),
		testPassage("c", "C", 0, store.LevelProcedure),
		testPassage("d", "D", 0, store.LevelProcedure),
	}
	e := newTestEngine(t, embeddings, passages, Config{})

	q := unit(0.8, 0.6)
	first := e.SearchDynamic(context.Background(), q, DynamicOptions{QueryType: QuerySimple})
	second := e.SearchDynamic(context.Background(), q, DynamicOptions{QueryType: QuerySimple})
	assert.Equal(t, first, second)
}
