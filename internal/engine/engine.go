// Package engine is the retrieval core: it orchestrates vector search,
// section expansion, level-aware multi-pass strategies, and search-weight
// re-ranking over a loaded corpus, and normalizes hits into stable Result
// records.
//
// All engine state is immutable after construction, so a single Engine
// serves concurrent queries without locking. Per-query failures degrade to
// empty result lists; no search path returns an error to the caller.
package engine

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"sift/internal/index"
	"sift/internal/store"
)

// QueryType selects the retrieval depth for dynamic search.
type QueryType string

const (
	QuerySimple   QueryType = "simple"
	QueryDetailed QueryType = "detailed"
)

// Config tunes the retrieval strategies. Zero fields take the defaults
// from DefaultConfig.
type Config struct {
	MinChunksSimple   int  // dynamic k lower bound for simple queries
	MaxChunksSimple   int  // dynamic k upper bound for simple queries
	MinChunksDetailed int  // dynamic k lower bound for detailed queries
	MaxChunksDetailed int  // dynamic k upper bound for detailed queries
	DefaultK          int  // legacy Search result count
	SectionExpansion  bool // expand multi-hit sections on detailed queries
	DefaultLanguage   string
}

// DefaultConfig returns the standard retrieval bands.
func DefaultConfig() Config {
	return Config{
		MinChunksSimple:   3,
		MaxChunksSimple:   5,
		MinChunksDetailed: 10,
		MaxChunksDetailed: 20,
		DefaultK:          10,
		SectionExpansion:  true,
		DefaultLanguage:   store.DefaultLanguage,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinChunksSimple <= 0 {
		c.MinChunksSimple = d.MinChunksSimple
	}
	if c.MaxChunksSimple <= 0 {
		c.MaxChunksSimple = d.MaxChunksSimple
	}
	if c.MinChunksDetailed <= 0 {
		c.MinChunksDetailed = d.MinChunksDetailed
	}
	if c.MaxChunksDetailed <= 0 {
		c.MaxChunksDetailed = d.MaxChunksDetailed
	}
	if c.DefaultK <= 0 {
		c.DefaultK = d.DefaultK
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	return c
}

// DynamicOptions parameterizes SearchDynamic.
type DynamicOptions struct {
	QueryType       QueryType
	EstimatedChunks int    // estimated result count from classification, 0 = band minimum
	SourceType      string // equality filter, empty = no filter
	Language        string // equality filter, empty = no filter
}

// Engine performs ranked retrieval over an immutable corpus and index.
type Engine struct {
	idx      index.Index
	corpus   *store.Corpus
	cfg      Config
	embedder Embedder // optional; required only for Retrieve
}

// New creates an Engine over a loaded corpus and its index.
func New(idx index.Index, corpus *store.Corpus, cfg Config) *Engine {
	return &Engine{idx: idx, corpus: corpus, cfg: cfg.withDefaults()}
}

// WithEmbedder attaches the external embedding producer used by Retrieve.
func (e *Engine) WithEmbedder(emb Embedder) *Engine {
	e.embedder = emb
	return e
}

// candidate is an internal hit paired with its passage.
type candidate struct {
	row      int
	distance float32
	passage  *store.Passage
}

// ready reports whether the engine can serve queries at all.
func (e *Engine) ready() bool {
	return e.idx != nil && e.corpus != nil && e.idx.Len() > 0
}

// Search is the legacy single-pass top-k entry point for callers without a
// query classification. No expansion, no level routing, no filters.
func (e *Engine) Search(ctx context.Context, embedding []float32, k int) []Result {
	if k <= 0 {
		k = e.cfg.DefaultK
	}
	if !e.ready() || len(embedding) == 0 {
		return nil
	}
	hits := e.idx.Search(embedding, min(k, e.idx.Len()))
	cands := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if p, ok := e.corpus.Passage(h.Row); ok {
			cands = append(cands, candidate{row: h.Row, distance: h.Distance, passage: p})
		}
	}
	return e.enrichAll(cands)
}

// SearchDynamic chooses an initial k from the query type, oversamples the
// index, applies source/language filters, optionally expands multi-hit
// sections, and returns enriched results in ascending distance order.
func (e *Engine) SearchDynamic(ctx context.Context, embedding []float32, opts DynamicOptions) []Result {
	qid := shortID()
	if !e.ready() || len(embedding) == 0 {
		log.Printf("[Engine] query %s: index not loaded or empty embedding, returning no results", qid)
		return nil
	}

	initialK := e.dynamicK(opts)
	log.Printf("[Engine] query %s: dynamic search type=%s k=%d", qid, opts.QueryType, initialK)

	// Oversample to leave headroom for filtering.
	hits := e.idx.Search(embedding, initialK*2)

	cands := make([]candidate, 0, initialK)
	for _, h := range hits {
		p, ok := e.corpus.Passage(h.Row)
		if !ok {
			continue // index returned an out-of-range row, skip silently
		}
		if opts.SourceType != "" && p.SourceType != opts.SourceType {
			continue
		}
		if opts.Language != "" && p.Language != opts.Language {
			continue
		}
		cands = append(cands, candidate{row: h.Row, distance: h.Distance, passage: p})
		if len(cands) >= initialK {
			break
		}
	}

	if e.cfg.SectionExpansion && opts.QueryType == QueryDetailed {
		cands = e.expandSections(qid, cands)
	}

	results := e.enrichAll(cands)
	log.Printf("[Engine] query %s: %d results", qid, len(results))
	return results
}

// dynamicK derives the initial retrieval count from the query type and the
// classifier's chunk estimate, clamped to the configured band.
func (e *Engine) dynamicK(opts DynamicOptions) int {
	lo, hi := e.cfg.MinChunksSimple, e.cfg.MaxChunksSimple
	if opts.QueryType == QueryDetailed {
		lo, hi = e.cfg.MinChunksDetailed, e.cfg.MaxChunksDetailed
	}
	k := max(lo, min(opts.EstimatedChunks, hi))
	return min(k, e.idx.Len())
}

// expandSections implements section-aware expansion: any section holding
// more than one initial hit is widened to all of its rows, each carrying
// the best (minimum) distance observed among the section's hits. Sections
// with a single hit pass through untouched. Output is de-duplicated by row
// (first occurrence wins) and re-sorted ascending by distance.
func (e *Engine) expandSections(qid string, initial []candidate) []candidate {
	bySection := make(map[string][]candidate)
	order := make([]string, 0, len(initial))
	for _, c := range initial {
		id := c.passage.SectionID
		if _, seen := bySection[id]; !seen {
			order = append(order, id)
		}
		bySection[id] = append(bySection[id], c)
	}

	var expanded []candidate
	for _, sectionID := range order {
		hits := bySection[sectionID]
		if len(hits) <= 1 {
			expanded = append(expanded, hits...)
			continue
		}

		best := hits[0].distance
		for _, h := range hits[1:] {
			if h.distance < best {
				best = h.distance
			}
		}
		log.Printf("[Engine] query %s: expanding section %s (%d hits)", qid, sectionID, len(hits))
		for _, row := range e.corpus.SectionRows(sectionID) {
			if p, ok := e.corpus.Passage(row); ok {
				expanded = append(expanded, candidate{row: row, distance: best, passage: p})
			}
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool { return expanded[i].distance < expanded[j].distance })
	return dedupe(expanded)
}

// dedupe removes duplicate rows keeping the first (highest ranked)
// occurrence.
func dedupe(cands []candidate) []candidate {
	seen := make(map[int]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if seen[c.row] {
			continue
		}
		seen[c.row] = true
		out = append(out, c)
	}
	return out
}

// shortID returns a compact per-query trace id for log correlation.
func shortID() string {
	return uuid.NewString()[:8]
}
