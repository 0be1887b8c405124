package engine

import (
	"context"
	"log"
	"sort"

	"sift/internal/classify"
	"sift/internal/store"
)

// levelOversample is how far each level-filtered sub-search oversamples
// the index relative to its sub-budget, capped at the index size.
const levelOversample = 10

// SearchLevelAware routes the query to a per-category sequence of
// level-filtered sub-searches, applies search-weight re-ranking, and
// returns at most maxResults enriched results. Unknown or empty categories
// run the progressive strategy; a failing strategy downgrades to
// progressive rather than failing the query.
func (e *Engine) SearchLevelAware(ctx context.Context, embedding []float32, category classify.Category, maxResults int) (results []Result) {
	qid := shortID()
	if !e.ready() || len(embedding) == 0 {
		log.Printf("[Engine] query %s: index not loaded or empty embedding, returning no results", qid)
		return nil
	}
	if maxResults <= 0 {
		maxResults = e.cfg.DefaultK
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] query %s: %s strategy failed (%v), downgrading to progressive", qid, category, r)
			results = e.runProgressive(embedding, maxResults)
		}
	}()

	log.Printf("[Engine] query %s: level-aware search strategy=%s max=%d", qid, category, maxResults)

	var cands []candidate
	switch category {
	case classify.QuickFacts:
		cands = e.searchQuickFacts(embedding, maxResults)
	case classify.Troubleshooting:
		cands = e.searchTroubleshooting(embedding, maxResults)
	case classify.Setup:
		cands = e.searchSetup(embedding, maxResults)
	default:
		cands = e.searchProgressive(embedding, maxResults)
	}

	return e.finishLevelAware(cands, maxResults)
}

// runProgressive is the downgrade path shared by the recover handler.
func (e *Engine) runProgressive(embedding []float32, maxResults int) []Result {
	return e.finishLevelAware(e.searchProgressive(embedding, maxResults), maxResults)
}

// finishLevelAware applies weight re-ranking, de-duplication, and the
// final truncation common to every level strategy.
func (e *Engine) finishLevelAware(cands []candidate, maxResults int) []Result {
	cands = applyWeights(cands)
	cands = dedupe(cands)
	if len(cands) > maxResults {
		cands = cands[:maxResults]
	}
	return e.enrichAll(cands)
}

// searchQuickFacts prefers quick-fact rows, backfilling with
// question-answer pairs.
func (e *Engine) searchQuickFacts(embedding []float32, maxResults int) []candidate {
	cands := e.searchByLevels(embedding, maxResults/2+1, store.LevelQuickFact)
	if len(cands) < maxResults {
		cands = append(cands, e.searchByLevels(embedding, maxResults-len(cands), store.LevelQA)...)
	}
	return cands
}

// searchTroubleshooting walks quick indicators, then troubleshooting
// summaries, then detailed procedures.
func (e *Engine) searchTroubleshooting(embedding []float32, maxResults int) []candidate {
	cands := e.searchByLevels(embedding, 2, store.LevelQuickFact)
	if len(cands) < maxResults {
		cands = append(cands, e.searchByLevels(embedding, maxResults-len(cands), store.LevelSummary)...)
	}
	if len(cands) < maxResults {
		cands = append(cands, e.searchByLevels(embedding, maxResults-len(cands), store.LevelProcedure)...)
	}
	return cands
}

// searchSetup focuses on procedural content with summary backfill.
func (e *Engine) searchSetup(embedding []float32, maxResults int) []candidate {
	cands := e.searchByLevels(embedding, maxResults/2+1, store.LevelProcedure)
	if len(cands) < maxResults {
		cands = append(cands, e.searchByLevels(embedding, maxResults-len(cands), store.LevelSummary)...)
	}
	return cands
}

// searchProgressive balances quick answers against main content for
// queries with no clear category.
func (e *Engine) searchProgressive(embedding []float32, maxResults int) []candidate {
	cands := e.searchByLevels(embedding, 2, store.LevelQuickFact, store.LevelQA)
	if len(cands) < maxResults {
		cands = append(cands, e.searchByLevels(embedding, maxResults-len(cands), store.LevelProcedure, store.LevelSummary)...)
	}
	return cands
}

// searchByLevels oversamples the index and scans hits in similarity order,
// keeping only rows whose level is in the requested set, until the
// sub-budget is met.
func (e *Engine) searchByLevels(embedding []float32, budget int, levels ...string) []candidate {
	if budget <= 0 {
		return nil
	}
	wanted := make(map[string]bool, len(levels))
	for _, l := range levels {
		wanted[l] = true
	}

	k := min(budget*levelOversample, e.idx.Len())
	var cands []candidate
	for _, h := range e.idx.Search(embedding, k) {
		p, ok := e.corpus.Passage(h.Row)
		if !ok || !wanted[p.Level] {
			continue
		}
		cands = append(cands, candidate{row: h.Row, distance: h.Distance, passage: p})
		if len(cands) >= budget {
			break
		}
	}
	return cands
}

// applyWeights divides each candidate's distance by its passage search
// weight (weights above 1 pull a row earlier in the ranking) and re-sorts
// ascending.
func applyWeights(cands []candidate) []candidate {
	for i := range cands {
		w := cands[i].passage.SearchWeight
		if w <= 0 {
			w = 1.0
		}
		cands[i].distance /= w
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].distance < cands[j].distance })
	return cands
}
