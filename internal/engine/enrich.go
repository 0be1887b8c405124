package engine

import (
	"log"
	"strconv"

	"sift/internal/store"
)

// Result is the stable output schema consumed by chat orchestration. Every
// field is defaulted; SimilarityScore is cosine similarity (1 − distance),
// higher is better.
type Result struct {
	ID         string  `json:"id"`
	SectionID  string  `json:"section_id"`
	ChunkOrder int     `json:"chunk_order"`
	Row        int     `json:"chunk_index"`
	Distance   float32 `json:"distance"`
	Similarity float32 `json:"similarity_score"`

	Content      string `json:"content"`
	OriginalText string `json:"original_text_chunk"`
	Summary      string `json:"summary"`

	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	PageNumber string `json:"page_number"`
	Version    string `json:"version"`

	SourceType        string `json:"source_type"`
	Language          string `json:"language"`
	Level             string `json:"level"`
	IsCompleteSection bool   `json:"is_complete_section"`

	Keywords        []string     `json:"keywords"`
	RelatedSections []string     `json:"related_sections"`
	Image           *store.Image `json:"image,omitempty"`
}

// enrichAll converts candidates into Results. A malformed record never
// fails the batch: it yields a placeholder and processing continues.
func (e *Engine) enrichAll(cands []candidate) []Result {
	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		results = append(results, e.enrich(c))
	}
	return results
}

// enrich builds one Result from a candidate. Per-row failures are isolated
// to an error placeholder.
func (e *Engine) enrich(c candidate) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Engine] enrich row %d failed: %v", c.row, rec)
			r = errorResult(c)
		}
	}()

	p := c.passage
	if p == nil {
		var ok bool
		p, ok = e.corpus.Passage(c.row)
		if !ok {
			return errorResult(c)
		}
	}

	return Result{
		ID:                p.ID,
		SectionID:         p.SectionID,
		ChunkOrder:        p.ChunkOrder,
		Row:               c.row,
		Distance:          c.distance,
		Similarity:        1 - c.distance,
		Content:           p.Content,
		OriginalText:      p.OriginalText,
		Summary:           p.Summary,
		Title:             p.Title,
		Subtitle:          p.Subtitle,
		PageNumber:        p.PageNumber,
		Version:           p.Version,
		SourceType:        p.SourceType,
		Language:          p.Language,
		Level:             p.Level,
		IsCompleteSection: p.IsCompleteSection,
		Keywords:          p.Keywords,
		RelatedSections:   p.RelatedSections,
		Image:             p.Image,
	}
}

// errorResult is the minimal placeholder substituted for a row whose
// metadata could not be processed.
func errorResult(c candidate) Result {
	return Result{
		ID:           "row_" + strconv.Itoa(c.row),
		Row:          c.row,
		Distance:     c.distance,
		Similarity:   1 - c.distance,
		Content:      "Error retrieving content",
		OriginalText: "Error retrieving content",
		Title:        "Unknown Section",
		SourceType:   "error",
		Language:     store.DefaultLanguage,
	}
}

// SectionPassages returns every passage of a section in document order as
// zero-distance results. Unknown sections return an empty list.
func (e *Engine) SectionPassages(sectionID string) []Result {
	if e.corpus == nil {
		return nil
	}
	rows := e.corpus.SectionRows(sectionID)
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		p, ok := e.corpus.Passage(row)
		if !ok {
			continue
		}
		results = append(results, e.enrich(candidate{row: row, distance: 0, passage: p}))
	}
	return results
}
