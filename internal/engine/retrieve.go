package engine

import (
	"context"
	"log"

	"sift/internal/classify"
)

// RetrieveOptions parameterizes the text-in entry point.
type RetrieveOptions struct {
	Category   classify.Category // empty = classify the query text
	MaxResults int               // 0 = engine default
	SourceType string            // equality filter for the dynamic fallback
	Language   string            // equality filter, empty = configured default
}

// Retrieve is the caller-facing operation: it classifies the query text,
// obtains an embedding from the configured producer, and dispatches to the
// level-aware strategies. Every failure mode (no embedder, producer error,
// empty embedding) degrades to an empty result list so upstream can answer
// "no relevant information found" instead of erroring.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) []Result {
	if e.embedder == nil {
		log.Printf("[Engine] no embedding producer configured, returning no results")
		return nil
	}

	category := opts.Category
	if category == "" {
		category = classify.Classify(query)
		log.Printf("[Engine] classified query as %s", category)
	}

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil || len(embedding) == 0 {
		log.Printf("[Engine] query embedding unavailable (%v), returning no results", err)
		return nil
	}

	// Source/language filters only exist on the dynamic path; a filtered
	// retrieve routes there with a depth derived from the category.
	if opts.SourceType != "" || opts.Language != "" {
		queryType := QuerySimple
		if category == classify.Troubleshooting || category == classify.Setup {
			queryType = QueryDetailed
		}
		language := opts.Language
		if language == "" {
			language = e.cfg.DefaultLanguage
		}
		return e.SearchDynamic(ctx, embedding, DynamicOptions{
			QueryType:       queryType,
			EstimatedChunks: opts.MaxResults,
			SourceType:      opts.SourceType,
			Language:        language,
		})
	}

	return e.SearchLevelAware(ctx, embedding, category, opts.MaxResults)
}
