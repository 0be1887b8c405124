package engine

// Features lists the optional retrieval capabilities currently active.
type Features struct {
	DynamicRetrieval bool `json:"dynamic_retrieval"`
	SectionExpansion bool `json:"section_expansion"`
	LevelAware       bool `json:"level_aware"`
	SourceFiltering  bool `json:"source_filtering"`
}

// Health is the deployment-facing status report.
type Health struct {
	Status        string   `json:"status"` // "healthy" or "unhealthy"
	IndexLoaded   bool     `json:"index_loaded"`
	TotalVectors  int      `json:"total_vectors"`
	TotalSections int      `json:"total_sections"`
	Dims          int      `json:"dims"`
	IndexKind     string   `json:"index_kind"`
	Features      Features `json:"features"`
}

// Health reports whether the engine can serve queries and what it holds.
func (e *Engine) Health() Health {
	h := Health{
		Status: "unhealthy",
		Features: Features{
			DynamicRetrieval: true,
			SectionExpansion: e.cfg.SectionExpansion,
			LevelAware:       true,
			SourceFiltering:  true,
		},
	}
	if e.idx == nil || e.corpus == nil {
		return h
	}

	h.IndexLoaded = true
	h.Status = "healthy"
	h.TotalVectors = e.idx.Len()
	h.TotalSections = e.corpus.SectionCount()
	h.Dims = e.idx.Dims()
	h.IndexKind = string(e.idx.Kind())
	return h
}
