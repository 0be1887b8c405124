// Package store loads the persisted retrieval artifacts (embedding matrix,
// passage metadata, id map) and exposes them as an immutable Corpus with a
// prebuilt section index. All shape variance in the on-disk metadata
// (legacy string entries, nested metadata objects, alternately named image
// fields, short level codes) is normalized here, once, at load time, so
// nothing downstream ever inspects raw records.
package store

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Level tags classify a passage's role for level-aware search.
const (
	LevelQuickFact      = "quick-fact"
	LevelProcedure      = "procedure"
	LevelSummary        = "summary"
	LevelCrossReference = "cross-reference"
	LevelDocument       = "document-level"
	LevelQA             = "question-answer"
)

// Default field values for passages missing them in the source metadata.
const (
	DefaultTitle      = "Unknown Document"
	DefaultSubtitle   = "N/A Subtitle"
	DefaultPageNumber = "N/A"
	DefaultVersion    = "N/A Version"
	DefaultSourceType = "unknown"
	DefaultLanguage   = "en-US"
)

// shortLevels maps the chunking pipeline's level codes to their tags.
var shortLevels = map[string]string{
	"L0": LevelQuickFact,
	"L1": LevelProcedure,
	"L2": LevelSummary,
	"L3": LevelCrossReference,
	"L4": LevelDocument,
	"QA": LevelQA,
}

// defaultWeights assigns search weights to passages that carry none.
// Levels expected to answer a question directly get boosted; whole-document
// summaries get a slight discount.
var defaultWeights = map[string]float32{
	LevelQuickFact: 1.2,
	LevelQA:        1.15,
	LevelDocument:  0.9,
}

// Image is the normalized image descriptor for a passage. Exactly one of
// URL or StoragePath is typically set; resolution of storage paths to
// servable URLs is the concern of an external collaborator.
type Image struct {
	URL         string `json:"url,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Description string `json:"description,omitempty"`
}

// Passage is one indexed chunk of the manual. Field values are fully
// defaulted: consumers never see empty titles, languages, or weights.
type Passage struct {
	ID         string
	SectionID  string
	ChunkOrder int

	Content      string
	Summary      string
	OriginalText string

	Title      string
	Subtitle   string
	PageNumber string
	Version    string
	Language   string
	SourceType string

	Level             string
	ContentType       string
	IsCompleteSection bool

	Keywords        []string
	RelatedSections []string
	SearchWeight    float32

	Image  *Image
	Legacy bool // true for records converted from the pre-enhanced format
}

// rawPassage matches the enhanced JSONL metadata shape, including the
// nested metadata object some pipeline versions emit.
type rawPassage struct {
	ID                string          `json:"id"`
	SectionID         string          `json:"section_id"`
	ChunkOrder        int             `json:"chunk_order"`
	Content           string          `json:"content"`
	Summary           string          `json:"summary"`
	OriginalTextChunk string          `json:"original_text_chunk"`
	Title             string          `json:"title"`
	Subtitle          string          `json:"subtitle"`
	PageNumber        json.RawMessage `json:"page_number"`
	Version           string          `json:"version"`
	Language          string          `json:"language"`
	SourceType        string          `json:"source_type"`
	Level             string          `json:"level"`
	ContentType       string          `json:"content_type"`
	IsCompleteSection bool            `json:"is_complete_section"`
	Keywords          []string        `json:"keywords"`
	RelatedSections   []string        `json:"related_sections"`
	SearchWeight      float32         `json:"search_weight"`

	Metadata *rawPassage `json:"metadata"` // nested variant

	// Image field variants probed at load time, newest first.
	Image                json.RawMessage `json:"image"`
	ImageFirebaseURL     string          `json:"image_firebase_url"`
	ImageGCSURI          string          `json:"image_gcs_uri"`
	ImageDescription     string          `json:"image_description"`
	ImageTextDescription string          `json:"image_text_description"`
}

// rawImage matches the structured image object variant.
type rawImage struct {
	FirebaseURL string `json:"firebase_url"`
	URL         string `json:"url"`
	URI         string `json:"uri"`
	GCSURI      string `json:"gcs_uri"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeLevel maps pipeline level codes to tags and defaults unknown
// values to procedure, the original's fallback level.
func normalizeLevel(level string) string {
	if level == "" {
		return LevelProcedure
	}
	if tag, ok := shortLevels[strings.ToUpper(level)]; ok {
		return tag
	}
	return level
}

// normalize converts a raw record at the given row into a Passage,
// preferring nested metadata values where both exist, exactly as the
// enhanced pipeline's readers did.
func (r *rawPassage) normalize(row int) Passage {
	nested := r.Metadata
	if nested == nil {
		nested = &rawPassage{}
	}

	content := firstNonEmpty(nested.OriginalTextChunk, r.Content, nested.Content, r.OriginalTextChunk)
	sectionID := firstNonEmpty(nested.SectionID, r.SectionID)
	if sectionID == "" {
		sectionID = "unknown_section_" + strconv.Itoa(row)
	}

	p := Passage{
		ID:                firstNonEmpty(r.ID, sectionID),
		SectionID:         sectionID,
		ChunkOrder:        pickInt(nested.ChunkOrder, r.ChunkOrder),
		Content:           content,
		Summary:           firstNonEmpty(nested.Summary, r.Summary),
		OriginalText:      firstNonEmpty(nested.OriginalTextChunk, r.OriginalTextChunk, content),
		Title:             firstNonEmpty(nested.Title, r.Title, DefaultTitle),
		Subtitle:          firstNonEmpty(nested.Subtitle, r.Subtitle, DefaultSubtitle),
		PageNumber:        firstNonEmpty(pageString(nested.PageNumber), pageString(r.PageNumber), DefaultPageNumber),
		Version:           firstNonEmpty(nested.Version, r.Version, DefaultVersion),
		Language:          firstNonEmpty(nested.Language, r.Language, DefaultLanguage),
		SourceType:        firstNonEmpty(nested.SourceType, r.SourceType, DefaultSourceType),
		Level:             normalizeLevel(firstNonEmpty(nested.Level, r.Level)),
		ContentType:       firstNonEmpty(nested.ContentType, r.ContentType),
		IsCompleteSection: r.IsCompleteSection || nested.IsCompleteSection,
		Keywords:          r.Keywords,
		RelatedSections:   r.RelatedSections,
		SearchWeight:      r.SearchWeight,
		Image:             r.normalizeImage(),
	}

	if p.SearchWeight <= 0 {
		if w, ok := defaultWeights[p.Level]; ok {
			p.SearchWeight = w
		} else {
			p.SearchWeight = 1.0
		}
	}
	return p
}

func pickInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// pageString accepts page numbers serialized as either a JSON number or a
// string.
func pageString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// normalizeImage resolves every known image-field variant into one
// descriptor: a structured image object, a flat firebase/gcs URI pair, or
// a bare string reference.
func (r *rawPassage) normalizeImage() *Image {
	if len(r.Image) > 0 && string(r.Image) != "null" {
		var obj rawImage
		if err := json.Unmarshal(r.Image, &obj); err == nil {
			ref := firstNonEmpty(obj.FirebaseURL, obj.URL, obj.URI, obj.GCSURI)
			if ref != "" || obj.Filename != "" {
				return imageFromRef(ref, obj.Filename, obj.Description)
			}
		}
		var bare string
		if err := json.Unmarshal(r.Image, &bare); err == nil && bare != "" {
			return imageFromRef(bare, "", r.imageDescription())
		}
	}

	ref := firstNonEmpty(r.ImageGCSURI, r.ImageFirebaseURL)
	if ref == "" {
		return nil
	}
	return imageFromRef(ref, "", r.imageDescription())
}

func (r *rawPassage) imageDescription() string {
	return firstNonEmpty(r.ImageDescription, r.ImageTextDescription, "Equipment diagram")
}

// imageFromRef classifies a reference as a URL or a storage path and fills
// the filename from its last path element.
func imageFromRef(ref, filename, description string) *Image {
	img := &Image{Filename: filename, Description: description}
	switch {
	case ref == "":
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "data:image/"):
		img.URL = ref
	default:
		img.StoragePath = ref
	}
	if img.Filename == "" && ref != "" && !strings.HasPrefix(ref, "data:image/") {
		if i := strings.LastIndex(ref, "/"); i >= 0 {
			img.Filename = ref[i+1:]
		} else {
			img.Filename = ref
		}
	}
	if img.Description == "" {
		img.Description = "Equipment diagram"
	}
	return img
}

// legacyPassage converts a pre-enhanced metadata entry (a bare string) into
// a fully defaulted Passage.
func legacyPassage(text string, row int) Passage {
	sectionID := "legacy_section_" + strconv.Itoa(row)
	return Passage{
		ID:           sectionID,
		SectionID:    sectionID,
		Content:      text,
		OriginalText: text,
		Title:        DefaultTitle,
		Subtitle:     DefaultSubtitle,
		PageNumber:   DefaultPageNumber,
		Version:      DefaultVersion,
		Language:     DefaultLanguage,
		SourceType:   DefaultSourceType,
		Level:        LevelProcedure,
		SearchWeight: 1.0,
		Legacy:       true,
	}
}
