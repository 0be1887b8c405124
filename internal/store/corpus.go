package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
)

// Common errors
var (
	ErrLengthMismatch  = errors.New("store: embeddings, metadata, and id map lengths differ")
	ErrCorruptArtifact = errors.New("store: corrupt artifact")
)

// LoadOptions locates the persisted artifacts. Either the three parallel
// file paths or a single SQLite path must be set.
type LoadOptions struct {
	EmbeddingsPath string
	MetadataPath   string
	IDMapPath      string
	SQLitePath     string
}

// Corpus is the loaded, immutable retrieval state: the embedding matrix,
// one Passage per row, the row id map, and the section index. It is safe
// for unsynchronized concurrent reads; nothing mutates it after Load.
type Corpus struct {
	embeddings [][]float32
	passages   []Passage
	ids        []string
	sections   map[string][]int
	dims       int
}

// Load reads the artifacts, validates the length invariant, normalizes
// every metadata record, and builds the section index. It fails closed: on
// any error no Corpus is returned and the retrieval subsystem must be
// treated as unavailable.
func Load(opts LoadOptions) (*Corpus, error) {
	if opts.SQLitePath != "" {
		return loadSQLite(opts.SQLitePath)
	}

	embeddings, err := loadEmbeddings(opts.EmbeddingsPath)
	if err != nil {
		return nil, err
	}

	passages, err := loadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	ids, err := loadIDMap(opts.IDMapPath)
	if err != nil {
		return nil, err
	}

	return build(embeddings, passages, ids)
}

// New assembles a Corpus from already-decoded parallel structures. It is
// the in-memory entry point for pipeline tooling and tests; Load is the
// file-backed equivalent.
func New(embeddings [][]float32, passages []Passage, ids []string) (*Corpus, error) {
	return build(embeddings, passages, ids)
}

// build validates the parallel structures and assembles the Corpus. Shared
// by the file and SQLite load paths.
func build(embeddings [][]float32, passages []Passage, ids []string) (*Corpus, error) {
	if len(embeddings) != len(passages) || len(passages) != len(ids) {
		return nil, fmt.Errorf("%w: %d embeddings, %d metadata, %d ids",
			ErrLengthMismatch, len(embeddings), len(passages), len(ids))
	}

	dims := 0
	if len(embeddings) > 0 {
		dims = len(embeddings[0])
	}
	for row, v := range embeddings {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: row %d has %d dims, want %d", ErrCorruptArtifact, row, len(v), dims)
		}
	}

	c := &Corpus{
		embeddings: embeddings,
		passages:   passages,
		ids:        ids,
		dims:       dims,
	}
	c.buildSections()

	log.Printf("[Store] loaded %d passages across %d sections (%d dims)", c.Len(), len(c.sections), dims)
	return c, nil
}

// buildSections maps each section id to its rows, ordered by chunk order
// with row index as tiebreaker so expansion yields document order.
func (c *Corpus) buildSections() {
	c.sections = make(map[string][]int)
	for row := range c.passages {
		id := c.passages[row].SectionID
		c.sections[id] = append(c.sections[id], row)
	}
	for _, rows := range c.sections {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := c.passages[rows[i]], c.passages[rows[j]]
			if a.ChunkOrder != b.ChunkOrder {
				return a.ChunkOrder < b.ChunkOrder
			}
			return rows[i] < rows[j]
		})
	}
}

// Len returns the number of rows.
func (c *Corpus) Len() int { return len(c.passages) }

// Dims returns the embedding dimensionality.
func (c *Corpus) Dims() int { return c.dims }

// Embeddings returns the embedding matrix. Callers must not mutate it.
func (c *Corpus) Embeddings() [][]float32 { return c.embeddings }

// Passage returns the record at the given row.
func (c *Corpus) Passage(row int) (*Passage, bool) {
	if row < 0 || row >= len(c.passages) {
		return nil, false
	}
	return &c.passages[row], true
}

// ID returns the external id at the given row.
func (c *Corpus) ID(row int) string {
	if row < 0 || row >= len(c.ids) {
		return ""
	}
	return c.ids[row]
}

// SectionCount returns the number of distinct sections.
func (c *Corpus) SectionCount() int { return len(c.sections) }

// SectionRows returns the rows of a section in document order. A section
// with no rows cannot be expanded and returns nil.
func (c *Corpus) SectionRows(sectionID string) []int {
	return c.sections[sectionID]
}

// SectionIDs returns all section ids in sorted order.
func (c *Corpus) SectionIDs() []string {
	ids := make([]string, 0, len(c.sections))
	for id := range c.sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// loadEmbeddings reads the embedding matrix. The pipeline writes one of
// two formats: a JSON [][]float32 array, or a packed little-endian blob
// (uint32 dims header, then the float32 rows). The format is sniffed from
// the first non-space byte.
func loadEmbeddings(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read embeddings: %w", err)
	}

	if isJSONArray(data) {
		var embeddings [][]float32
		if err := json.Unmarshal(data, &embeddings); err != nil {
			return nil, fmt.Errorf("%w: embeddings %s: %v", ErrCorruptArtifact, path, err)
		}
		return embeddings, nil
	}

	embeddings, err := decodeEmbeddingBlob(data)
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings %s: %v", ErrCorruptArtifact, path, err)
	}
	return embeddings, nil
}

func isJSONArray(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '['
		}
	}
	return false
}

// decodeEmbeddingBlob parses the packed embedding format: a uint32 row
// width followed by rows of that many little-endian float32 values.
func decodeEmbeddingBlob(data []byte) ([][]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("embedding blob too short (%d bytes)", len(data))
	}
	dims := int(binary.LittleEndian.Uint32(data))
	if dims <= 0 {
		return nil, fmt.Errorf("embedding blob dims header %d", dims)
	}
	body := data[4:]
	rowSize := dims * 4
	if len(body)%rowSize != 0 {
		return nil, fmt.Errorf("embedding blob body %d bytes, not a multiple of row size %d", len(body), rowSize)
	}

	embeddings := make([][]float32, len(body)/rowSize)
	for i := range embeddings {
		embeddings[i] = decodeFloat32Slice(body[i*rowSize : (i+1)*rowSize])
	}
	return embeddings, nil
}

// loadMetadata reads the metadata list. Each entry is either an enhanced
// record object or a legacy bare string; both normalize into a Passage.
func loadMetadata(path string) ([]Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read metadata: %w", err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %v", ErrCorruptArtifact, path, err)
	}

	passages := make([]Passage, len(entries))
	legacy := 0
	for row, entry := range entries {
		p, isLegacy, err := decodePassage(entry, row)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %s row %d: %v", ErrCorruptArtifact, path, row, err)
		}
		if isLegacy {
			legacy++
		}
		passages[row] = p
	}
	if legacy > 0 {
		log.Printf("[Store] converted %d legacy metadata records", legacy)
	}
	return passages, nil
}

func decodePassage(entry json.RawMessage, row int) (Passage, bool, error) {
	var raw rawPassage
	if err := json.Unmarshal(entry, &raw); err == nil {
		return raw.normalize(row), false, nil
	}
	var text string
	if err := json.Unmarshal(entry, &text); err != nil {
		return Passage{}, false, err
	}
	return legacyPassage(text, row), true, nil
}

// loadIDMap reads the row-to-id list from a JSON array of strings.
func loadIDMap(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read id map: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: id map %s: %v", ErrCorruptArtifact, path, err)
	}
	return ids, nil
}
