package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// loadSQLite reads the three parallel structures from a single SQLite
// artifact written by the offline pipeline. Schema:
//
//	CREATE TABLE passages (
//	    row       INTEGER PRIMARY KEY,
//	    id        TEXT NOT NULL,
//	    embedding BLOB NOT NULL,
//	    metadata  TEXT
//	);
//
// Embeddings are little-endian float32 blobs, metadata is the same JSON
// shape the file backend accepts.
func loadSQLite(path string) (*Corpus, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT row, id, embedding, metadata FROM passages ORDER BY row")
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite %s: %v", ErrCorruptArtifact, path, err)
	}
	defer rows.Close()

	var (
		embeddings [][]float32
		passages   []Passage
		ids        []string
	)
	for rows.Next() {
		var (
			row      int
			id       string
			embBytes []byte
			metaJSON sql.NullString
		)
		if err := rows.Scan(&row, &id, &embBytes, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: sqlite %s: %v", ErrCorruptArtifact, path, err)
		}
		if len(embBytes)%4 != 0 {
			return nil, fmt.Errorf("%w: sqlite %s row %d: embedding blob length %d", ErrCorruptArtifact, path, row, len(embBytes))
		}

		embeddings = append(embeddings, decodeFloat32Slice(embBytes))
		ids = append(ids, id)

		p := legacyPassage("", row)
		if metaJSON.Valid && metaJSON.String != "" {
			decoded, _, err := decodePassage(json.RawMessage(metaJSON.String), row)
			if err != nil {
				return nil, fmt.Errorf("%w: sqlite %s row %d: %v", ErrCorruptArtifact, path, row, err)
			}
			p = decoded
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlite %s: %v", ErrCorruptArtifact, path, err)
	}

	return build(embeddings, passages, ids)
}

// decodeFloat32Slice converts a little-endian blob to []float32.
func decodeFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// EncodeFloat32Slice converts []float32 to the blob format loadSQLite
// expects. Exported for the pipeline tooling that writes artifacts.
func EncodeFloat32Slice(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
