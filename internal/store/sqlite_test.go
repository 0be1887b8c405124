package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSQLiteArtifact creates an artifact database the way the offline
// pipeline does.
func writeSQLiteArtifact(t *testing.T, rows []struct {
	id   string
	emb  []float32
	meta string
}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manual.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE passages (
		row       INTEGER PRIMARY KEY,
		id        TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata  TEXT
	)`)
	require.NoError(t, err)

	for i, r := range rows {
		var meta any
		if r.meta != "" {
			meta = r.meta
		}
		_, err = db.Exec("INSERT INTO passages (row, id, embedding, metadata) VALUES (?, ?, ?, ?)",
			i, r.id, EncodeFloat32Slice(r.emb), meta)
		require.NoError(t, err)
	}
	return path
}

func TestLoadSQLite(t *testing.T) {
	path := writeSQLiteArtifact(t, []struct {
		id   string
		emb  []float32
		meta string
	}{
		{"a", []float32{1, 0}, `{"id":"a","section_id":"s1","content":"alpha","level":"QA"}`},
		{"b", []float32{0, 1}, `{"id":"b","section_id":"s1","content":"beta","chunk_order":-1}`},
		{"c", []float32{0.5, 0.5}, ""},
	})

	c, err := Load(LoadOptions{SQLitePath: path})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Dims())
	assert.Equal(t, "a", c.ID(0))
	assert.Equal(t, []float32{1, 0}, c.Embeddings()[0])

	p, _ := c.Passage(0)
	assert.Equal(t, LevelQA, p.Level)
	assert.InDelta(t, 1.15, p.SearchWeight, 1e-6)

	// Row without metadata loads as a legacy placeholder.
	p, _ = c.Passage(2)
	assert.True(t, p.Legacy)
	assert.Equal(t, "legacy_section_2", p.SectionID)
}

func TestLoadSQLite_MissingFileFails(t *testing.T) {
	_, err := Load(LoadOptions{SQLitePath: filepath.Join(t.TempDir(), "absent.db")})
	require.Error(t, err)
}

func TestFloat32SliceRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out := decodeFloat32Slice(EncodeFloat32Slice(in))
	assert.Equal(t, in, out)
}
