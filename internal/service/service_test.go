package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/engine"
)

// writeArtifacts lays out a minimal JSON artifact directory and returns a
// config pointing at it.
func writeArtifacts(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	embeddings := [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}
	metadata := []map[string]any{
		{"id": "c0", "section_id": "intro", "chunk_order": 0, "content": "welcome", "level": "L0"},
		{"id": "c1", "section_id": "intro", "chunk_order": 1, "content": "overview", "level": "L2"},
		{"id": "c2", "section_id": "wifi", "chunk_order": 0, "content": "join the network", "level": "L1"},
	}
	ids := []string{"c0", "c1", "c2"}

	writeJSON(t, filepath.Join(dir, "embeddings_enhanced.json"), embeddings)
	writeJSON(t, filepath.Join(dir, "metadata_enhanced.json"), metadata)
	writeJSON(t, filepath.Join(dir, "index_to_id_enhanced.json"), ids)

	cfg := config.Default()
	cfg.Artifacts.Path = dir
	return cfg
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, nil
}

func (s stubEmbedder) Dims() int { return len(s.vec) }

func TestService_NotReadyBeforeLoad(t *testing.T) {
	s := New(config.Default(), nil)

	_, err := s.Engine()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, s.Ready())
	assert.Equal(t, "unhealthy", s.Health().Status)
	assert.Empty(t, s.Retrieve(context.Background(), "anything", engine.RetrieveOptions{}))
}

func TestService_LoadAndQuery(t *testing.T) {
	cfg := writeArtifacts(t)
	s := New(cfg, stubEmbedder{vec: []float32{1, 0}})

	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.Ready())

	h := s.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 3, h.TotalVectors)
	assert.Equal(t, 2, h.TotalSections)
	assert.Equal(t, "flat", h.IndexKind)
	assert.Equal(t, cfg.Artifacts.Path, h.ArtifactsPath)
	assert.Equal(t, "json", h.ArtifactBackend)

	eng, err := s.Engine()
	require.NoError(t, err)
	results := eng.Search(context.Background(), []float32{1, 0}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].ID)

	results = s.Retrieve(context.Background(), "what is the red led", engine.RetrieveOptions{MaxResults: 2})
	assert.NotEmpty(t, results)
}

func TestService_FailedReloadKeepsPreviousEngine(t *testing.T) {
	cfg := writeArtifacts(t)
	s := New(cfg, nil)
	require.NoError(t, s.Load(context.Background()))

	before, err := s.Engine()
	require.NoError(t, err)

	// Corrupt the metadata artifact; reload must fail without
	// disturbing the active engine.
	require.NoError(t, os.WriteFile(cfg.MetadataPath(), []byte("{not json"), 0o644))
	require.Error(t, s.Load(context.Background()))

	after, err := s.Engine()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, "healthy", s.Health().Status)
}

func TestService_LoadFailsOnMissingArtifacts(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Path = filepath.Join(t.TempDir(), "nowhere")

	s := New(cfg, nil)
	require.Error(t, s.Load(context.Background()))
	assert.False(t, s.Ready())
}

func TestService_ReloadSchedule(t *testing.T) {
	cfg := writeArtifacts(t)
	s := New(cfg, nil)
	require.NoError(t, s.Load(context.Background()))

	// Empty spec is a no-op.
	require.NoError(t, s.StartReloadSchedule())

	cfg.Reload.CronSpec = "not a cron spec"
	require.Error(t, s.StartReloadSchedule())

	cfg.Reload.CronSpec = "0 3 * * *"
	require.NoError(t, s.StartReloadSchedule())

	s.Close()
	assert.False(t, s.Ready())
}
