// Package config loads the sift configuration from a YAML file with
// environment-variable overrides. Zero values take defaults, so an empty
// file (or no file at all) yields a working local setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Reload    ReloadConfig    `yaml:"reload"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// ArtifactsConfig locates the persisted index artifacts. When SQLiteFile
// is set it takes precedence over the three parallel JSON files.
type ArtifactsConfig struct {
	Path           string `yaml:"path"`            // directory holding the files below
	EmbeddingsFile string `yaml:"embeddings_file"` // JSON [][]float32
	MetadataFile   string `yaml:"metadata_file"`   // JSON metadata list
	IDMapFile      string `yaml:"id_map_file"`     // JSON []string
	SQLiteFile     string `yaml:"sqlite_file"`     // single-file alternative
}

// IndexConfig selects and tunes the vector index.
type IndexConfig struct {
	Kind   string `yaml:"kind"`   // "auto", "flat", "ivf"
	NProbe int    `yaml:"nprobe"` // IVF clusters probed per query
}

// RetrievalConfig holds the dynamic chunk bands and feature toggles.
type RetrievalConfig struct {
	MinChunksSimple   int    `yaml:"min_chunks_simple"`
	MaxChunksSimple   int    `yaml:"max_chunks_simple"`
	MinChunksDetailed int    `yaml:"min_chunks_detailed"`
	MaxChunksDetailed int    `yaml:"max_chunks_detailed"`
	DefaultK          int    `yaml:"default_k"`
	SectionExpansion  *bool  `yaml:"section_expansion"` // nil = enabled
	DefaultLanguage   string `yaml:"default_language"`
}

// ReloadConfig schedules periodic reload-via-swap. Empty spec disables it.
type ReloadConfig struct {
	CronSpec string `yaml:"cron"` // standard cron expression, e.g. "0 3 * * *"
}

// EmbeddingConfig configures the query embedding producer.
type EmbeddingConfig struct {
	Provider string            `yaml:"provider"` // "openai" or "" (none)
	OpenAI   OpenAIEmbedConfig `yaml:"openai"`
}

// OpenAIEmbedConfig holds OpenAI embedding settings. APIKey supports
// ${ENV_VAR} expansion.
type OpenAIEmbedConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Artifacts: ArtifactsConfig{
			Path:           "vector-files",
			EmbeddingsFile: "embeddings_enhanced.json",
			MetadataFile:   "metadata_enhanced.json",
			IDMapFile:      "index_to_id_enhanced.json",
		},
		Index: IndexConfig{Kind: "auto", NProbe: 8},
		Retrieval: RetrievalConfig{
			MinChunksSimple:   3,
			MaxChunksSimple:   5,
			MinChunksDetailed: 10,
			MaxChunksDetailed: 20,
			DefaultK:          10,
			DefaultLanguage:   "en-US",
		},
		Embedding: EmbeddingConfig{
			OpenAI: OpenAIEmbedConfig{APIKey: "${OPENAI_API_KEY}", Model: "text-embedding-3-small"},
		},
	}
}

// Load reads the config file, fills defaults, and applies environment
// overrides. A missing file is not an error: defaults plus environment
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields the file left zero.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Artifacts.Path == "" {
		c.Artifacts.Path = d.Artifacts.Path
	}
	if c.Artifacts.EmbeddingsFile == "" {
		c.Artifacts.EmbeddingsFile = d.Artifacts.EmbeddingsFile
	}
	if c.Artifacts.MetadataFile == "" {
		c.Artifacts.MetadataFile = d.Artifacts.MetadataFile
	}
	if c.Artifacts.IDMapFile == "" {
		c.Artifacts.IDMapFile = d.Artifacts.IDMapFile
	}
	if c.Index.Kind == "" {
		c.Index.Kind = d.Index.Kind
	}
	if c.Index.NProbe <= 0 {
		c.Index.NProbe = d.Index.NProbe
	}
	if c.Retrieval.MinChunksSimple <= 0 {
		c.Retrieval.MinChunksSimple = d.Retrieval.MinChunksSimple
	}
	if c.Retrieval.MaxChunksSimple <= 0 {
		c.Retrieval.MaxChunksSimple = d.Retrieval.MaxChunksSimple
	}
	if c.Retrieval.MinChunksDetailed <= 0 {
		c.Retrieval.MinChunksDetailed = d.Retrieval.MinChunksDetailed
	}
	if c.Retrieval.MaxChunksDetailed <= 0 {
		c.Retrieval.MaxChunksDetailed = d.Retrieval.MaxChunksDetailed
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = d.Retrieval.DefaultK
	}
	if c.Retrieval.DefaultLanguage == "" {
		c.Retrieval.DefaultLanguage = d.Retrieval.DefaultLanguage
	}
	if c.Embedding.OpenAI.Model == "" {
		c.Embedding.OpenAI.Model = d.Embedding.OpenAI.Model
	}
	if c.Embedding.OpenAI.APIKey == "" {
		c.Embedding.OpenAI.APIKey = d.Embedding.OpenAI.APIKey
	}
}

// applyEnv maps environment variables onto config fields, mirroring the
// deployment knobs of the hosted service.
func (c *Config) applyEnv() {
	if v := os.Getenv("SIFT_VECTOR_FILES_PATH"); v != "" {
		c.Artifacts.Path = v
	}
	if v := os.Getenv("SIFT_SQLITE_FILE"); v != "" {
		c.Artifacts.SQLiteFile = v
	}
	if v := os.Getenv("SIFT_INDEX_KIND"); v != "" {
		c.Index.Kind = v
	}
	if v := os.Getenv("SIFT_DEFAULT_LANGUAGE"); v != "" {
		c.Retrieval.DefaultLanguage = v
	}
	if v := os.Getenv("SIFT_SECTION_EXPANSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Retrieval.SectionExpansion = &b
		}
	}
	if v := os.Getenv("SIFT_RELOAD_CRON"); v != "" {
		c.Reload.CronSpec = v
	}
}

// Validate rejects configurations that cannot serve queries.
func (c *Config) Validate() error {
	switch c.Index.Kind {
	case "auto", "flat", "ivf":
	default:
		return fmt.Errorf("config: unknown index kind %q", c.Index.Kind)
	}
	if c.Retrieval.MinChunksSimple > c.Retrieval.MaxChunksSimple {
		return fmt.Errorf("config: simple chunk band inverted (%d > %d)",
			c.Retrieval.MinChunksSimple, c.Retrieval.MaxChunksSimple)
	}
	if c.Retrieval.MinChunksDetailed > c.Retrieval.MaxChunksDetailed {
		return fmt.Errorf("config: detailed chunk band inverted (%d > %d)",
			c.Retrieval.MinChunksDetailed, c.Retrieval.MaxChunksDetailed)
	}
	return nil
}

// SectionExpansionEnabled resolves the toggle, defaulting to enabled.
func (c *Config) SectionExpansionEnabled() bool {
	if c.Retrieval.SectionExpansion == nil {
		return true
	}
	return *c.Retrieval.SectionExpansion
}

// EmbeddingsPath returns the full embeddings artifact path.
func (c *Config) EmbeddingsPath() string {
	return filepath.Join(c.Artifacts.Path, c.Artifacts.EmbeddingsFile)
}

// MetadataPath returns the full metadata artifact path.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Artifacts.Path, c.Artifacts.MetadataFile)
}

// IDMapPath returns the full id map artifact path.
func (c *Config) IDMapPath() string {
	return filepath.Join(c.Artifacts.Path, c.Artifacts.IDMapFile)
}

// SQLitePath returns the single-file artifact path, or "" when the JSON
// backend is in use.
func (c *Config) SQLitePath() string {
	if c.Artifacts.SQLiteFile == "" {
		return ""
	}
	return filepath.Join(c.Artifacts.Path, c.Artifacts.SQLiteFile)
}

// ResolveKey expands ${ENV_VAR} references in the API key.
func (c *OpenAIEmbedConfig) ResolveKey() string {
	return os.ExpandEnv(c.APIKey)
}
