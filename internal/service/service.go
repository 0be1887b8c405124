// Package service owns the retrieval lifecycle: load the artifacts, build
// the index and engine, and publish them behind an atomic pointer. Reload
// builds a complete replacement off to the side and swaps it in one
// operation, so in-flight queries always see a consistent snapshot. Queries
// issued before the first successful load observe "not ready", never a
// partially built structure.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"sift/internal/config"
	"sift/internal/engine"
	"sift/internal/index"
	"sift/internal/store"
)

// ErrNotReady is returned while no successful load has completed.
var ErrNotReady = errors.New("service: retrieval index not loaded")

// Service is the constructed retrieval context handed to request handlers.
type Service struct {
	cfg      *config.Config
	embedder engine.Embedder

	active atomic.Pointer[engine.Engine]
	cron   *cron.Cron
}

// New creates an unloaded Service. Call Load before serving queries.
// The embedder may be nil when callers always supply raw embeddings.
func New(cfg *config.Config, embedder engine.Embedder) *Service {
	return &Service{cfg: cfg, embedder: embedder}
}

// Load builds a fresh corpus, index, and engine from the configured
// artifacts and atomically swaps them in. On error the previous state (if
// any) stays active.
func (s *Service) Load(ctx context.Context) error {
	corpus, err := store.Load(store.LoadOptions{
		EmbeddingsPath: s.cfg.EmbeddingsPath(),
		MetadataPath:   s.cfg.MetadataPath(),
		IDMapPath:      s.cfg.IDMapPath(),
		SQLitePath:     s.cfg.SQLitePath(),
	})
	if err != nil {
		return fmt.Errorf("service: load artifacts: %w", err)
	}

	idx, err := index.New(corpus.Embeddings(), index.Kind(s.cfg.Index.Kind), index.Options{
		NProbe: s.cfg.Index.NProbe,
	})
	if err != nil {
		return fmt.Errorf("service: build index: %w", err)
	}

	eng := engine.New(idx, corpus, engine.Config{
		MinChunksSimple:   s.cfg.Retrieval.MinChunksSimple,
		MaxChunksSimple:   s.cfg.Retrieval.MaxChunksSimple,
		MinChunksDetailed: s.cfg.Retrieval.MinChunksDetailed,
		MaxChunksDetailed: s.cfg.Retrieval.MaxChunksDetailed,
		DefaultK:          s.cfg.Retrieval.DefaultK,
		SectionExpansion:  s.cfg.SectionExpansionEnabled(),
		DefaultLanguage:   s.cfg.Retrieval.DefaultLanguage,
	})
	if s.embedder != nil {
		eng = eng.WithEmbedder(s.embedder)
	}

	s.active.Store(eng)
	log.Printf("[Service] index loaded: %d vectors, %s index", idx.Len(), idx.Kind())
	return nil
}

// Engine returns the active engine, or ErrNotReady before the first
// successful load.
func (s *Service) Engine() (*engine.Engine, error) {
	eng := s.active.Load()
	if eng == nil {
		return nil, ErrNotReady
	}
	return eng, nil
}

// Ready reports whether queries can be served.
func (s *Service) Ready() bool {
	return s.active.Load() != nil
}

// HealthReport is the engine health annotated with where the artifacts
// came from.
type HealthReport struct {
	engine.Health
	ArtifactsPath   string `json:"artifacts_path"`
	ArtifactBackend string `json:"artifact_backend"` // "sqlite" or "json"
}

// Health reports the active engine's status, or an unloaded placeholder.
func (s *Service) Health() HealthReport {
	h := HealthReport{
		Health:          engine.Health{Status: "unhealthy"},
		ArtifactsPath:   s.cfg.Artifacts.Path,
		ArtifactBackend: "json",
	}
	if s.cfg.SQLitePath() != "" {
		h.ArtifactBackend = "sqlite"
	}
	if eng := s.active.Load(); eng != nil {
		h.Health = eng.Health()
	}
	return h
}

// Retrieve answers a text query against the active engine. While not
// ready it returns an empty list, matching the engine's degraded-state
// contract.
func (s *Service) Retrieve(ctx context.Context, query string, opts engine.RetrieveOptions) []engine.Result {
	eng := s.active.Load()
	if eng == nil {
		log.Printf("[Service] query before load completion, returning no results")
		return nil
	}
	return eng.Retrieve(ctx, query, opts)
}

// StartReloadSchedule begins periodic reload-via-swap per the configured
// cron spec. No-op when the spec is empty.
func (s *Service) StartReloadSchedule() error {
	spec := s.cfg.Reload.CronSpec
	if spec == "" {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Load(context.Background()); err != nil {
			log.Printf("[Service] scheduled reload failed, keeping previous index: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("service: reload schedule %q: %w", spec, err)
	}
	s.cron.Start()
	log.Printf("[Service] reload scheduled: %s", spec)
	return nil
}

// Close stops the reload schedule and releases the active engine.
func (s *Service) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.active.Store(nil)
}
