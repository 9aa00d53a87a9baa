package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facerec/internal/config"
	"github.com/kozaktomas/facerec/internal/gallery"
	"github.com/kozaktomas/facerec/internal/gallery/index"
	"github.com/kozaktomas/facerec/internal/inference"
	"github.com/kozaktomas/facerec/internal/pipeline"
	"github.com/kozaktomas/facerec/internal/quality"
)

// openStore picks the gallery store backend: PostgreSQL when DATABASE_URL is
// set, the append-only file log otherwise.
func openStore(ctx context.Context, cfg *config.Config) (gallery.Store, error) {
	if cfg.Gallery.DatabaseURL != "" {
		fmt.Println("Using PostgreSQL gallery store")
		return gallery.OpenPGStore(ctx, cfg.Gallery.DatabaseURL, cfg.Embedder.Dim)
	}
	return gallery.OpenFileStore(cfg.Gallery.Path, cfg.Embedder.Dim)
}

func buildIndex(cfg *config.Config) (index.Index, error) {
	return index.New(cfg.Index.Backend, index.Options{
		Dimension: cfg.Embedder.Dim,
		NList:     cfg.Index.NList,
		NProbe:    cfg.Index.NProbe,
		M:         cfg.Index.M,
	})
}

// openGallery wires store, index and matcher into a ready gallery. The
// caller owns Close.
func openGallery(ctx context.Context, cfg *config.Config) (*gallery.Gallery, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery store: %w", err)
	}

	idx, err := buildIndex(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	var opts []gallery.Option
	if cfg.Index.SnapshotPath != "" {
		opts = append(opts, gallery.WithIndexSnapshot(cfg.Index.SnapshotPath))
	}

	gal, err := gallery.Open(ctx, store, idx, gallery.Matcher{CosineThreshold: cfg.Gallery.CosineThreshold}, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return gal, nil
}

// buildPipeline assembles the recognition pipeline over the gallery using
// the configured model sidecars and blur gate.
func buildPipeline(cfg *config.Config, gal *gallery.Gallery) *pipeline.Pipeline {
	detector := inference.NewSCRFDClient(cfg.Detector.URL)
	embedder := inference.NewAdaFaceClient(cfg.Embedder.URL, cfg.Embedder.Dim)
	gate := quality.NewGate(cfg.EffectiveBlurThreshold())
	return pipeline.New(detector, embedder, gate, gal)
}
