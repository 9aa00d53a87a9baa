package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DETECTOR_URL")
	os.Unsetenv("EMBEDDER_URL")
	os.Unsetenv("EMBEDDING_DIM")
	os.Unsetenv("COSINE_THRESHOLD")
	os.Unsetenv("INDEX_BACKEND")
	os.Unsetenv("MAX_IN_FLIGHT")

	cfg := Load()

	if cfg.Detector.URL != "http://localhost:8001" {
		t.Errorf("expected default detector URL, got '%s'", cfg.Detector.URL)
	}
	if cfg.Embedder.URL != "http://localhost:8002" {
		t.Errorf("expected default embedder URL, got '%s'", cfg.Embedder.URL)
	}
	if cfg.Embedder.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Embedder.Dim)
	}
	if cfg.Gallery.CosineThreshold != 0.45 {
		t.Errorf("expected default cosine threshold 0.45, got %f", cfg.Gallery.CosineThreshold)
	}
	if cfg.Index.Backend != "flat" {
		t.Errorf("expected default backend 'flat', got '%s'", cfg.Index.Backend)
	}
	if cfg.Pipeline.MaxInFlight != 4 {
		t.Errorf("expected default max in flight 4, got %d", cfg.Pipeline.MaxInFlight)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DETECTOR_URL", "http://scrfd:9001")
	t.Setenv("EMBEDDING_DIM", "256")
	t.Setenv("COSINE_THRESHOLD", "0.6")
	t.Setenv("INDEX_BACKEND", "graph")
	t.Setenv("HNSW_M", "32")
	t.Setenv("DATABASE_URL", "postgres://localhost/faces")

	cfg := Load()

	if cfg.Detector.URL != "http://scrfd:9001" {
		t.Errorf("expected detector URL 'http://scrfd:9001', got '%s'", cfg.Detector.URL)
	}
	if cfg.Embedder.Dim != 256 {
		t.Errorf("expected embedding dim 256, got %d", cfg.Embedder.Dim)
	}
	if cfg.Gallery.CosineThreshold != 0.6 {
		t.Errorf("expected cosine threshold 0.6, got %f", cfg.Gallery.CosineThreshold)
	}
	if cfg.Index.Backend != "graph" {
		t.Errorf("expected backend 'graph', got '%s'", cfg.Index.Backend)
	}
	if cfg.Index.M != 32 {
		t.Errorf("expected HNSW M 32, got %d", cfg.Index.M)
	}
	if cfg.Gallery.DatabaseURL != "postgres://localhost/faces" {
		t.Errorf("expected database URL to pass through, got '%s'", cfg.Gallery.DatabaseURL)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "invalid")
	t.Setenv("COSINE_THRESHOLD", "-1")
	t.Setenv("MAX_IN_FLIGHT", "0")

	cfg := Load()

	if cfg.Embedder.Dim != 512 {
		t.Errorf("expected default dim 512 for invalid input, got %d", cfg.Embedder.Dim)
	}
	if cfg.Gallery.CosineThreshold != 0.45 {
		t.Errorf("expected default threshold for negative input, got %f", cfg.Gallery.CosineThreshold)
	}
	if cfg.Pipeline.MaxInFlight != 4 {
		t.Errorf("expected default max in flight for zero input, got %d", cfg.Pipeline.MaxInFlight)
	}
}

func TestProfilesLoaded(t *testing.T) {
	cfg := Load()

	if len(cfg.Profiles.Profiles) == 0 {
		t.Fatal("expected profiles to be loaded from embedded YAML")
	}
	for _, name := range []string{"f32", "f16"} {
		if _, ok := cfg.Profiles.Profiles[name]; !ok {
			t.Errorf("expected profile '%s' to be present", name)
		}
	}

	f32 := cfg.Profiles.Profiles["f32"].BlurThreshold
	f16 := cfg.Profiles.Profiles["f16"].BlurThreshold
	if f16 >= f32 {
		t.Errorf("f16 preset (%f) should be more permissive than f32 (%f)", f16, f32)
	}
}

func TestEffectiveBlurThreshold(t *testing.T) {
	os.Unsetenv("BLUR_THRESHOLD")

	t.Setenv("DETECTOR_PROFILE", "f16")
	cfg := Load()
	if got := cfg.EffectiveBlurThreshold(); got != cfg.Profiles.Profiles["f16"].BlurThreshold {
		t.Errorf("expected f16 preset, got %f", got)
	}

	// Explicit override wins over the profile preset.
	t.Setenv("BLUR_THRESHOLD", "200")
	cfg = Load()
	if got := cfg.EffectiveBlurThreshold(); got != 200 {
		t.Errorf("expected explicit threshold 200, got %f", got)
	}
}

func TestEffectiveBlurThreshold_UnknownProfile(t *testing.T) {
	os.Unsetenv("BLUR_THRESHOLD")
	t.Setenv("DETECTOR_PROFILE", "int8")

	cfg := Load()

	if got := cfg.EffectiveBlurThreshold(); got != cfg.Profiles.Profiles["f32"].BlurThreshold {
		t.Errorf("unknown profile should fall back to f32 preset, got %f", got)
	}
}
