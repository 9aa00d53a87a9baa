package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

type Config struct {
	Detector Detector
	Embedder Embedder
	Gallery  Gallery
	Index    Index
	Pipeline Pipeline
	Server   Server
	Profiles Profiles
}

type Detector struct {
	URL     string // defaults to http://localhost:8001
	Profile string // precision profile: f32 or f16 (defaults to f32)
}

type Embedder struct {
	URL string // defaults to http://localhost:8002
	Dim int    // defaults to 512
}

type Gallery struct {
	Path            string  // append-only gallery log path (defaults to gallery.log)
	DatabaseURL     string  // PostgreSQL URL; when set it replaces the file store
	CosineThreshold float64 // match acceptance threshold (defaults to 0.45)
}

type Index struct {
	Backend string // flat, partitioned or graph (defaults to flat)
	NList   int    // partitioned: number of clusters (defaults to 16)
	NProbe  int    // partitioned: clusters probed per query (defaults to 4)
	M       int    // graph: neighbors per node (defaults to 16)

	// SnapshotPath persists the graph index between runs (optional, graph
	// backend only; if empty the index is rebuilt on startup).
	SnapshotPath string
}

type Pipeline struct {
	MaxInFlight   int     // concurrent frames (defaults to 4)
	BlurThreshold float64 // explicit override; 0 means use the detector profile preset
}

type Server struct {
	Host string
	Port int // defaults to 8080
}

type Profiles struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

type Profile struct {
	BlurThreshold float64 `yaml:"blur_threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var profiles Profiles
	if err := yaml.Unmarshal(profilesYAML, &profiles); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded profiles.yaml: " + err.Error())
	}

	return &Config{
		Detector: Detector{
			URL:     envString("DETECTOR_URL", "http://localhost:8001"),
			Profile: envString("DETECTOR_PROFILE", "f32"),
		},
		Embedder: Embedder{
			URL: envString("EMBEDDER_URL", "http://localhost:8002"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Gallery: Gallery{
			Path:            envString("GALLERY_PATH", "gallery.log"),
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			CosineThreshold: envFloat("COSINE_THRESHOLD", 0.45),
		},
		Index: Index{
			Backend:      envString("INDEX_BACKEND", "flat"),
			NList:        envInt("IVF_NLIST", 16),
			NProbe:       envInt("IVF_NPROBE", 4),
			M:            envInt("HNSW_M", 16),
			SnapshotPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Pipeline: Pipeline{
			MaxInFlight:   envInt("MAX_IN_FLIGHT", 4),
			BlurThreshold: envFloat("BLUR_THRESHOLD", 0),
		},
		Server: Server{
			Host: os.Getenv("SERVER_HOST"),
			Port: envInt("SERVER_PORT", 8080),
		},
		Profiles: profiles,
	}
}

// EffectiveBlurThreshold resolves the blur gate threshold: an explicit
// BLUR_THRESHOLD wins, otherwise the detector precision profile preset
// applies. Lower-precision detector builds produce softer crops, so their
// preset is more permissive.
func (c *Config) EffectiveBlurThreshold() float64 {
	if c.Pipeline.BlurThreshold > 0 {
		return c.Pipeline.BlurThreshold
	}
	if p, ok := c.Profiles.Profiles[c.Detector.Profile]; ok {
		return p.BlurThreshold
	}
	// Unknown profile falls back to the strict preset.
	return c.Profiles.Profiles["f32"].BlurThreshold
}
