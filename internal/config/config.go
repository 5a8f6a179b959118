package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed formats.yaml
var formatsYAML []byte

type Config struct {
	Data     DataConfig
	Analyzer AnalyzerConfig
	Database DatabaseConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Ingest   IngestConfig
	Dedupe   DedupeConfig
	Cluster  ClusterConfig
	Formats  FormatsConfig
}

type DataConfig struct {
	Dir string // directory holding metadata.db and the vector index files
}

// MetadataPath is the SQLite database file inside the data directory.
func (c *DataConfig) MetadataPath() string {
	return filepath.Join(c.Dir, "metadata.db")
}

// MediaIndexPath is the media-level vector index file inside the data directory.
func (c *DataConfig) MediaIndexPath() string {
	return filepath.Join(c.Dir, "media.hnsw")
}

// FaceIndexPath is the face-level vector index file inside the data directory.
func (c *DataConfig) FaceIndexPath() string {
	return filepath.Join(c.Dir, "faces.hnsw")
}

type AnalyzerConfig struct {
	URL      string // analyzer sidecar base URL (e.g., http://localhost:8000)
	MediaDim int    // media embedding dimensionality (default 768)
	FaceDim  int    // face embedding dimensionality (default 512)
}

type DatabaseConfig struct {
	URL          string // optional PostgreSQL URL; when set, metadata lives in Postgres with a pgvector embedding mirror
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type IngestConfig struct {
	BatchSize   int // items committed per relational transaction
	LoadWorkers int // parallel file loaders feeding the analyzer
}

type DedupeConfig struct {
	ImageThreshold    float64 // minimum cosine similarity for image candidates
	VideoThreshold    float64 // minimum cosine similarity for video candidates
	IdenticalFloor    float64 // similarity above this is treated as the item matching itself
	HashThreshold     int     // maximum Hamming distance between perceptual hashes
	DurationTolerance float64 // maximum video duration difference in seconds
}

type ClusterConfig struct {
	Eps       float64 // DBSCAN neighborhood radius (euclidean over unit vectors)
	MinPoints int     // DBSCAN core point density
}

type FormatsConfig struct {
	Extensions ExtensionsConfig `yaml:"extensions"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

type ExtensionsConfig struct {
	Image []string `yaml:"image"`
	Video []string `yaml:"video"`
}

type DefaultsConfig struct {
	BatchSize                int     `yaml:"batch_size"`
	LoadWorkers              int     `yaml:"load_workers"`
	ImageSimilarityThreshold float64 `yaml:"image_similarity_threshold"`
	VideoSimilarityThreshold float64 `yaml:"video_similarity_threshold"`
	IdenticalSimilarityFloor float64 `yaml:"identical_similarity_floor"`
	HashDistanceThreshold    int     `yaml:"hash_distance_threshold"`
	DurationToleranceSeconds float64 `yaml:"duration_tolerance_seconds"`
	ClusterEps               float64 `yaml:"cluster_eps"`
	ClusterMinPoints         int     `yaml:"cluster_min_points"`
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
	var formats FormatsConfig
	if err := yaml.Unmarshal(formatsYAML, &formats); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded formats.yaml: " + err.Error())
	}
	d := formats.Defaults

	return &Config{
		Data: DataConfig{
			Dir: envString("CURATOR_DATA_DIR", "data"),
		},
		Analyzer: AnalyzerConfig{
			URL:      envString("ANALYZER_URL", "http://localhost:8000"),
			MediaDim: envInt("MEDIA_EMBEDDING_DIM", 768),
			FaceDim:  envInt("FACE_EMBEDDING_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ingest: IngestConfig{
			BatchSize:   envInt("INGEST_BATCH_SIZE", d.BatchSize),
			LoadWorkers: envInt("INGEST_LOAD_WORKERS", d.LoadWorkers),
		},
		Dedupe: DedupeConfig{
			ImageThreshold:    envFloat("DEDUPE_IMAGE_THRESHOLD", d.ImageSimilarityThreshold),
			VideoThreshold:    envFloat("DEDUPE_VIDEO_THRESHOLD", d.VideoSimilarityThreshold),
			IdenticalFloor:    d.IdenticalSimilarityFloor,
			HashThreshold:     envInt("DEDUPE_HASH_THRESHOLD", d.HashDistanceThreshold),
			DurationTolerance: envFloat("DEDUPE_DURATION_TOLERANCE", d.DurationToleranceSeconds),
		},
		Cluster: ClusterConfig{
			Eps:       envFloat("CLUSTER_EPS", d.ClusterEps),
			MinPoints: envInt("CLUSTER_MIN_POINTS", d.ClusterMinPoints),
		},
		Formats: formats,
	}
}

// IsImage reports whether ext (lowercase, with leading dot) is a recognized image extension.
func (c *FormatsConfig) IsImage(ext string) bool {
	for _, e := range c.Extensions.Image {
		if e == ext {
			return true
		}
	}
	return false
}

// IsVideo reports whether ext (lowercase, with leading dot) is a recognized video extension.
func (c *FormatsConfig) IsVideo(ext string) bool {
	for _, e := range c.Extensions.Video {
		if e == ext {
			return true
		}
	}
	return false
}
