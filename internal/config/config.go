package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration
const (
	EnvConfigPath      = "DOCSEARCH_CONFIG"
	EnvDBPath          = "DOCSEARCH_DB_PATH"
	EnvRerankerEnabled = "DOCSEARCH_RERANKER_ENABLED"
)

// DatabaseConfig locates the SQLite database file
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig configures how page text is split into chunks
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbeddingConfig selects and sizes the embedding provider. API keys come
// from the environment, never from the config file.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	CacheSize int    `yaml:"cache_size"`
	BatchSize int    `yaml:"batch_size"`
}

// SearchConfig holds the fusion and cache tuning knobs
type SearchConfig struct {
	TopK            int     `yaml:"top_k"`
	CandidateFactor int     `yaml:"candidate_factor"`
	RRFK            int     `yaml:"rrf_k"`
	VectorWeight    float64 `yaml:"vector_weight"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSecs    int     `yaml:"cache_ttl_secs"`
}

// RerankerConfig enables the cross-encoder rerank stage. The API key comes
// from JINA_API_KEY in the environment.
type RerankerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// Config is the root application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Reranker  RerankerConfig  `yaml:"reranker"`
}

// CacheTTL returns the result cache TTL as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLSecs) * time.Second
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file, fills defaults, and applies
// environment overrides. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault resolves the config path from DOCSEARCH_CONFIG, falling back
// to ./docsearch.yaml
func LoadDefault() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = "docsearch.yaml"
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			cfg.Database.Path = "docsearch.db"
		} else {
			cfg.Database.Path = filepath.Join(home, ".docsearch", "docsearch.db")
		}
	}
	if cfg.Chunking.ChunkSize <= 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.Overlap <= 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Embedding.CacheSize <= 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 50
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Search.CandidateFactor <= 0 {
		cfg.Search.CandidateFactor = 3
	}
	if cfg.Search.RRFK <= 0 {
		cfg.Search.RRFK = 60
	}
	if cfg.Search.VectorWeight <= 0 {
		cfg.Search.VectorWeight = 0.6
	}
	if cfg.Search.KeywordWeight <= 0 {
		cfg.Search.KeywordWeight = 0.4
	}
	if cfg.Search.CacheSize <= 0 {
		cfg.Search.CacheSize = 512
	}
	if cfg.Search.CacheTTLSecs <= 0 {
		cfg.Search.CacheTTLSecs = 300
	}
}

func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv(EnvDBPath); path != "" {
		cfg.Database.Path = path
	}
	if v := os.Getenv(EnvRerankerEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Reranker.Enabled = enabled
		}
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking overlap (%d) must be smaller than chunk size (%d)",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Search.VectorWeight+c.Search.KeywordWeight <= 0 {
		return fmt.Errorf("fusion weights must be positive")
	}
	return nil
}
