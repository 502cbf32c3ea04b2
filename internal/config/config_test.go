package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 3, cfg.Search.CandidateFactor)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.InDelta(t, 0.6, cfg.Search.VectorWeight, 0.0001)
	assert.InDelta(t, 0.4, cfg.Search.KeywordWeight, 0.0001)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.False(t, cfg.Reranker.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsearch.yaml")
	content := `
database:
  path: /tmp/test.db
chunking:
  chunk_size: 500
  overlap: 50
search:
  top_k: 5
  vector_weight: 0.7
  keyword_weight: 0.3
reranker:
  enabled: true
  model: custom-reranker
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.InDelta(t, 0.7, cfg.Search.VectorWeight, 0.0001)
	assert.True(t, cfg.Reranker.Enabled)
	assert.Equal(t, "custom-reranker", cfg.Reranker.Model)

	// Unset fields still get defaults
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 300, cfg.Search.CacheTTLSecs)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/env/override.db")
	t.Setenv(EnvRerankerEnabled, "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/override.db", cfg.Database.Path)
	assert.True(t, cfg.Reranker.Enabled)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsearch.yaml")
	content := `
chunking:
  chunk_size: 100
  overlap: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
