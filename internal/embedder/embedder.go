package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder generates fixed-dimension embeddings for document text.
//
// EmbedBatch is positional: vector i always corresponds to texts[i]. Blank
// texts (empty or whitespace-only) produce a zero vector of the provider's
// dimension without being sent to the provider, so callers never need to
// filter their input and re-align the response.
type Embedder interface {
	// EmbedBatch embeds texts in one provider call, preserving order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds a single text
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a deep copy of a vector from cache
// Returns a copy to prevent caller mutations from affecting cached values
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}

	vectorCopy := make([]float32, len(vec))
	copy(vectorCopy, vec)
	return vectorCopy, true
}

// Set stores a vector in cache with automatic LRU eviction
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// isBlank reports whether a text contributes no embeddable content
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// zeroVector returns an all-zero vector of the given dimension
func zeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// embedBatchCached resolves a positional batch through the cache, sends
// only unresolved texts to callAPI, and reassembles vectors in input order.
// Blank texts never reach the provider.
func embedBatchCached(
	ctx context.Context,
	texts []string,
	dim int,
	cache *Cache,
	callAPI func(ctx context.Context, texts []string) ([][]float32, error),
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	vectors := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int

	for i, text := range texts {
		if isBlank(text) {
			vectors[i] = zeroVector(dim)
			continue
		}
		if cache != nil {
			if vec, ok := cache.Get(ComputeHash(text)); ok {
				vectors[i] = vec
				continue
			}
		}
		pending = append(pending, text)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) == 0 {
		return vectors, nil
	}

	fetched, err := callAPI(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(pending) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(fetched), len(pending))
	}

	for j, vec := range fetched {
		i := pendingIdx[j]
		vectors[i] = vec
		if cache != nil {
			cache.Set(ComputeHash(texts[i]), vec)
		}
	}

	return vectors, nil
}
