package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Environment variables consulted by the providers and factory
const (
	EnvEmbeddingProvider = "DOCSEARCH_EMBEDDING_PROVIDER"
	EnvJinaAPIKey        = "JINA_API_KEY"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
)

// Default API endpoints, overridable for tests
const (
	jinaAPIURL   = "https://api.jina.ai/v1/embeddings"
	openAIAPIURL = "https://api.openai.com/v1/embeddings"
)

// JinaProvider implements Embedder using the Jina AI API
type JinaProvider struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	return &JinaProvider{
		apiKey: apiKey,
		model:  DefaultJinaModel,
		apiURL: jinaAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (j *JinaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatchCached(ctx, texts, JinaDimension, j.cache, func(ctx context.Context, pending []string) ([][]float32, error) {
		config := DefaultRetryConfig()
		vectors, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
			return j.callAPI(ctx, pending)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
		}
		return vectors, nil
	})
}

func (j *JinaProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := j.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": j.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", j.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return decodeEmbeddingResponse(resp.Body, len(texts))
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI API
type OpenAIProvider struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	return &OpenAIProvider{
		apiKey: apiKey,
		model:  DefaultOpenAIModel,
		apiURL: openAIAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatchCached(ctx, texts, OpenAIDimension, o.cache, func(ctx context.Context, pending []string) ([][]float32, error) {
		config := DefaultRetryConfig()
		vectors, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
			return o.callAPI(ctx, pending)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
		}
		return vectors, nil
	})
}

func (o *OpenAIProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": o.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return decodeEmbeddingResponse(resp.Body, len(texts))
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// decodeEmbeddingResponse parses the OpenAI-compatible embeddings payload
// shared by both hosted providers. The data array is re-ordered by the
// server-assigned index field so responses stay positional.
func decodeEmbeddingResponse(body io.Reader, want int) ([][]float32, error) {
	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != want {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(apiResp.Data), want)
	}

	vectors := make([][]float32, want)
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= want {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

// LocalProvider is an offline embedder that derives a deterministic vector
// from the text's hash. Quality is poor but behavior is stable, which keeps
// the full pipeline usable in tests and air-gapped environments.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatchCached(ctx, texts, LocalDimension, l.cache, func(_ context.Context, pending []string) ([][]float32, error) {
		vectors := make([][]float32, len(pending))
		for i, text := range pending {
			vectors[i] = localVector(text)
		}
		return vectors, nil
	})
}

func (l *LocalProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// localVector expands a SHA-256 digest across the local dimension
func localVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	digest := sha256.Sum256([]byte(text))
	for i := range vector {
		vector[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
