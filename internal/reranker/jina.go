package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultJinaModel is the cross-encoder used when none is configured
	DefaultJinaModel = "jina-reranker-v2-base-multilingual"

	jinaRerankURL = "https://api.jina.ai/v1/rerank"
)

// JinaReranker scores query-document pairs through the Jina rerank API.
//
// The HTTP client is initialized lazily on first use, so constructing the
// reranker is free and a server that never reranks never pays for it. Any
// API failure degrades to passthrough ordering; reranking improves result
// quality but must never take search down with it.
type JinaReranker struct {
	apiKey string
	model  string
	apiURL string

	once       sync.Once
	httpClient *http.Client
}

// NewJina creates a Jina-backed reranker. The model falls back to the
// default cross-encoder when empty.
func NewJina(apiKey, model string) *JinaReranker {
	if model == "" {
		model = DefaultJinaModel
	}
	return &JinaReranker{
		apiKey: apiKey,
		model:  model,
		apiURL: jinaRerankURL,
	}
}

func (j *JinaReranker) Enabled() bool {
	return j.apiKey != ""
}

func (j *JinaReranker) client() *http.Client {
	j.once.Do(func() {
		j.httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	})
	return j.httpClient
}

// Rerank scores docs against the query. On any failure the input order is
// preserved via passthrough so the caller always gets usable results.
func (j *JinaReranker) Rerank(ctx context.Context, query string, docs []string, topK int) []Ranked {
	if len(docs) == 0 {
		return nil
	}
	if !j.Enabled() {
		return passthrough(docs, topK)
	}

	ranked, err := j.callAPI(ctx, query, docs, topK)
	if err != nil {
		log.Printf("reranker degraded to passthrough: %v", err)
		return passthrough(docs, topK)
	}
	return ranked
}

func (j *JinaReranker) callAPI(ctx context.Context, query string, docs []string, topK int) ([]Ranked, error) {
	if topK > len(docs) || topK <= 0 {
		topK = len(docs)
	}

	reqBody := map[string]interface{}{
		"model":     j.model,
		"query":     query,
		"documents": docs,
		"top_n":     topK,
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

	resp, err := j.client().Do(req)
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

	var apiResp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	ranked := make([]Ranked, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("result index %d out of range", r.Index)
		}
		ranked = append(ranked, Ranked{Index: r.Index, Score: r.RelevanceScore})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}
