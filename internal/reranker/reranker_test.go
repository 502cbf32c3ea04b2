package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackOrdering(t *testing.T) {
	f := NewFallback()
	docs := []string{"a", "b", "c", "d"}

	ranked := f.Rerank(context.Background(), "query", docs, 3)
	require.Len(t, ranked, 3)

	for i, r := range ranked {
		assert.Equal(t, i, r.Index, "fallback must preserve input order")
	}

	// Scores strictly decrease so downstream sorting is stable
	for i := 1; i < len(ranked); i++ {
		assert.Less(t, ranked[i].Score, ranked[i-1].Score)
	}

	assert.False(t, f.Enabled())
}

func TestFallbackTopKClamped(t *testing.T) {
	f := NewFallback()

	ranked := f.Rerank(context.Background(), "q", []string{"a", "b"}, 10)
	assert.Len(t, ranked, 2)

	ranked = f.Rerank(context.Background(), "q", []string{"a", "b"}, 0)
	assert.Len(t, ranked, 2)
}

func TestJinaRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Documents, 3)

		// Reverse the input order with explicit scores
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.5},
				{"index": 1, "relevance_score": 0.1},
			},
		})
	}))
	defer server.Close()

	j := NewJina("test-key", "")
	j.apiURL = server.URL
	assert.True(t, j.Enabled())

	ranked := j.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, 2, ranked[0].Index)
	assert.InDelta(t, 0.9, ranked[0].Score, 0.0001)
	assert.Equal(t, 0, ranked[1].Index)
}

func TestJinaDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	j := NewJina("test-key", "")
	j.apiURL = server.URL

	docs := []string{"a", "b", "c"}
	ranked := j.Rerank(context.Background(), "query", docs, 2)
	require.Len(t, ranked, 2)

	// Degraded output preserves input order
	assert.Equal(t, 0, ranked[0].Index)
	assert.Equal(t, 1, ranked[1].Index)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestJinaWithoutKeyIsPassthrough(t *testing.T) {
	j := NewJina("", "")
	assert.False(t, j.Enabled())

	ranked := j.Rerank(context.Background(), "query", []string{"a", "b"}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Index)
}

func TestJinaEmptyDocs(t *testing.T) {
	j := NewJina("test-key", "")
	assert.Nil(t, j.Rerank(context.Background(), "query", nil, 5))
}
