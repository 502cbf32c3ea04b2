package reranker

import (
	"context"
)

// Ranked is one reranked document: the index into the input docs slice and
// the cross-encoder relevance score, higher is better.
type Ranked struct {
	Index int
	Score float64
}

// Reranker re-orders candidate documents by scoring each query-document
// pair together rather than independently.
//
// Rerank never fails the search: implementations degrade to a passthrough
// ordering when the backend is unavailable, so callers treat the output as
// authoritative without an error path.
type Reranker interface {
	// Rerank scores docs against the query and returns the topK best,
	// highest score first
	Rerank(ctx context.Context, query string, docs []string, topK int) []Ranked

	// Enabled reports whether a real cross-encoder backs this reranker
	Enabled() bool
}

// passthrough returns the first topK docs in their incoming order with
// strictly decreasing synthetic scores, preserving upstream ranking
func passthrough(docs []string, topK int) []Ranked {
	if topK > len(docs) || topK <= 0 {
		topK = len(docs)
	}
	ranked := make([]Ranked, topK)
	for i := 0; i < topK; i++ {
		ranked[i] = Ranked{Index: i, Score: 1.0 - 0.01*float64(i)}
	}
	return ranked
}

// Fallback is the no-op reranker used when reranking is disabled or no
// backend is configured
type Fallback struct{}

// NewFallback creates a passthrough reranker
func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Rerank(_ context.Context, _ string, docs []string, topK int) []Ranked {
	return passthrough(docs, topK)
}

func (f *Fallback) Enabled() bool {
	return false
}
