// Package searcher implements hybrid document retrieval combining vector
// similarity and keyword matching.
//
// The searcher provides four search modes:
//   - Hybrid: Vector + FTS over chunks fused with RRF (recommended)
//   - Vector: Pure semantic search using embeddings
//   - Keyword: FTS5 full-text search only
//   - Items: Hybrid over extracted line items instead of chunks
//
// # Basic Usage
//
//	s := searcher.New(store, vectors, embedder, reranker, searcher.Config{})
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query: "copper pipe fittings",
//	    TopK:  10,
//	    Mode:  searcher.SearchModeHybrid,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] doc %d page %d (%.4f)\n",
//	        r.FinalRank, r.DocID, r.PageNo, r.FinalScore)
//	}
//
// # Reciprocal Rank Fusion
//
// Hybrid mode runs both legs in parallel at a widened candidate fan-out,
// then fuses them:
//
//	for each result r at zero-based rank in vector_results:
//	    score[r.identity] += vector_weight / (k + rank + 1)
//	for each result r at zero-based rank in keyword_results:
//	    score[r.identity] += keyword_weight / (k + rank + 1)
//	sort by score descending, ties by encounter order
//
// with k = 60, vector_weight = 0.6, keyword_weight = 0.4 by default. A
// result present in both legs accumulates both contributions, so agreement
// between the legs outranks a strong showing in just one.
//
// # Degradation
//
// Search never fails because a dependency does. A leg that errors (provider
// down, index missing) degrades to an empty list and is logged; the reranker
// degrades to order-preserving passthrough scores. The only errors Search
// returns are for malformed requests.
//
// # Query Expansion
//
// The keyword leg expands code-like tokens before hitting FTS: a token such
// as "85.36.20.00" additionally emits "85362000" and its segments, so the
// normalized forms stored in documents still match the punctuated query.
//
// # Caching
//
// Responses are cached in a bounded LRU keyed by a hash of every
// result-affecting request field, with a TTL. The indexing pipeline calls
// Invalidate after every successful mutation, so a cached response never
// outlives the data it was computed from.
package searcher
