package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/archonlabs/docsearch/internal/embedder"
	"github.com/archonlabs/docsearch/internal/reranker"
	"github.com/archonlabs/docsearch/internal/storage"
	"github.com/archonlabs/docsearch/internal/vectorindex"
	"github.com/archonlabs/docsearch/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + FTS with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // FTS text search only
	SearchModeItems   SearchMode = "items"   // Hybrid over line items
)

// Filters narrows results after fusion. Zero values mean no filtering.
type Filters struct {
	DocID    int64
	PageType string
}

// Request contains parameters for a search operation
type Request struct {
	Query       string
	TopK        int
	Mode        SearchMode
	Filters     Filters
	UseReranker bool
	UseCache    bool
}

// Response contains search results and metadata
type Response struct {
	Results        []types.SearchResult
	TotalResults   int
	Mode           SearchMode
	Duration       time.Duration
	CacheHit       bool
	Reranked       bool
	VectorResults  int
	KeywordResults int
}

// Config holds the fusion and cache tuning knobs
type Config struct {
	TopK            int     // Default result count (default: 10)
	CandidateFactor int     // Leg fan-out multiplier (default: 3)
	RRFK            float64 // RRF dampening constant (default: 60)
	VectorWeight    float64 // Vector leg fusion weight (default: 0.6)
	KeywordWeight   float64 // Keyword leg fusion weight (default: 0.4)
	CacheSize       int     // Result cache entries (default: 512)
	CacheTTL        time.Duration
}

func (c *Config) fillDefaults() {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = 3
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.VectorWeight <= 0 {
		c.VectorWeight = 0.6
	}
	if c.KeywordWeight <= 0 {
		c.KeywordWeight = 0.4
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 512
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// cacheEntry is a cached response with its expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher coordinates hybrid retrieval across the vector and keyword legs
type Searcher struct {
	store    storage.Store
	vectors  vectorindex.Index
	embedder embedder.Embedder
	reranker reranker.Reranker
	cfg      Config

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher. A nil reranker falls back to passthrough.
func New(store storage.Store, vectors vectorindex.Index, emb embedder.Embedder, rr reranker.Reranker, cfg Config) *Searcher {
	cfg.fillDefaults()
	if rr == nil {
		rr = reranker.NewFallback()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size, which fillDefaults prevents
		panic(fmt.Sprintf("failed to create result cache: %v", err))
	}

	return &Searcher{
		store:    store,
		vectors:  vectors,
		embedder: emb,
		reranker: rr,
		cfg:      cfg,
		cache:    cache,
	}
}

// Search runs one retrieval request. Leg failures degrade to an empty list
// for that leg and are logged; the caller always gets a ranked (possibly
// empty) result set. The returned error covers only malformed requests.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if req.TopK <= 0 {
		req.TopK = s.cfg.TopK
	}
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *Response
	switch req.Mode {
	case SearchModeHybrid:
		response = s.hybridSearch(ctx, req, storage.IndexChunks)
	case SearchModeItems:
		response = s.hybridSearch(ctx, req, storage.IndexItems)
	case SearchModeVector:
		response = s.vectorOnlySearch(ctx, req)
	case SearchModeKeyword:
		response = s.keywordOnlySearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	response.Duration = time.Since(startTime)
	response.Mode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// candidateLimit is the widened fan-out each leg requests so fusion has
// enough overlap signal before truncating to TopK
func (s *Searcher) candidateLimit(topK int) int {
	return topK * s.cfg.CandidateFactor
}

// legResult carries one leg's outcome across the goroutine boundary
type legResult struct {
	results []types.SearchResult
	err     error
}

// hybridSearch runs both legs in parallel, fuses them, filters, reranks,
// and truncates to TopK
func (s *Searcher) hybridSearch(ctx context.Context, req Request, indexName string) *Response {
	limit := s.candidateLimit(req.TopK)

	vectorChan := make(chan legResult, 1)
	keywordChan := make(chan legResult, 1)

	go func() {
		results, err := s.vectorLeg(ctx, req.Query, limit, indexName)
		vectorChan <- legResult{results: results, err: err}
	}()
	go func() {
		results, err := s.keywordLeg(ctx, req.Query, limit, indexName)
		keywordChan <- legResult{results: results, err: err}
	}()

	vectorRes := <-vectorChan
	keywordRes := <-keywordChan

	// A failing leg degrades to empty; hybrid continues on the other
	if vectorRes.err != nil {
		log.Printf("vector leg degraded to empty: %v", vectorRes.err)
		vectorRes.results = nil
	}
	if keywordRes.err != nil {
		log.Printf("keyword leg degraded to empty: %v", keywordRes.err)
		keywordRes.results = nil
	}

	fused := reciprocalRankFusion(vectorRes.results, keywordRes.results,
		s.cfg.RRFK, s.cfg.VectorWeight, s.cfg.KeywordWeight)
	fused = applyFilters(fused, req.Filters)
	results := s.rerankStage(ctx, req, fused)

	return &Response{
		Results:        results,
		TotalResults:   len(results),
		Reranked:       req.UseReranker && s.reranker.Enabled(),
		VectorResults:  len(vectorRes.results),
		KeywordResults: len(keywordRes.results),
	}
}

// vectorOnlySearch never invokes the keyword leg
func (s *Searcher) vectorOnlySearch(ctx context.Context, req Request) *Response {
	results, err := s.vectorLeg(ctx, req.Query, s.candidateLimit(req.TopK), storage.IndexChunks)
	if err != nil {
		log.Printf("vector leg degraded to empty: %v", err)
		results = nil
	}

	results = applyFilters(results, req.Filters)
	results = s.rerankStage(ctx, req, results)

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		Reranked:      req.UseReranker && s.reranker.Enabled(),
		VectorResults: len(results),
	}
}

// keywordOnlySearch never invokes the vector leg
func (s *Searcher) keywordOnlySearch(ctx context.Context, req Request) *Response {
	results, err := s.keywordLeg(ctx, req.Query, s.candidateLimit(req.TopK), storage.IndexChunks)
	if err != nil {
		log.Printf("keyword leg degraded to empty: %v", err)
		results = nil
	}

	results = applyFilters(results, req.Filters)
	results = s.rerankStage(ctx, req, results)

	return &Response{
		Results:        results,
		TotalResults:   len(results),
		Reranked:       req.UseReranker && s.reranker.Enabled(),
		KeywordResults: len(results),
	}
}

// vectorLeg embeds the query and resolves nearest neighbors into
// denormalized results
func (s *Searcher) vectorLeg(ctx context.Context, query string, limit int, indexName string) ([]types.SearchResult, error) {
	// A blank query embeds to the zero vector, which would match everything
	// with score zero
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	queryVector, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	hits, err := s.vectors.Search(ctx, indexName, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	if indexName == storage.IndexItems {
		return s.resolveItemHits(ctx, hits)
	}
	return s.resolveChunkHits(ctx, hits)
}

func (s *Searcher) resolveChunkHits(ctx context.Context, hits []vectorindex.Hit) ([]types.SearchResult, error) {
	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}

	chunks, err := s.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	byID := make(map[int64]*types.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := byID[hit.ID]
		if !ok {
			// Vector outlived its chunk (deleted mid-query); skip
			continue
		}

		res := types.SearchResult{
			Identity:    types.ChunkIdentity(chunk.ID),
			DocID:       chunk.DocID,
			Text:        chunk.Text,
			PageType:    chunk.Metadata[types.MetaPageType],
			VectorScore: hit.Score,
			VectorRank:  len(results),
			FinalRank:   len(results),
		}
		res.FinalScore = res.VectorScore
		if no, err := strconv.Atoi(chunk.Metadata[types.MetaPageNo]); err == nil {
			res.PageNo = no
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Searcher) resolveItemHits(ctx context.Context, hits []vectorindex.Hit) ([]types.SearchResult, error) {
	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}

	items, err := s.store.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}

	byID := make(map[int64]*types.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		item, ok := byID[hit.ID]
		if !ok {
			continue
		}

		res := types.SearchResult{
			Identity:    types.ItemIdentity(item.ID),
			DocID:       item.DocID,
			Text:        item.Text,
			VectorScore: hit.Score,
			VectorRank:  len(results),
			FinalRank:   len(results),
		}
		res.FinalScore = res.VectorScore
		results = append(results, res)
	}
	return results, nil
}

// keywordLeg expands the query and runs ranked FTS
func (s *Searcher) keywordLeg(ctx context.Context, query string, limit int, indexName string) ([]types.SearchResult, error) {
	expanded := expandQuery(query)
	if expanded == "" {
		return nil, nil
	}

	if indexName == storage.IndexItems {
		return s.store.SearchItemsFTS(ctx, expanded, limit)
	}
	return s.store.SearchChunksFTS(ctx, expanded, limit)
}

// tokenPattern matches alphanumerics plus dots, hyphens, underscores
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9._-]+`)

// expandQuery appends normalized variants of code-like tokens to the
// original query. A token containing '.' or '-' (a tariff code like
// "85.36.20.00") additionally emits its separator-stripped form and each
// delimited segment, so exact-phrase relevance is preserved while
// normalized variants still match. Empty input expands to empty output.
func expandQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	var expansions []string
	for _, token := range tokenPattern.FindAllString(query, -1) {
		if !strings.ContainsAny(token, ".-") {
			continue
		}

		stripped := strings.NewReplacer(".", "", "-", "").Replace(token)
		if stripped != "" && stripped != token {
			expansions = append(expansions, stripped)
		}
		for _, part := range strings.FieldsFunc(token, func(r rune) bool {
			return r == '.' || r == '-'
		}) {
			expansions = append(expansions, part)
		}
	}

	if len(expansions) == 0 {
		return query
	}
	return query + " " + strings.Join(expansions, " ")
}

// reciprocalRankFusion merges two ranked lists into one. Each result at
// zero-based rank r contributes weight/(k+r+1) to its identity's combined
// score; an identity present in both lists accumulates both contributions
// and outranks one appearing in only one list. Results without a usable
// identity are skipped — they cannot be deduplicated or returned. The
// first-encountered record for an identity is canonical (the vector list
// is accumulated first, so its richer record wins). Output is sorted by
// descending score with ties broken by encounter order; the function is
// pure and deterministic, which the cache key stability relies on.
func reciprocalRankFusion(vectorResults, keywordResults []types.SearchResult, k, vectorWeight, keywordWeight float64) []types.SearchResult {
	type slot struct {
		result types.SearchResult
		score  float64
	}

	byIdentity := make(map[types.ResultIdentity]*slot)
	var order []*slot

	accumulate := func(list []types.SearchResult, weight float64) {
		for rank, res := range list {
			if res.Identity.IsNone() {
				continue
			}
			contribution := weight / (k + float64(rank) + 1)

			if existing, ok := byIdentity[res.Identity]; ok {
				existing.score += contribution
				// Carry leg-specific scores onto the canonical record
				if existing.result.FTSScore == 0 {
					existing.result.FTSScore = res.FTSScore
				}
				if existing.result.VectorRank < 0 && res.VectorRank >= 0 {
					existing.result.VectorScore = res.VectorScore
					existing.result.VectorRank = res.VectorRank
				}
				continue
			}

			entry := &slot{result: res, score: contribution}
			byIdentity[res.Identity] = entry
			order = append(order, entry)
		}
	}

	accumulate(vectorResults, vectorWeight)
	accumulate(keywordResults, keywordWeight)

	// Stable sort keeps encounter order for equal scores
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	fused := make([]types.SearchResult, len(order))
	for i, entry := range order {
		res := entry.result
		res.HybridScore = entry.score
		res.FinalScore = entry.score
		res.FinalRank = i
		fused[i] = res
	}
	return fused
}

// applyFilters drops results the request filters exclude, re-ranking the
// survivors sequentially
func applyFilters(results []types.SearchResult, f Filters) []types.SearchResult {
	if f.DocID == 0 && f.PageType == "" {
		return results
	}

	filtered := make([]types.SearchResult, 0, len(results))
	for _, res := range results {
		if f.DocID != 0 && res.DocID != f.DocID {
			continue
		}
		if f.PageType != "" && res.PageType != f.PageType {
			continue
		}
		res.FinalRank = len(filtered)
		filtered = append(filtered, res)
	}
	return filtered
}

// rerankStage optionally re-scores the candidates and truncates to TopK.
// The reranker never fails; at worst it preserves the incoming order.
func (s *Searcher) rerankStage(ctx context.Context, req Request, candidates []types.SearchResult) []types.SearchResult {
	if len(candidates) == 0 {
		return []types.SearchResult{}
	}

	if !req.UseReranker {
		if req.TopK < len(candidates) {
			candidates = candidates[:req.TopK]
		}
		return candidates
	}

	docs := make([]string, len(candidates))
	for i, res := range candidates {
		docs[i] = res.Text
	}

	ranked := s.reranker.Rerank(ctx, req.Query, docs, req.TopK)
	results := make([]types.SearchResult, 0, len(ranked))
	for i, r := range ranked {
		res := candidates[r.Index]
		res.RerankerScore = r.Score
		res.FinalScore = r.Score
		res.FinalRank = i
		results = append(results, res)
	}
	return results
}

// BuildContext formats the top hybrid results into bounded prompt context
// for RAG callers, returning the context string and the number of chunks
// included
func (s *Searcher) BuildContext(ctx context.Context, query string, maxChars int) (string, int) {
	if maxChars <= 0 {
		maxChars = 4000
	}

	response, err := s.Search(ctx, Request{
		Query:    query,
		Mode:     SearchModeHybrid,
		UseCache: true,
	})
	if err != nil || len(response.Results) == 0 {
		return "", 0
	}

	var b strings.Builder
	included := 0
	for _, res := range response.Results {
		section := fmt.Sprintf("[Document %d, page %d (%s)]\n%s\n\n",
			res.DocID, res.PageNo, res.PageType, res.Text)
		if b.Len()+len(section) > maxChars && included > 0 {
			break
		}
		b.WriteString(section)
		included++
		if b.Len() >= maxChars {
			break
		}
	}

	return strings.TrimRight(b.String(), "\n"), included
}

// checkCache returns a copied, unexpired cached response or nil
func (s *Searcher) checkCache(req Request) *Response {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a response copy under the request's key
func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(s.cfg.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// Invalidate empties the result cache. The pipeline calls this after every
// successful mutation; the cache has no version key, so unconditional
// invalidation is the only staleness defense.
func (s *Searcher) Invalidate() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheStats describes the current cache occupancy
type CacheStats struct {
	Entries  int
	Capacity int
}

// CacheStats reports cache occupancy for the status surface
func (s *Searcher) CacheStats() CacheStats {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return CacheStats{
		Entries:  s.cache.Len(),
		Capacity: s.cfg.CacheSize,
	}
}

// copyResponse deep-copies a response so cached entries cannot be mutated
// by callers
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeQueryHash builds the cache key from every request field that
// affects the result set
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(strconv.Itoa(req.TopK))
	data.WriteString("|")
	data.WriteString(strconv.FormatInt(req.Filters.DocID, 10))
	data.WriteString("|")
	data.WriteString(req.Filters.PageType)
	data.WriteString("|")
	data.WriteString(strconv.FormatBool(req.UseReranker))
	return sha256.Sum256([]byte(data.String()))
}
