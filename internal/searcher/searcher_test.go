package searcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archonlabs/docsearch/internal/chunker"
	"github.com/archonlabs/docsearch/internal/embedder"
	"github.com/archonlabs/docsearch/internal/indexer"
	"github.com/archonlabs/docsearch/internal/reranker"
	"github.com/archonlabs/docsearch/internal/storage"
	"github.com/archonlabs/docsearch/internal/vectorindex"
	"github.com/archonlabs/docsearch/pkg/types"
)

// failingEmbedder errors on every call, for degradation tests
type failingEmbedder struct {
	embedder.Embedder
}

func (f *failingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

// reversingReranker is an always-enabled reranker that inverts the order
type reversingReranker struct{}

func (r *reversingReranker) Enabled() bool { return true }

func (r *reversingReranker) Rerank(ctx context.Context, query string, docs []string, topK int) []reranker.Ranked {
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}
	ranked := make([]reranker.Ranked, 0, topK)
	for i := len(docs) - 1; i >= len(docs)-topK; i-- {
		ranked = append(ranked, reranker.Ranked{Index: i, Score: float64(len(docs) - i)})
	}
	return ranked
}

type testEnv struct {
	searcher *Searcher
	indexer  *indexer.Indexer
	store    storage.Store
}

func newTestEnv(t *testing.T, rr reranker.Reranker) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	vectors := vectorindex.NewSQLiteIndex(store.DB())
	s := New(store, vectors, emb, rr, Config{CacheTTL: time.Minute})
	idx := indexer.New(store, vectors, emb, chunker.New(200, 40), nil)
	idx.OnMutation(s.Invalidate)

	return &testEnv{searcher: s, indexer: idx, store: store}
}

// ingest creates a document with one classified page per text and indexes it
func (e *testEnv) ingest(t *testing.T, classification string, pageTexts ...string) *types.Document {
	t.Helper()
	ctx := context.Background()

	doc := &types.Document{Filename: "doc.pdf", Status: types.StatusPending, IsLatest: true}
	require.NoError(t, e.store.CreateDocument(ctx, doc))

	pages := make([]*types.Page, len(pageTexts))
	for i, text := range pageTexts {
		pages[i] = &types.Page{
			DocID:          doc.ID,
			PageNo:         i + 1,
			Text:           text,
			Classification: classification,
			Confidence:     0.9,
		}
	}
	require.NoError(t, e.store.CreatePages(ctx, pages))

	_, err := e.indexer.IndexDocument(ctx, doc.ID)
	require.NoError(t, err)
	return doc
}

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"plain words unchanged", "copper pipe fittings", "copper pipe fittings"},
		{
			"dotted code",
			"tariff 85.36.20.00",
			"tariff 85.36.20.00 85362000 85 36 20 00",
		},
		{
			"hyphenated part number",
			"part AB-12-C",
			"part AB-12-C AB12C AB 12 C",
		},
		{
			"mixed separators",
			"ref 10.5-B",
			"ref 10.5-B 105B 10 5 B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandQuery(tt.query))
		})
	}
}

func TestReciprocalRankFusion(t *testing.T) {
	const (
		k            = 60.0
		vectorWeight = 0.6
		kwWeight     = 0.4
	)

	chunk := func(id int64) types.SearchResult {
		return types.SearchResult{
			Identity:   types.ChunkIdentity(id),
			DocID:      1,
			Text:       fmt.Sprintf("chunk %d", id),
			VectorRank: -1,
		}
	}

	t.Run("presence in both legs outranks either alone", func(t *testing.T) {
		vector := []types.SearchResult{chunk(1), chunk(2)}
		keyword := []types.SearchResult{chunk(3), chunk(2)}

		fused := reciprocalRankFusion(vector, keyword, k, vectorWeight, kwWeight)
		require.Len(t, fused, 3)

		// Chunk 2 appears in both lists and must win
		assert.Equal(t, types.ChunkIdentity(2), fused[0].Identity)
		expected := vectorWeight/(k+2) + kwWeight/(k+2)
		assert.InDelta(t, expected, fused[0].FinalScore, 1e-12)
		assert.Equal(t, fused[0].FinalScore, fused[0].HybridScore)
	})

	t.Run("empty vector leg preserves keyword order", func(t *testing.T) {
		keyword := []types.SearchResult{chunk(10), chunk(20)}

		fused := reciprocalRankFusion(nil, keyword, k, vectorWeight, kwWeight)
		require.Len(t, fused, 2)
		assert.Equal(t, types.ChunkIdentity(10), fused[0].Identity)
		assert.Equal(t, types.ChunkIdentity(20), fused[1].Identity)
		assert.Equal(t, 0, fused[0].FinalRank)
		assert.Equal(t, 1, fused[1].FinalRank)
	})

	t.Run("results without identity are skipped", func(t *testing.T) {
		vector := []types.SearchResult{
			{Identity: types.ResultIdentity{}, Text: "orphan"},
			chunk(5),
		}
		fused := reciprocalRankFusion(vector, nil, k, vectorWeight, kwWeight)
		require.Len(t, fused, 1)
		assert.Equal(t, types.ChunkIdentity(5), fused[0].Identity)
	})

	t.Run("ties break by encounter order", func(t *testing.T) {
		// Same rank, same weight: identical scores
		vector := []types.SearchResult{chunk(1)}
		keyword := []types.SearchResult{chunk(2)}

		fused := reciprocalRankFusion(vector, keyword, k, 0.5, 0.5)
		require.Len(t, fused, 2)
		assert.Equal(t, types.ChunkIdentity(1), fused[0].Identity)
		assert.Equal(t, types.ChunkIdentity(2), fused[1].Identity)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		vector := []types.SearchResult{chunk(1), chunk(2), chunk(3)}
		keyword := []types.SearchResult{chunk(3), chunk(4), chunk(1)}

		first := reciprocalRankFusion(vector, keyword, k, vectorWeight, kwWeight)
		for i := 0; i < 10; i++ {
			again := reciprocalRankFusion(vector, keyword, k, vectorWeight, kwWeight)
			require.Equal(t, first, again)
		}
	})

	t.Run("leg scores merge onto the canonical record", func(t *testing.T) {
		v := chunk(7)
		v.VectorScore = 0.91
		v.VectorRank = 0
		kw := chunk(7)
		kw.FTSScore = 3.2

		fused := reciprocalRankFusion([]types.SearchResult{v}, []types.SearchResult{kw}, k, vectorWeight, kwWeight)
		require.Len(t, fused, 1)
		assert.Equal(t, 0.91, fused[0].VectorScore)
		assert.Equal(t, 3.2, fused[0].FTSScore)
	})
}

func TestApplyFilters(t *testing.T) {
	results := []types.SearchResult{
		{Identity: types.ChunkIdentity(1), DocID: 1, PageType: "invoice"},
		{Identity: types.ChunkIdentity(2), DocID: 2, PageType: "invoice"},
		{Identity: types.ChunkIdentity(3), DocID: 1, PageType: "packing_list"},
	}

	t.Run("no filters returns input", func(t *testing.T) {
		assert.Len(t, applyFilters(results, Filters{}), 3)
	})

	t.Run("doc filter", func(t *testing.T) {
		filtered := applyFilters(results, Filters{DocID: 1})
		require.Len(t, filtered, 2)
		assert.Equal(t, 0, filtered[0].FinalRank)
		assert.Equal(t, 1, filtered[1].FinalRank)
	})

	t.Run("page type filter", func(t *testing.T) {
		filtered := applyFilters(results, Filters{PageType: "packing_list"})
		require.Len(t, filtered, 1)
		assert.Equal(t, types.ChunkIdentity(3), filtered[0].Identity)
	})

	t.Run("combined filters", func(t *testing.T) {
		filtered := applyFilters(results, Filters{DocID: 1, PageType: "invoice"})
		require.Len(t, filtered, 1)
		assert.Equal(t, types.ChunkIdentity(1), filtered[0].Identity)
	})
}

func TestSearchHybrid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.ingest(t, "invoice",
		"The shipment contains copper fittings. Each fitting is threaded brass. Total weight ninety kilograms.",
		"Payment is due within thirty days. Late payment accrues monthly interest.")

	resp, err := env.searcher.Search(ctx, Request{Query: "copper fittings", TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, SearchModeHybrid, resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.False(t, resp.CacheHit)
	assert.False(t, resp.Reranked)
	assert.Greater(t, resp.KeywordResults, 0)

	for i, res := range resp.Results {
		assert.Equal(t, i, res.FinalRank)
		assert.False(t, res.Identity.IsNone())
		assert.NotEmpty(t, res.Text)
		assert.Equal(t, "invoice", res.PageType)
		assert.Greater(t, res.FinalScore, 0.0)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingest(t, "invoice", "Some indexed content. With two sentences.")

	resp, err := env.searcher.Search(context.Background(), Request{Query: ""})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchUnsupportedMode(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.searcher.Search(context.Background(), Request{Query: "x", Mode: "fuzzy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported search mode")
}

func TestSearchVectorModeSkipsKeywordLeg(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingest(t, "invoice", "Copper fittings on the first page. Brass valves on the same page.")

	resp, err := env.searcher.Search(context.Background(), Request{
		Query: "copper fittings",
		Mode:  SearchModeVector,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.KeywordResults)
	require.NotEmpty(t, resp.Results)
	for _, res := range resp.Results {
		assert.GreaterOrEqual(t, res.VectorRank, 0)
		assert.Zero(t, res.FTSScore)
	}
}

func TestSearchKeywordMode(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingest(t, "invoice", "Tariff code 85362000 applies. Declared value is stated elsewhere.")

	resp, err := env.searcher.Search(context.Background(), Request{
		Query: "85.36.20.00",
		Mode:  SearchModeKeyword,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.VectorResults)

	// The expansion makes the punctuated query match the normalized text
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Text, "85362000")
}

func TestSearchDegradesWhenEmbedderFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingest(t, "invoice", "Copper fittings described here. Second sentence for padding.")
	env.searcher.embedder = &failingEmbedder{}

	resp, err := env.searcher.Search(context.Background(), Request{Query: "copper fittings"})
	require.NoError(t, err, "a dead vector leg must not fail the search")

	assert.Equal(t, 0, resp.VectorResults)
	assert.NotEmpty(t, resp.Results, "keyword leg still serves results")
}

func TestSearchItemsMode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	doc := env.ingest(t, "invoice", "Parent document text. More text.")
	items := []*types.Item{
		{DocID: doc.ID, Text: "Copper pipe fitting 15mm"},
		{DocID: doc.ID, Text: "Brass valve assembly 22mm"},
	}
	require.NoError(t, env.store.CreateItems(ctx, items))
	_, err := env.indexer.IndexPendingItems(ctx, 10)
	require.NoError(t, err)

	resp, err := env.searcher.Search(ctx, Request{Query: "copper fitting", Mode: SearchModeItems})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, types.IdentityItem, resp.Results[0].Identity.Kind)
	assert.Contains(t, resp.Results[0].Text, "Copper")
}

func TestSearchWithDocFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.ingest(t, "invoice", "Copper fittings in document one. Extra sentence.")
	doc2 := env.ingest(t, "invoice", "Copper fittings in document two. Extra sentence.")

	resp, err := env.searcher.Search(ctx, Request{
		Query:   "copper fittings",
		Filters: Filters{DocID: doc2.ID},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, res := range resp.Results {
		assert.Equal(t, doc2.ID, res.DocID)
	}
}

func TestSearchReranker(t *testing.T) {
	env := newTestEnv(t, &reversingReranker{})
	ctx := context.Background()

	env.ingest(t, "invoice",
		"Copper fittings described in detail. The copper is polished.",
		"Payment terms for the copper order. Net thirty days.")

	plain, err := env.searcher.Search(ctx, Request{Query: "copper", TopK: 5})
	require.NoError(t, err)
	require.Greater(t, len(plain.Results), 1)
	assert.False(t, plain.Reranked)

	reranked, err := env.searcher.Search(ctx, Request{Query: "copper", TopK: 5, UseReranker: true})
	require.NoError(t, err)
	assert.True(t, reranked.Reranked)
	require.Len(t, reranked.Results, len(plain.Results))

	// The reversing reranker puts the fused tail first
	assert.Equal(t, plain.Results[len(plain.Results)-1].Identity, reranked.Results[0].Identity)
	assert.Greater(t, reranked.Results[0].RerankerScore, 0.0)
	assert.Equal(t, reranked.Results[0].RerankerScore, reranked.Results[0].FinalScore)
}

func TestSearchCache(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.ingest(t, "invoice", "Cached copper content. Another sentence here.")
	req := Request{Query: "copper", UseCache: true}

	first, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)
	assert.False(t, first.CacheHit)

	second, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	stats := env.searcher.CacheStats()
	assert.Equal(t, 1, stats.Entries)

	// Mutating a cached response copy must not poison the cache
	second.Results[0].Text = "mutated"
	third, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.NotEqual(t, "mutated", third.Results[0].Text)

	// Indexing a new document invalidates through the mutation hook
	env.ingest(t, "invoice", "Fresh copper content. Yet another sentence.")
	fourth, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)
	assert.Greater(t, len(fourth.Results), len(first.Results))
}

func TestSearchCacheKeyCoversRequestShape(t *testing.T) {
	base := Request{Query: "q", Mode: SearchModeHybrid, TopK: 10}

	variants := []Request{
		{Query: "q2", Mode: SearchModeHybrid, TopK: 10},
		{Query: "q", Mode: SearchModeKeyword, TopK: 10},
		{Query: "q", Mode: SearchModeHybrid, TopK: 20},
		{Query: "q", Mode: SearchModeHybrid, TopK: 10, Filters: Filters{DocID: 3}},
		{Query: "q", Mode: SearchModeHybrid, TopK: 10, Filters: Filters{PageType: "invoice"}},
		{Query: "q", Mode: SearchModeHybrid, TopK: 10, UseReranker: true},
	}

	baseHash := computeQueryHash(base)
	for i, v := range variants {
		assert.NotEqual(t, baseHash, computeQueryHash(v), "variant %d must key differently", i)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	env.searcher.cfg.CacheTTL = time.Millisecond
	ctx := context.Background()

	env.ingest(t, "invoice", "Expiring copper content. Second sentence.")
	req := Request{Query: "copper", UseCache: true}

	_, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	resp, err := env.searcher.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit, "expired entries must miss")
}

func TestBuildContext(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.ingest(t, "invoice",
		"The copper order includes fittings. It also includes valves.",
		"Delivery is scheduled for March. The carrier handles customs.")

	text, included := env.searcher.BuildContext(ctx, "copper fittings", 4000)
	assert.Greater(t, included, 0)
	assert.Contains(t, text, "[Document ")
	assert.Contains(t, text, "(invoice)]")
	assert.Contains(t, text, "copper")

	// A tight budget still includes at least one result
	text, included = env.searcher.BuildContext(ctx, "copper fittings", 10)
	assert.Equal(t, 1, included)
	assert.NotEmpty(t, text)

	// No matches yields empty context
	text, included = env.searcher.BuildContext(ctx, "zzzznothing", 4000)
	if included == 0 {
		assert.Empty(t, text)
	}
}
