// Package embedder generates vector embeddings for document text using
// pluggable providers.
//
// The embedder supports hosted providers (Jina AI, OpenAI) and a
// deterministic local fallback, with batching, caching, and retry handling
// for production use.
//
// # Positional Batching
//
// EmbedBatch preserves input order: vector i corresponds to texts[i]. Blank
// texts never reach the provider; they produce zero vectors of the
// provider's dimension in place, so an empty chunk cannot shift every later
// chunk's embedding by one slot.
//
//	vectors, err := emb.EmbedBatch(ctx, []string{
//	    chunk1.EmbeddingText(),
//	    chunk2.EmbeddingText(),
//	})
//
// Batching reduces API calls and improves throughput significantly
// (e.g., 20x faster than sequential single requests).
//
// # Provider Selection
//
// The factory selects a provider based on environment variables:
//
//  1. If DOCSEARCH_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → fallback to local provider (offline mode)
//
// Provider dimensions: Jina 1024, OpenAI 1536, local 384.
//
// # Caching
//
// Embeddings are cached in-memory by SHA-256 content hash with LRU
// eviction, so re-indexing an unchanged document costs no repeat API calls.
//
// # Error Handling
//
// Hosted providers retry transient failures with exponential backoff:
//
//	vectors, err := emb.EmbedBatch(ctx, texts)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // API unavailable after retries
//	}
//
// The local provider derives vectors from content hashes. Quality is poor
// but behavior is deterministic, which keeps the full indexing and search
// pipeline usable in tests and air-gapped environments.
package embedder
