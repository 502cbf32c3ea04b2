package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/archonlabs/docsearch/internal/chunker"
	"github.com/archonlabs/docsearch/internal/config"
	"github.com/archonlabs/docsearch/internal/embedder"
	"github.com/archonlabs/docsearch/internal/indexer"
	"github.com/archonlabs/docsearch/internal/reranker"
	"github.com/archonlabs/docsearch/internal/searcher"
	"github.com/archonlabs/docsearch/internal/storage"
	"github.com/archonlabs/docsearch/internal/vectorindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	cfg      *config.Config
}

// NewServer builds the full pipeline from configuration and registers the
// tool surface
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectors := vectorindex.NewSQLiteIndex(store.DB())

	var rr reranker.Reranker = reranker.NewFallback()
	if cfg.Reranker.Enabled {
		rr = reranker.NewJina(os.Getenv(embedder.EnvJinaAPIKey), cfg.Reranker.Model)
	}

	srch := searcher.New(store, vectors, emb, rr, searcher.Config{
		TopK:            cfg.Search.TopK,
		CandidateFactor: cfg.Search.CandidateFactor,
		RRFK:            float64(cfg.Search.RRFK),
		VectorWeight:    cfg.Search.VectorWeight,
		KeywordWeight:   cfg.Search.KeywordWeight,
		CacheSize:       cfg.Search.CacheSize,
		CacheTTL:        cfg.CacheTTL(),
	})

	idx := indexer.New(store, vectors, emb, chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap), &indexer.Config{
		BatchSize: cfg.Embedding.BatchSize,
	})
	idx.OnMutation(srch.Invalidate)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		indexer:  idx,
		searcher: srch,
		cfg:      cfg,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDocumentTool(), s.handleIndexDocument)
	s.mcp.AddTool(indexPendingTool(), s.handleIndexPending)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getContextTool(), s.handleGetContext)
	s.mcp.AddTool(statusTool(), s.handleStatus)
}
