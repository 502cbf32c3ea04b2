package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/archonlabs/docsearch/internal/indexer"
	"github.com/archonlabs/docsearch/internal/searcher"
	"github.com/archonlabs/docsearch/internal/storage"
	"github.com/archonlabs/docsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound = -32001 // Referenced document does not exist
	ErrorCodeBuildInProgress  = -32002 // Another build is already running
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

// handleIndexDocument handles the index_document tool invocation
func (s *Server) handleIndexDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, err := requireDocID(args)
	if err != nil {
		return nil, err
	}

	stats, err := s.indexer.IndexDocument(ctx, docID)
	if err != nil {
		return nil, indexingError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexed":     true,
		"doc_id":      stats.DocID,
		"pages":       stats.Pages,
		"chunks":      stats.Chunks,
		"vectors":     stats.Vectors,
		"duration_ms": stats.Duration.Milliseconds(),
	})), nil
}

// handleIndexPending handles the index_pending tool invocation
func (s *Server) handleIndexPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	indexName := getStringDefault(args, "index", storage.IndexChunks)
	limit := getIntDefault(args, "limit", 0)
	var err error
	if limit < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must not be negative", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	var stats *indexer.BatchStats
	switch indexName {
	case storage.IndexChunks:
		stats, err = s.indexer.IndexPending(ctx, limit)
	case storage.IndexItems:
		stats, err = s.indexer.IndexPendingItems(ctx, limit)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid index", map[string]interface{}{
			"param":   "index",
			"value":   indexName,
			"allowed": []string{storage.IndexChunks, storage.IndexItems},
		})
	}
	if err != nil {
		return nil, indexingError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"index":       stats.IndexName,
		"processed":   stats.Processed,
		"last_id":     stats.LastID,
		"remaining":   stats.Remaining,
		"duration_ms": stats.Duration.Milliseconds(),
	})), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.RebuildIndex(ctx)
	if err != nil {
		return nil, indexingError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"rebuilt":     true,
		"index":       stats.IndexName,
		"processed":   stats.Processed,
		"duration_ms": stats.Duration.Milliseconds(),
	})), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, err := requireDocID(args)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.DeleteDocument(ctx, docID); err != nil {
		return nil, indexingError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted": true,
		"doc_id":  docID,
	})), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.cfg.Search.TopK)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword, searcher.SearchModeItems:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   string(mode),
			"allowed": []string{"hybrid", "vector", "keyword", "items"},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query: query,
		TopK:  topK,
		Mode:  mode,
		Filters: searcher.Filters{
			DocID:    int64(getIntDefault(args, "doc_id", 0)),
			PageType: getStringDefault(args, "page_type", ""),
		},
		UseReranker: getBoolDefault(args, "use_reranker", false),
		UseCache:    true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":   r.FinalRank,
			"doc_id": r.DocID,
			"text":   r.Text,
			"score":  r.FinalScore,
		}
		switch r.Identity.Kind {
		case types.IdentityChunk:
			entry["chunk_id"] = r.Identity.ID
			entry["page_no"] = r.PageNo
			entry["page_type"] = r.PageType
		case types.IdentityItem:
			entry["item_id"] = r.Identity.ID
		}
		if resp.Reranked {
			entry["reranker_score"] = r.RerankerScore
		}
		results[i] = entry
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":       query,
		"mode":        string(resp.Mode),
		"total":       resp.TotalResults,
		"cache_hit":   resp.CacheHit,
		"reranked":    resp.Reranked,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	})), nil
}

// handleGetContext handles the get_context tool invocation
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxChars := getIntDefault(args, "max_chars", 4000)
	text, included := s.searcher.BuildContext(ctx, query, maxChars)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":    query,
		"included": included,
		"context":  text,
	})), nil
}

// handleStatus handles the status tool invocation
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.indexer.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cache := s.searcher.CacheStats()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"chunks": stateJSON(status.Chunks, status.ChunkVectors.Vectors),
		"items":  stateJSON(status.Items, status.ItemVectors.Vectors),
		"cache": map[string]interface{}{
			"entries":  cache.Entries,
			"capacity": cache.Capacity,
		},
	})), nil
}

// stateJSON flattens one index's cursor state for the status response
func stateJSON(state *storage.IndexingState, vectors int64) map[string]interface{} {
	out := map[string]interface{}{
		"last_doc_id":   state.LastDocID,
		"last_chunk_id": state.LastChunkID,
		"last_item_id":  state.LastItemID,
		"total_indexed": state.TotalIndexed,
		"pending":       state.PendingCount,
		"is_building":   state.IsBuilding,
		"vectors":       vectors,
	}
	if state.LastRunAt != nil {
		out["last_run_at"] = state.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if state.LastError != nil {
		out["last_error"] = *state.LastError
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// indexingError maps pipeline sentinels onto MCP error codes
func indexingError(err error) error {
	switch {
	case errors.Is(err, types.ErrDocumentNotFound):
		return newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrBuildInProgress):
		return newMCPError(ErrorCodeBuildInProgress, "index is already being built", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireDocID extracts and validates the doc_id parameter
func requireDocID(args map[string]interface{}) (int64, error) {
	id := getIntDefault(args, "doc_id", 0)
	if id <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or not a positive integer",
		})
	}
	return int64(id), nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
