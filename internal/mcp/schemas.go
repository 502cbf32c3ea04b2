package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocumentTool returns the tool definition for index_document
func indexDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_document",
		Description: "Chunk, embed, and index one document's pages end to end",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "integer",
					"description": "ID of the document to index (must have pages loaded)",
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// indexPendingTool returns the tool definition for index_pending
func indexPendingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_pending",
		Description: "Process unindexed chunks or items past the durable cursor in batches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Which backlog to process",
					"enum":        []string{"chunks", "items"},
					"default":     "chunks",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum entries to process this run (0 = until caught up)",
					"default":     0,
					"minimum":     0,
				},
			},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Reset the chunk index cursor and re-embed every chunk from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document with its pages, chunks, and vectors",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "integer",
					"description": "ID of the document to delete",
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search indexed documents with hybrid vector + keyword retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language, keywords, or codes like 85.36.20.00)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector, keyword, or items (line items)",
					"enum":        []string{"hybrid", "vector", "keyword", "items"},
					"default":     "hybrid",
				},
				"doc_id": map[string]interface{}{
					"type":        "integer",
					"description": "Restrict results to one document",
				},
				"page_type": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one page classification (e.g. invoice, packing_list)",
				},
				"use_reranker": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-score the fused candidates with the cross-encoder reranker",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getContextTool returns the tool definition for get_context
func getContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_context",
		Description: "Build a bounded, source-attributed context block from the best matches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to retrieve context for",
				},
				"max_chars": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum context length in characters",
					"default":     4000,
					"minimum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// statusTool returns the tool definition for status
func statusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "status",
		Description: "Report index cursors, vector counts, and cache occupancy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
