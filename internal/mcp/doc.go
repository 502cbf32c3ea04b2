// Package mcp implements the Model Context Protocol (MCP) server for docsearch.
//
// The MCP server exposes the indexing and retrieval pipeline as tools for
// AI assistants:
//   - index_document: Chunk, embed, and index one document end to end
//   - index_pending: Process the chunk or item backlog past the durable cursor
//   - rebuild_index: Reset the cursor and re-embed everything
//   - delete_document: Remove a document with its chunks and vectors
//   - search: Hybrid vector + keyword retrieval with optional reranking
//   - get_context: Bounded, source-attributed context block for RAG prompts
//   - status: Index cursors, vector counts, cache occupancy
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server listens on stdin and writes responses to stdout, so any
// MCP-compatible client can drive it.
//
// # Basic Usage
//
//	docsearch serve
//
// # Error Codes
//
// Tool failures map pipeline sentinels onto JSON-RPC error codes: a missing
// document returns -32001, a concurrent build -32002, an empty query -32004.
// Parameter problems use the standard -32602 and everything else -32603.
package mcp
