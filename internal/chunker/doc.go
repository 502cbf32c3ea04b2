// Package chunker divides page text into overlapping chunks for embedding
// and search.
//
// Text is split at sentence boundaries (terminal punctuation followed by
// whitespace, a heuristic rather than a grammar), then sentences are packed
// greedily into chunks up to a character budget. When a chunk closes, the
// next one is seeded with the trailing overlap characters of the previous
// chunk so neighboring chunks share context at their seam.
//
// # Basic Usage
//
//	c := chunker.New(1000, 200)
//	chunks := c.ChunkPage(page)
//	for _, chunk := range chunks {
//	    // chunk.Metadata carries page_no and page_type
//	}
//
// Guarantees: no chunk is empty, chunk order follows page order, and every
// chunk is at most chunk size plus overlap characters (approximately —
// overlap is prepended, not deducted from the budget).
package chunker
