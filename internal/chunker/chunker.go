package chunker

import (
	"strconv"
	"unicode"

	"github.com/archonlabs/docsearch/pkg/types"
)

const (
	// DefaultChunkSize is the target maximum chunk length in characters
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of trailing characters carried into the
	// next chunk so neighboring chunks share context
	DefaultOverlap = 200
)

// Piece is one chunk of page text with its character span. Offsets are
// rune-based, so a span never splits a multibyte character.
type Piece struct {
	Text      string
	StartChar int
	EndChar   int
}

// Chunker splits page text into overlapping sentence-packed chunks
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. Non-positive sizes fall back to defaults.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// span marks one sentence in rune offsets
type span struct {
	start int
	end   int
}

// sentenceSpans locates sentence boundaries: terminal punctuation (.!?)
// followed by whitespace or end of text. This is a best-effort heuristic,
// not grammar-aware; abbreviations split early and that is acceptable.
func sentenceSpans(runes []rune) []span {
	var spans []span
	start := -1

	for i, r := range runes {
		if start == -1 {
			if unicode.IsSpace(r) {
				continue
			}
			start = i
		}
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				spans = append(spans, span{start: start, end: i + 1})
				start = -1
			}
		}
	}

	// Trailing text without terminal punctuation is still a sentence
	if start != -1 {
		spans = append(spans, span{start: start, end: len(runes)})
	}
	return spans
}

// SplitPage splits text into ordered, non-empty pieces. Sentences are
// greedily packed up to the chunk size; when the next sentence would
// overflow, the chunk is closed and the next one is seeded with the
// trailing overlap characters of the previous chunk. A single sentence
// longer than the chunk size stays whole. Blank text yields no pieces.
func (c *Chunker) SplitPage(text string) []Piece {
	runes := []rune(text)
	sentences := sentenceSpans(runes)
	if len(sentences) == 0 {
		return nil
	}

	var pieces []Piece
	start := sentences[0].start
	end := sentences[0].end

	for _, s := range sentences[1:] {
		if s.end-start > c.chunkSize {
			pieces = append(pieces, makePiece(runes, start, end))

			// Seed the next chunk with trailing overlap characters
			next := end - c.overlap
			if next < start {
				next = start
			}
			start = next
		}
		end = s.end
	}
	pieces = append(pieces, makePiece(runes, start, end))

	return pieces
}

// makePiece builds a Piece, trimming surrounding whitespace while keeping
// the span aligned with the trimmed text
func makePiece(runes []rune, start, end int) Piece {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return Piece{
		Text:      string(runes[start:end]),
		StartChar: start,
		EndChar:   end,
	}
}

// ChunkPage converts a page into persist-ready chunks. Chunk indexes are
// 0-based within the page, and every chunk carries the page number and
// classification in its metadata so search results can display them without
// a join back to pages.
func (c *Chunker) ChunkPage(page *types.Page) []*types.Chunk {
	pieces := c.SplitPage(page.Text)
	if len(pieces) == 0 {
		return nil
	}

	classification := page.Classification
	if classification == "" {
		classification = "unclassified"
	}

	chunks := make([]*types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &types.Chunk{
			DocID:      page.DocID,
			PageID:     page.ID,
			ChunkIndex: i,
			Text:       piece.Text,
			StartChar:  piece.StartChar,
			EndChar:    piece.EndChar,
			Metadata: map[string]string{
				types.MetaPageNo:   strconv.Itoa(page.PageNo),
				types.MetaPageType: classification,
			},
		})
	}
	return chunks
}
