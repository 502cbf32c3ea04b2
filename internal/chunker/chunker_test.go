package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archonlabs/docsearch/pkg/types"
)

func TestSplitPage_Empty(t *testing.T) {
	c := New(100, 20)

	assert.Nil(t, c.SplitPage(""))
	assert.Nil(t, c.SplitPage("   \n\t  "))
}

func TestSplitPage_SingleSentence(t *testing.T) {
	c := New(100, 20)

	pieces := c.SplitPage("Just one sentence.")
	require.Len(t, pieces, 1)
	assert.Equal(t, "Just one sentence.", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 18, pieces[0].EndChar)
}

func TestSplitPage_NoTerminalPunctuation(t *testing.T) {
	c := New(100, 20)

	pieces := c.SplitPage("a bare line of text without punctuation")
	require.Len(t, pieces, 1)
	assert.Equal(t, "a bare line of text without punctuation", pieces[0].Text)
}

func TestSplitPage_PacksSentences(t *testing.T) {
	c := New(60, 10)

	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."
	pieces := c.SplitPage(text)
	require.Greater(t, len(pieces), 1)

	for i, p := range pieces {
		assert.NotEmpty(t, strings.TrimSpace(p.Text), "piece %d is empty", i)
		assert.LessOrEqual(t, len([]rune(p.Text)), 60+10, "piece %d exceeds size+overlap", i)
	}

	// Order preserved: spans move forward
	for i := 1; i < len(pieces); i++ {
		assert.Greater(t, pieces[i].EndChar, pieces[i-1].EndChar)
	}
}

func TestSplitPage_OverlapSeedsNextChunk(t *testing.T) {
	c := New(50, 15)

	text := "The quick brown fox jumps over the dog. A second sentence follows right here. And then a third one arrives."
	pieces := c.SplitPage(text)
	require.Greater(t, len(pieces), 1)

	// Each later chunk starts before the previous one ended (shared context)
	for i := 1; i < len(pieces); i++ {
		assert.Less(t, pieces[i].StartChar, pieces[i-1].EndChar,
			"chunk %d does not overlap its predecessor", i)
	}
}

func TestSplitPage_ZeroOverlap(t *testing.T) {
	c := New(25, 0)

	pieces := c.SplitPage("Sentence one is here. Sentence two is here.")
	require.Len(t, pieces, 2)
	assert.Equal(t, "Sentence one is here.", pieces[0].Text)
	assert.Equal(t, "Sentence two is here.", pieces[1].Text)
}

func TestSplitPage_LongSentenceStaysWhole(t *testing.T) {
	c := New(10, 2)

	long := "this single sentence is far longer than the chunk budget allows."
	pieces := c.SplitPage(long)
	require.Len(t, pieces, 1)
	assert.Equal(t, long, pieces[0].Text)
}

func TestSplitPage_MultibyteSafe(t *testing.T) {
	c := New(20, 5)

	text := "héllo wörld première. sécond sentence aprés. tröisième sentence ici."
	pieces := c.SplitPage(text)
	require.NotEmpty(t, pieces)

	runes := []rune(text)
	for _, p := range pieces {
		// Span must slice cleanly out of the original text
		assert.Equal(t, p.Text, string(runes[p.StartChar:p.EndChar]))
	}
}

func TestChunkPage(t *testing.T) {
	c := New(40, 8)

	page := &types.Page{
		ID:             10,
		DocID:          3,
		PageNo:         2,
		Classification: "invoice",
		Text:           "Line item one listed here. Line item two listed here. Line item three listed here.",
	}

	chunks := c.ChunkPage(page)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, int64(3), chunk.DocID)
		assert.Equal(t, int64(10), chunk.PageID)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Text)
		assert.Equal(t, "2", chunk.Metadata[types.MetaPageNo])
		assert.Equal(t, "invoice", chunk.Metadata[types.MetaPageType])
		assert.NoError(t, chunk.Validate())
	}
}

func TestChunkPage_BlankPage(t *testing.T) {
	c := New(100, 20)

	page := &types.Page{ID: 1, DocID: 1, PageNo: 1, Text: "  \n "}
	assert.Nil(t, c.ChunkPage(page))
}
