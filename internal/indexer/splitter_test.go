package indexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/hypogen/internal/fileid"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentence(i, words int) string {
	parts := make([]string, words)
	for j := range parts {
		parts[j] = fmt.Sprintf("w%dx%d", i, j)
	}
	return strings.Join(parts, " ") + "."
}

func TestNewSentenceSplitter_validates(t *testing.T) {
	tests := []struct {
		size, overlap int
		ok            bool
	}{
		{512, 50, true},
		{10, 0, true},
		{0, 0, false},
		{10, 10, false},
		{10, -1, false},
	}
	for _, tt := range tests {
		_, err := NewSentenceSplitter(tt.size, tt.overlap)
		if tt.ok {
			assert.NoError(t, err, "size=%d overlap=%d", tt.size, tt.overlap)
		} else {
			assert.Error(t, err, "size=%d overlap=%d", tt.size, tt.overlap)
		}
	}
}

func TestSplitText_empty(t *testing.T) {
	s, err := NewSentenceSplitter(10, 2)
	require.NoError(t, err)
	assert.Empty(t, s.SplitText(""))
	assert.Empty(t, s.SplitText("  \n\n\t "))
}

func TestSplitText_shortTextIsOneChunk(t *testing.T) {
	s, err := NewSentenceSplitter(50, 5)
	require.NoError(t, err)
	got := s.SplitText("TP53 regulates apoptosis.  It is a tumor suppressor.")
	assert.Equal(t, []string{"TP53 regulates apoptosis. It is a tumor suppressor."}, got)
}

func TestSplitText_budgetAndNoEmptyChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(sentence(i, 1+i%7))
		b.WriteString(" ")
	}
	s, err := NewSentenceSplitter(20, 5)
	require.NoError(t, err)
	chunks := s.SplitText(b.String())
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
		assert.LessOrEqual(t, TokenCount(c), 20, c)
	}
}

func TestSplitText_overlapCarriesWholeSentences(t *testing.T) {
	// four sentences of 4 tokens; budget 10 fits two, overlap 4 carries one
	text := strings.Join([]string{sentence(0, 4), sentence(1, 4), sentence(2, 4), sentence(3, 4)}, " ")
	s, err := NewSentenceSplitter(10, 4)
	require.NoError(t, err)
	chunks := s.SplitText(text)
	require.Equal(t, []string{
		sentence(0, 4) + " " + sentence(1, 4),
		sentence(1, 4) + " " + sentence(2, 4),
		sentence(2, 4) + " " + sentence(3, 4),
	}, chunks)
}

func TestSplitText_noOverlap(t *testing.T) {
	text := strings.Join([]string{sentence(0, 4), sentence(1, 4), sentence(2, 4)}, " ")
	s, err := NewSentenceSplitter(8, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{sentence(0, 4) + " " + sentence(1, 4), sentence(2, 4)}, s.SplitText(text))
}

func TestSplitText_longSentenceUsesTokenWindows(t *testing.T) {
	long := sentence(0, 25)
	s, err := NewSentenceSplitter(10, 2)
	require.NoError(t, err)
	chunks := s.SplitText(long)
	require.Len(t, chunks, 3) // windows start at tokens 0, 8, 16
	for _, c := range chunks {
		assert.LessOrEqual(t, TokenCount(c), 10)
	}
	assert.True(t, strings.HasPrefix(chunks[0], "w0x0 "))
	assert.True(t, strings.HasPrefix(chunks[1], "w0x8 "))
	assert.True(t, strings.HasPrefix(chunks[2], "w0x16 "))
	assert.True(t, strings.HasSuffix(chunks[2], "w0x24"))
}

func TestSplitText_linesAreSentences(t *testing.T) {
	text := "UniProtKB\tP04637\tTP53\tGO:0006915\nUniProtKB\tP38398\tBRCA1\tGO:0006281\n"
	s, err := NewSentenceSplitter(5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UniProtKB P04637 TP53 GO:0006915",
		"UniProtKB P38398 BRCA1 GO:0006281",
	}, s.SplitText(text))
}

func TestSplitText_idempotent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString(sentence(i, 3+i%5))
		if i%6 == 5 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString(sentence(99, 40))

	s, err := NewSentenceSplitter(16, 4)
	require.NoError(t, err)
	first := s.SplitText(b.String())
	require.NotEmpty(t, first)
	for _, c := range first {
		assert.Equal(t, []string{c}, s.SplitText(c))
	}
	assert.Equal(t, first, s.SplitText(b.String()))
}

func TestSplitDocuments_metadataAndIDs(t *testing.T) {
	s, err := NewSentenceSplitter(8, 0)
	require.NoError(t, err)
	doc := models.Document{
		ID:       "doc-1",
		Text:     sentence(0, 5) + " " + sentence(1, 5),
		Metadata: map[string]string{models.MetaSource: models.SourceGO},
	}
	chunks := s.SplitDocuments([]models.Document{doc})
	require.Len(t, chunks, 2)
	for i, c := range chunks {
		assert.Equal(t, fileid.ChunkID("doc-1", i), c.ID)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, models.SourceGO, c.Metadata[models.MetaSource])
	}
	chunks[0].Metadata["x"] = "y"
	assert.NotContains(t, doc.Metadata, "x")
}

func TestSplitChunks_keepsFittingChunks(t *testing.T) {
	s, err := NewSentenceSplitter(8, 0)
	require.NoError(t, err)
	in := []models.Chunk{
		{ID: "a", DocumentID: "d", Text: sentence(0, 3)},
		{ID: "b", DocumentID: "d", Text: sentence(1, 5) + " " + sentence(2, 5), Index: 1},
	}
	out := s.SplitChunks(in)
	require.Len(t, out, 3)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, fileid.ChunkID("b", 0), out[1].ID)
	assert.Equal(t, fileid.ChunkID("b", 1), out[2].ID)
	assert.Equal(t, "d", out[2].DocumentID)
	assert.Equal(t, 1, out[2].Index)
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"collapse", "  a \t b  ", "a b"},
		{"keeps newlines", "a\nb", "a\nb"},
		{"crlf", "a\r\nb", "a\nb"},
		{"blank lines collapse", "a\n\n\n\n b", "a\n\nb"},
		{"leading blank", "\n\na", "a"},
		{"empty", " \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preprocess(tt.in))
		})
	}
}

func TestWarmUp_stopWords(t *testing.T) {
	WarmUp()
	WarmUp()
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("Which"))
	assert.False(t, IsStopWord("TP53"))
	assert.Equal(t, 3, TokenCount("Does TP53, matter?"))
	assert.Equal(t, []string{"does", "tp53", "matter"}, Words("Does TP53, matter?"))
}
