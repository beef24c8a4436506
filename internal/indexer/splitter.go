package indexer

import (
	"fmt"

	"github.com/hyperjump/hypogen/internal/fileid"
	"github.com/hyperjump/hypogen/internal/models"
)

// Default splitter budget, in tokens.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// SentenceSplitter packs whole sentences into chunks of at most ChunkSize tokens.
// A sentence ends at '.', '!' or '?' followed by whitespace, or at a line break.
// Consecutive chunks share trailing sentences worth up to ChunkOverlap tokens. A
// sentence that alone exceeds the budget is cut into token windows instead.
type SentenceSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSentenceSplitter returns a splitter after checking its budget.
func NewSentenceSplitter(chunkSize, chunkOverlap int) (*SentenceSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &SentenceSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// span is a trimmed sentence text[start:end] and its token count.
type span struct {
	start, end int
	tokens     int
}

// SplitText splits text into chunks. It is deterministic, never returns an empty
// chunk, and a chunk that already fits the budget splits into itself.
func (s *SentenceSplitter) SplitText(text string) []string {
	text = Preprocess(text)
	if text == "" {
		return nil
	}
	var (
		chunks    []string
		cur       []span
		curTokens int
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, text[cur[0].start:cur[len(cur)-1].end])
		}
	}
	for _, sent := range sentences(text) {
		if sent.tokens > s.ChunkSize {
			flush()
			cur, curTokens = nil, 0
			chunks = append(chunks, s.windows(text[sent.start:sent.end])...)
			continue
		}
		if curTokens+sent.tokens > s.ChunkSize && len(cur) > 0 {
			flush()
			cur, curTokens = s.carry(cur, sent.tokens)
		}
		cur = append(cur, sent)
		curTokens += sent.tokens
	}
	flush()
	return chunks
}

// carry returns the trailing sentences of prev that fit in the overlap and still
// leave room for a following sentence of next tokens.
func (s *SentenceSplitter) carry(prev []span, next int) ([]span, int) {
	total := 0
	i := len(prev)
	for i > 0 {
		t := prev[i-1].tokens
		if total+t > s.ChunkOverlap || total+t+next > s.ChunkSize {
			break
		}
		total += t
		i--
	}
	out := make([]span, len(prev)-i)
	copy(out, prev[i:])
	return out, total
}

// windows cuts an overlong sentence into ChunkSize-token pieces overlapping by
// ChunkOverlap tokens. Pieces start and end on token boundaries.
func (s *SentenceSplitter) windows(sentence string) []string {
	toks := tokens(sentence)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for i := 0; i < len(toks); i += step {
		j := i + s.ChunkSize
		if j > len(toks) {
			j = len(toks)
		}
		out = append(out, sentence[toks[i].Start:toks[j-1].End])
		if j == len(toks) {
			break
		}
	}
	return out
}

// sentences returns the trimmed, non-empty sentences of preprocessed text.
func sentences(text string) []span {
	var out []span
	start := 0
	cut := func(end int) {
		s, e := start, end
		for s < e && isSpace(text[s]) {
			s++
		}
		for e > s && isSpace(text[e-1]) {
			e--
		}
		if s < e {
			out = append(out, span{start: s, end: e, tokens: TokenCount(text[s:e])})
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			cut(i)
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				cut(i + 1)
			}
		}
	}
	cut(len(text))
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// SplitDocuments splits each document and returns its chunks in order. Chunk IDs are
// derived from the document ID and chunk position, so a rebuild yields the same IDs.
func (s *SentenceSplitter) SplitDocuments(docs []models.Document) []models.Chunk {
	var out []models.Chunk
	for _, doc := range docs {
		for i, text := range s.SplitText(doc.Text) {
			out = append(out, models.Chunk{
				ID:         fileid.ChunkID(doc.ID, i),
				DocumentID: doc.ID,
				Text:       text,
				Index:      i,
				Metadata:   models.CloneMetadata(doc.Metadata),
			})
		}
	}
	return out
}

// SplitChunks re-splits chunks through this splitter. A chunk within budget comes back
// unchanged; an oversized one is replaced by pieces whose IDs derive from its own.
func (s *SentenceSplitter) SplitChunks(chunks []models.Chunk) []models.Chunk {
	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		pieces := s.SplitText(c.Text)
		if len(pieces) == 1 {
			c.Text = pieces[0]
			out = append(out, c)
			continue
		}
		for j, text := range pieces {
			out = append(out, models.Chunk{
				ID:         fileid.ChunkID(c.ID, j),
				DocumentID: c.DocumentID,
				Text:       text,
				Index:      c.Index,
				Metadata:   models.CloneMetadata(c.Metadata),
			})
		}
	}
	return out
}
