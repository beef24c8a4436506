package indexer

import (
	"bytes"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// resources are the linguistic tables shared by every splitter and query. They are
// built once by WarmUp and only read afterwards.
var resources struct {
	once      sync.Once
	tokenizer analysis.Tokenizer
	stopWords analysis.TokenMap
}

// WarmUp builds the shared tokenizer and English stop-word set. It is safe to call
// from many goroutines; only the first call does any work. Call it before starting
// worker pools so no worker pays the setup cost.
func WarmUp() {
	resources.once.Do(func() {
		resources.tokenizer = bleveunicode.NewUnicodeTokenizer()
		tm := analysis.NewTokenMap()
		_ = tm.LoadBytes(en.EnglishStopWords)
		resources.stopWords = tm
	})
}

// tokens returns the word tokens of text with their byte offsets.
func tokens(text string) analysis.TokenStream {
	WarmUp()
	return resources.tokenizer.Tokenize([]byte(text))
}

// TokenCount returns the number of word tokens in text. Punctuation and whitespace
// are not tokens.
func TokenCount(text string) int {
	return len(tokens(text))
}

// Words returns the lower-cased word tokens of text in order.
func Words(text string) []string {
	stream := tokens(text)
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(bytes.ToLower(tok.Term)))
	}
	return out
}

// IsStopWord reports whether word is an English stop word, ignoring case.
func IsStopWord(word string) bool {
	WarmUp()
	_, ok := resources.stopWords[strings.ToLower(word)]
	return ok
}
