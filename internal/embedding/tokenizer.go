package embedding

import (
	"bytes"
	"hash/fnv"

	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	clsTokenID = 101
	sepTokenID = 102
	// word IDs are hashed into [firstWordID, firstWordID+vocabSize)
	firstWordID = 1000
	vocabSize   = 29000
)

// SimpleTokenizer splits on Unicode word boundaries and hashes lower-cased words
// into a fixed vocabulary. It has no learned vocabulary; models fed by it only see
// stable per-word IDs.
type SimpleTokenizer struct{}

// Tokenize produces padded token IDs up to maxTokens, framed by [CLS] and [SEP].
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = WordID(word)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords returns the Unicode word tokens of text, lower-cased.
func SplitWords(text string) []string {
	stream := bleveunicode.NewUnicodeTokenizer().Tokenize([]byte(text))
	if len(stream) == 0 {
		return nil
	}
	words := make([]string, len(stream))
	for i, tok := range stream {
		words[i] = string(bytes.ToLower(tok.Term))
	}
	return words
}

// WordID maps a word to its hashed vocabulary ID.
func WordID(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(firstWordID + h.Sum32()%vocabSize)
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() >> 1)
}
