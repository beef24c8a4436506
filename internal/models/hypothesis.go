package models

import "time"

// ContextItem is one retrieved chunk used as context for a hypothesis.
type ContextItem struct {
	ChunkID       string            `json:"chunk_id"`
	Text          string            `json:"text"`
	Score         float64           `json:"score"`
	SemanticScore float64           `json:"semantic_score"`
	KeywordScore  float64           `json:"keyword_score"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Hypothesis is the result of answering one question.
type Hypothesis struct {
	RequestID    string        `json:"request_id"`
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	Context      []ContextItem `json:"context"`
	NetworkFacts []string      `json:"network_facts,omitempty"`
	Duration     time.Duration `json:"duration"`
}
