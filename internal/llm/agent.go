package llm

import (
	"context"

	"go.uber.org/zap"
)

// Agent turns a question and retrieved context into a hypothesis with one model call.
type Agent struct {
	client       ChatClient
	instructions string
	logger       *zap.Logger
}

// NewAgent returns an agent using instructions as its system prompt.
func NewAgent(client ChatClient, instructions string, opts ...Option) *Agent {
	o := applyOptions(opts)
	return &Agent{client: client, instructions: instructions, logger: o.logger}
}

// UserPrompt formats the user turn sent to the model.
func UserPrompt(question, contextText string) string {
	return "Question: " + question + "\n\nContext:\n" + contextText
}

// GenerateHypothesis asks the model once. Retrying is left to the caller.
func (a *Agent) GenerateHypothesis(ctx context.Context, question, contextText string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: a.instructions},
		{Role: RoleUser, Content: UserPrompt(question, contextText)},
	}
	a.logger.Debug("agent generating hypothesis",
		zap.Int("question_len", len(question)),
		zap.Int("context_len", len(contextText)))
	return a.client.Complete(ctx, messages)
}
