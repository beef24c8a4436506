package llm

import (
	"context"
	"fmt"
	"strings"
)

// EchoClient is an offline ChatClient. It answers with the question and the number
// of context lines it was given, so pipelines can be exercised without a provider.
type EchoClient struct{}

// Complete returns a deterministic summary of the last user message.
func (EchoClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			user = messages[i].Content
			break
		}
	}
	question, body, _ := strings.Cut(user, "\n\nContext:\n")
	question = strings.TrimPrefix(question, "Question: ")
	lines := 0
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	return fmt.Sprintf("Hypothesis for %q based on %d context lines.", question, lines), nil
}
