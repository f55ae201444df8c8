package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter produces deterministic local replies when no generation
// backend is reachable.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: buildMockReply(req)}, nil
}

func buildMockReply(req Request) string {
	opener := "Oh, I see."
	switch req.EmotionalState {
	case "escalating":
		opener = "Oh no, that sounds serious."
	case "probing":
		opener = "Wait, I want to make sure I understand."
	case "extracting":
		opener = "Okay, let me write this down."
	}

	subject := strings.TrimSpace(req.InputText)
	if subject == "" {
		return opener + " Could you say that again?"
	}
	return fmt.Sprintf("%s You mentioned %q, can you explain what I should do?", opener, truncate(subject, 60))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
