// Package brain bridges the engagement pipeline to the reply
// generation backend. Adapters normalize over HTTP and local mock
// backends and can be chained so a primary failure falls through to a
// secondary.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request carries everything the generation backend needs to produce
// an in-character reply.
type Request struct {
	SessionID      string   `json:"session_id"`
	PersonaID      string   `json:"persona_id"`
	EmotionalState string   `json:"emotional_state"`
	InputText      string   `json:"input_text"`
	History        []string `json:"history,omitempty"`
}

// Response is the generated reply.
type Response struct {
	Text string `json:"text"`
}

// Adapter produces persona replies.
type Adapter interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	HTTPURL string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackAdapter(NewHTTPAdapter(cfg.HTTPURL), NewMockAdapter()), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}
