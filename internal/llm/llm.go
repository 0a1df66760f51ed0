// Package llm abstracts the language model behind a single text-in /
// text-out capability so the extraction logic stays independent of the
// wired backend. The model is treated as an untrusted text generator:
// callers own all parsing and validation of the reply.
package llm

import (
	"context"
	"fmt"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "openai" or "gemini"
	BaseURL string // openai-compatible endpoint, e.g. a local llama server
	APIKey  string
	Model   string
}

// New returns the Generator for the configured backend.
func New(cfg Config) (Generator, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm backend: %s", cfg.Backend)
	}
}
