// Package llm provides the language-model capability consumed by the
// planner, validator, executor fallback, and framework skills. Tests
// supply a deterministic stub; production wires a Gemini-backed or
// OpenAI-compatible HTTP client.
package llm

import "context"

// Client is the single LLM capability the engine depends on.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Func adapts a plain function to Client; handy for test stubs.
type Func func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

// Complete implements Client.
func (f Func) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f(ctx, prompt, maxTokens, temperature)
}
