// Package llm routes text generation across an ordered chain of providers,
// falling through on failure and scoring confidence for the final answer.
package llm

import "context"

// Provider is a single text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, prompt string) (string, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Fn(ctx, prompt)
}
