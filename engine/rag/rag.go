// Package rag orchestrates the retrieval-augmented answer pipeline: it
// validates and embeds the user query, fans retrieval out through the
// fusion engine, assembles a bounded prompt, and routes generation through
// the LLM provider chain.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/fusion"
	"github.com/newdataengg/dev-career-compass/engine/llm"
)

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever produces the context bundle for a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, queryVector []float32, filter map[string]string) *fusion.ContextBundle
}

// Generator routes prompt generation across providers.
type Generator interface {
	Generate(ctx context.Context, prompt string, hasContext bool) (llm.Result, error)
}

// Options configures the orchestrator.
type Options struct {
	// Style selects the prompt-assembly strategy.
	Style PromptStyle
	// PromptBudget bounds the assembled context in tokens.
	PromptBudget int
	// TokenCounter overrides the default chars/4 heuristic; see
	// NewTiktokenCounter for an exact counter.
	TokenCounter TokenCounter
	// Filter restricts vector searches by payload, e.g. a tenant key.
	Filter map[string]string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Style:        StyleChat,
		PromptBudget: 1024,
	}
}

// Response is the final answer for one query. It is immutable and owned
// by the caller; the referenced bundle is never shared across calls.
type Response struct {
	Text       string                `json:"text"`
	Confidence float64               `json:"confidence"`
	Provider   string                `json:"provider"`
	Context    *fusion.ContextBundle `json:"context"`
}

// Orchestrator is the single entry point for answering queries. All
// dependencies are injected; the orchestrator holds no global state.
type Orchestrator struct {
	embed    Embedder
	retrieve Retriever
	generate Generator
	opts     Options
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(embed Embedder, retrieve Retriever, generate Generator, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PromptBudget <= 0 {
		opts.PromptBudget = DefaultOptions().PromptBudget
	}
	if opts.TokenCounter == nil {
		opts.TokenCounter = HeuristicTokens
	}
	return &Orchestrator{
		embed:    embed,
		retrieve: retrieve,
		generate: generate,
		opts:     opts,
		logger:   logger,
	}
}

// Answer runs the full pipeline for a user query using the configured
// prompt style. It fails only on an invalid query or an embedding failure;
// every downstream failure is absorbed by the fusion engine's and router's
// own contracts, so the caller otherwise always receives a Response.
func (o *Orchestrator) Answer(ctx context.Context, query string) (*Response, error) {
	return o.AnswerStyled(ctx, query, o.opts.Style)
}

// AnswerStyled is Answer with a per-call prompt style. An unknown style
// falls back to the chat persona.
func (o *Orchestrator) AnswerStyled(ctx context.Context, query string, style PromptStyle) (*Response, error) {
	if err := domain.ValidateQueryText(query); err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	queryVector, err := o.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: %w: %v", domain.ErrEmbeddingFailed, err)
	}

	bundle := o.retrieve.Retrieve(ctx, queryVector, o.opts.Filter)
	o.logger.Info("rag retrieval done",
		"vector_hits", len(bundle.VectorHits),
		"graph_hits", len(bundle.GraphHits),
	)

	prompt := AssemblePrompt(style, query, bundle, o.opts.PromptBudget, o.opts.TokenCounter)

	result, err := o.generate.Generate(ctx, prompt, !bundle.Empty())
	if err != nil {
		// Only caller cancellation reaches here; partial results are
		// discarded, never returned.
		return nil, err
	}

	return &Response{
		Text:       result.Text,
		Confidence: result.Confidence,
		Provider:   result.Provider,
		Context:    bundle,
	}, nil
}
