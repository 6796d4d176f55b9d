// Package embed provides embedding providers for query and ingest text:
// an OpenAI-backed client, a generic HTTP client for local models, and an
// LRU-cached wrapper keyed by source-text hash.
package embed

import "context"

// Provider turns text into a fixed-dimension vector. Implementations wrap
// transport failures in domain.ErrEmbeddingUnavailable.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
