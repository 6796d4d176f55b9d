package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

const (
	// OpenAIModel is the embedding model used for all collections.
	OpenAIModel = "text-embedding-3-small"

	// DefaultDimension asks OpenAI to project down to 384 dims, matching
	// the collection configuration.
	DefaultDimension = 384
)

// OpenAIProvider embeds text via the OpenAI embeddings API. Rate-limit
// responses are retried with exponential backoff; other transport errors
// surface immediately as domain.ErrEmbeddingUnavailable.
type OpenAIProvider struct {
	client *openai.Client
	dim    int
}

// NewOpenAIProvider wraps an OpenAI client. dim <= 0 selects DefaultDimension.
func NewOpenAIProvider(client *openai.Client, dim int) *OpenAIProvider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &OpenAIProvider{client: client, dim: dim}
}

// Dimension returns the configured vector dimension.
func (p *OpenAIProvider) Dimension() int { return p.dim }

// Embed generates one embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32

	operation := func() error {
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
			Model:      OpenAIModel,
			Dimensions: openai.Int(int64(p.dim)),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("empty embedding response"))
		}
		vec = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("embed: openai: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) != p.dim {
		return nil, fmt.Errorf("embed: openai returned dim %d, want %d: %w",
			len(vec), p.dim, domain.ErrEmbeddingFailed)
	}
	return vec, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
