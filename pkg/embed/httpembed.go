package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// HTTPProvider embeds text via an Ollama-compatible HTTP endpoint, for
// local development without an OpenAI key. Requests are rate limited to
// keep a small local model responsive.
type HTTPProvider struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProvider creates a client for baseURL (e.g. http://localhost:11434).
func NewHTTPProvider(baseURL, model string, dim int) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// Dimension returns the configured vector dimension.
func (p *HTTPProvider) Dimension() int { return p.dim }

type httpEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type httpEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates one embedding for the given text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(httpEmbedReq{Model: p.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: %w: status %d", domain.ErrEmbeddingUnavailable, resp.StatusCode)
	}

	var result httpEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed: decode: %w", err)
	}
	if p.dim > 0 && len(result.Embedding) != p.dim {
		return nil, fmt.Errorf("embed: got dim %d, want %d: %w",
			len(result.Embedding), p.dim, domain.ErrEmbeddingFailed)
	}
	return toFloat32(result.Embedding), nil
}
