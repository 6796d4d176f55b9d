package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Provider with an LRU cache keyed by the SHA-256 of the
// source text. Embeddings have no identity beyond their source text, so a
// hash key is sufficient.
type Cached struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with a cache of the given size.
func NewCached(inner Provider, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Dimension returns the inner provider's dimension.
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Embed returns the cached vector when the text was seen before.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := textKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len returns the number of cached embeddings.
func (c *Cached) Len() int { return c.cache.Len() }

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
