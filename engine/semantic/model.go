// Package semantic owns the vector index: storage and similarity retrieval
// of embedding records across named collections. Two implementations are
// provided, an in-memory index and a Qdrant-backed one.
package semantic

import (
	"context"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// VectorRecord is a single stored vector with payload metadata.
// Records are immutable once written except for full replacement by id.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload map[string]any // name, category, node_id, ...
}

// SearchResult is a single similarity hit, score in [0,1].
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Index is the vector index contract consumed by fusion and ingest.
type Index interface {
	// CreateCollection configures a collection with a fixed dimension.
	// Creating an existing collection with the same dimension is a no-op.
	CreateCollection(ctx context.Context, c domain.Collection, dim int) error

	// Upsert inserts or fully replaces a record by id. Fails with
	// domain.ErrInvalidDimension on vector length mismatch and
	// domain.ErrUnknownCollection if the collection was never created.
	Upsert(ctx context.Context, c domain.Collection, rec VectorRecord) error

	// Search returns up to k records ranked by descending cosine
	// similarity, ties broken by ascending id. The optional filter
	// restricts candidates to payloads matching every key/value exactly.
	// An empty collection yields an empty result, not an error.
	Search(ctx context.Context, c domain.Collection, vector []float32, k int, filter map[string]string) ([]SearchResult, error)

	// DeleteCollection removes all records in a collection. Idempotent.
	DeleteCollection(ctx context.Context, c domain.Collection) error
}
