package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// MemoryIndex is an in-process Index. Each collection carries its own
// reader-writer lock so concurrent searches never block each other and
// ingestion writers are not starved by readers.
type MemoryIndex struct {
	mu          sync.RWMutex // guards the collections map itself
	collections map[domain.Collection]*memCollection
}

type memCollection struct {
	mu      sync.RWMutex
	dim     int
	records map[string]VectorRecord
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[domain.Collection]*memCollection)}
}

// CreateCollection configures a collection with a fixed dimension.
func (m *MemoryIndex) CreateCollection(_ context.Context, c domain.Collection, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("semantic: collection %q: %w: dim %d", c, domain.ErrInvalidDimension, dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.collections[c]; ok {
		if existing.dim != dim {
			return fmt.Errorf("semantic: collection %q already configured with dim %d: %w", c, existing.dim, domain.ErrInvalidDimension)
		}
		return nil
	}
	m.collections[c] = &memCollection{dim: dim, records: make(map[string]VectorRecord)}
	return nil
}

func (m *MemoryIndex) collection(c domain.Collection) (*memCollection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[c]
	if !ok {
		return nil, fmt.Errorf("semantic: %w: %q", domain.ErrUnknownCollection, c)
	}
	return col, nil
}

// Upsert inserts or fully replaces a record by id.
func (m *MemoryIndex) Upsert(_ context.Context, c domain.Collection, rec VectorRecord) error {
	col, err := m.collection(c)
	if err != nil {
		return err
	}
	if len(rec.Vector) != col.dim {
		return fmt.Errorf("semantic: collection %q expects dim %d, got %d: %w",
			c, col.dim, len(rec.Vector), domain.ErrInvalidDimension)
	}
	stored := VectorRecord{
		ID:      rec.ID,
		Vector:  append([]float32(nil), rec.Vector...),
		Payload: clonePayload(rec.Payload),
	}
	col.mu.Lock()
	col.records[rec.ID] = stored
	col.mu.Unlock()
	return nil
}

// Search returns up to k hits by descending cosine similarity, ties broken
// by ascending id for determinism.
func (m *MemoryIndex) Search(_ context.Context, c domain.Collection, vector []float32, k int, filter map[string]string) ([]SearchResult, error) {
	col, err := m.collection(c)
	if err != nil {
		return nil, err
	}
	if len(vector) != col.dim {
		return nil, fmt.Errorf("semantic: query dim %d for collection %q (dim %d): %w",
			len(vector), c, col.dim, domain.ErrInvalidDimension)
	}
	if k <= 0 {
		return nil, nil
	}

	col.mu.RLock()
	hits := make([]SearchResult, 0, len(col.records))
	for _, rec := range col.records {
		if !payloadMatches(rec.Payload, filter) {
			continue
		}
		hits = append(hits, SearchResult{
			ID:      rec.ID,
			Score:   cosine(vector, rec.Vector),
			Payload: clonePayload(rec.Payload),
		})
	}
	col.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteCollection removes all records; the collection stays configured.
// Deleting a collection that was never created is a no-op.
func (m *MemoryIndex) DeleteCollection(_ context.Context, c domain.Collection) error {
	m.mu.RLock()
	col, ok := m.collections[c]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	col.mu.Lock()
	col.records = make(map[string]VectorRecord)
	col.mu.Unlock()
	return nil
}

// Count returns the number of records in a collection.
func (m *MemoryIndex) Count(_ context.Context, c domain.Collection) (int, error) {
	col, err := m.collection(c)
	if err != nil {
		return 0, err
	}
	col.mu.RLock()
	defer col.mu.RUnlock()
	return len(col.records), nil
}

// cosine returns the cosine similarity clamped to [0,1]. A zero vector on
// either side yields 0.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return float32(sim)
}

// payloadMatches reports whether every filter key/value matches the payload
// exactly. Non-string payload values are compared via their fmt rendering.
func payloadMatches(payload map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if s, isStr := got.(string); isStr {
			if s != want {
				return false
			}
			continue
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
