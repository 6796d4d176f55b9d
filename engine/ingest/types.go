// Package ingest runs entity records through validation, transformation,
// embedding, and storage, writing each record to both the vector index and
// the knowledge graph. Records arrive over NATS or straight from the
// collector binaries.
package ingest

import "github.com/newdataengg/dev-career-compass/engine/domain"

// KindJob marks job postings. They are vector-only: searchable in the
// jobs collection but never materialised as graph nodes.
const KindJob = domain.NodeKind("job")

// RelationRef declares an outgoing edge of an entity being ingested.
type RelationRef struct {
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// EntityRecord is the wire format for one entity to ingest.
type EntityRecord struct {
	Kind        domain.NodeKind   `json:"kind"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Relations   []RelationRef     `json:"relations,omitempty"`
}

// Doc is a validated, transformed record ready for embedding.
type Doc struct {
	Record     EntityRecord
	Collection domain.Collection
	Text       string
}

// EmbeddedDoc carries the document with its embedding vector.
type EmbeddedDoc struct {
	Doc
	Vector []float32
}
