// Package graph maintains the typed knowledge graph (developers, skills,
// repositories, career paths) and answers bounded traversal queries.
package graph

import (
	"context"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// Node is a typed graph node. The id is unique and the kind is immutable
// after creation.
type Node struct {
	ID         string            `json:"id"`
	Kind       domain.NodeKind   `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Edge is a directed labeled edge with a weight in [0,1]. Multiple edges
// between the same pair with different relations are permitted; self-loops
// are not.
type Edge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// Reached is a node discovered by a traversal: hop distance at first reach
// and relevance = product of traversed edge weights along the best
// shortest reaching path.
type Reached struct {
	ID        string  `json:"id"`
	Hops      int     `json:"hops"`
	Relevance float64 `json:"relevance"`
}

// Stats summarises graph size for observability endpoints.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Store is the knowledge-graph contract. All mutations are atomic: either
// fully applied or without effect, and never observable half-done by a
// concurrent reader.
type Store interface {
	// AddNode inserts a node; fails with domain.ErrDuplicateNode if the
	// id already exists.
	AddNode(ctx context.Context, n Node) error

	// AddEdge inserts an edge; fails with domain.ErrDanglingReference if
	// either endpoint is missing. Re-adding the same (source, target,
	// relation) replaces the weight.
	AddEdge(ctx context.Context, e Edge) error

	// Neighbors runs a breadth-first traversal from the seed ids up to
	// maxHops edge traversals, optionally restricted to the given
	// relations. Seeds absent from the graph are skipped. Cycle-safe and
	// deterministic for a given graph state.
	Neighbors(ctx context.Context, seedIDs []string, maxHops int, relations []string) ([]Reached, error)

	// RemoveNode removes the node and every edge referencing it. Idempotent.
	RemoveNode(ctx context.Context, id string) error

	// GetNode returns a node by id.
	GetNode(ctx context.Context, id string) (Node, bool, error)

	// Stats returns node and edge counts.
	Stats(ctx context.Context) (Stats, error)
}
