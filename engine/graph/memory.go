package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// MemoryStore is an in-process Store guarded by a single reader-writer
// lock: traversals run concurrently, mutations are exclusive and atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	out   map[string][]Edge // adjacency by source id
}

// NewMemoryStore creates an empty graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]Node),
		out:   make(map[string][]Edge),
	}
}

// AddNode inserts a node; duplicate ids are rejected.
func (s *MemoryStore) AddNode(_ context.Context, n Node) error {
	if err := domain.ValidateNodeID(n.ID); err != nil {
		return fmt.Errorf("graph: add node: %w", err)
	}
	if err := domain.ValidateNodeKind(n.Kind); err != nil {
		return fmt.Errorf("graph: add node %q: %w", n.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.ID]; ok {
		return fmt.Errorf("graph: %w: %q", domain.ErrDuplicateNode, n.ID)
	}
	if n.Attributes != nil {
		attrs := make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			attrs[k] = v
		}
		n.Attributes = attrs
	}
	s.nodes[n.ID] = n
	return nil
}

// AddEdge inserts a directed edge. Both endpoints must exist; the insert
// is atomic, so a failed check leaves no partial edge. Re-adding the same
// (source, target, relation) replaces the weight.
func (s *MemoryStore) AddEdge(_ context.Context, e Edge) error {
	if err := domain.ValidateEdge(e.Source, e.Target, e.Weight); err != nil {
		return fmt.Errorf("graph: add edge: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[e.Source]; !ok {
		return fmt.Errorf("graph: %w: source %q", domain.ErrDanglingReference, e.Source)
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return fmt.Errorf("graph: %w: target %q", domain.ErrDanglingReference, e.Target)
	}
	edges := s.out[e.Source]
	for i, existing := range edges {
		if existing.Target == e.Target && existing.Relation == e.Relation {
			edges[i].Weight = e.Weight
			return nil
		}
	}
	s.out[e.Source] = append(edges, e)
	return nil
}

// Neighbors runs a level-synchronous BFS from the seed set. A node already
// reached at a shorter hop distance is never revisited; at equal hop
// distance the higher relevance wins. Results are ordered by descending
// relevance, then ascending hops, then ascending id.
func (s *MemoryStore) Neighbors(_ context.Context, seedIDs []string, maxHops int, relations []string) ([]Reached, error) {
	if maxHops < 0 {
		maxHops = 0
	}
	var relSet map[string]bool
	if len(relations) > 0 {
		relSet = make(map[string]bool, len(relations))
		for _, r := range relations {
			relSet[r] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type reach struct {
		hops      int
		relevance float64
	}
	best := make(map[string]reach)
	var frontier []string
	for _, id := range seedIDs {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		if _, seen := best[id]; seen {
			continue
		}
		best[id] = reach{hops: 0, relevance: 1.0}
		frontier = append(frontier, id)
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		// Expand the whole level before moving on so equal-hop relevance
		// comparisons see finalized values.
		var next []string
		for _, u := range frontier {
			for _, e := range s.out[u] {
				if relSet != nil && !relSet[e.Relation] {
					continue
				}
				cand := best[u].relevance * e.Weight
				prev, seen := best[e.Target]
				switch {
				case !seen:
					best[e.Target] = reach{hops: hop + 1, relevance: cand}
					next = append(next, e.Target)
				case prev.hops == hop+1 && cand > prev.relevance:
					best[e.Target] = reach{hops: hop + 1, relevance: cand}
				}
			}
		}
		frontier = next
	}

	out := make([]Reached, 0, len(best))
	for id, r := range best {
		out = append(out, Reached{ID: id, Hops: r.hops, Relevance: r.relevance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		if out[i].Hops != out[j].Hops {
			return out[i].Hops < out[j].Hops
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RemoveNode removes the node and cascades to every edge referencing it.
func (s *MemoryStore) RemoveNode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	delete(s.out, id)
	for src, edges := range s.out {
		kept := edges[:0]
		for _, e := range edges {
			if e.Target != id {
				kept = append(kept, e)
			}
		}
		s.out[src] = kept
	}
	return nil
}

// GetNode returns a node by id.
func (s *MemoryStore) GetNode(_ context.Context, id string) (Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok, nil
}

// Stats returns node and edge counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := 0
	for _, list := range s.out {
		edges += len(list)
	}
	return Stats{Nodes: len(s.nodes), Edges: edges}, nil
}
