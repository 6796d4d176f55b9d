// Package fusion fans a query out across the vector collections and the
// knowledge graph and merges the results into one ranked context bundle.
package fusion

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/graph"
	"github.com/newdataengg/dev-career-compass/engine/semantic"
	"github.com/newdataengg/dev-career-compass/pkg/fn"
	"github.com/newdataengg/dev-career-compass/pkg/metrics"
)

const tracerName = "dev-career-compass/engine/fusion"

// Searcher abstracts vector-index search.
type Searcher interface {
	Search(ctx context.Context, c domain.Collection, vector []float32, k int, filter map[string]string) ([]semantic.SearchResult, error)
}

// Traverser abstracts the bounded graph traversal.
type Traverser interface {
	Neighbors(ctx context.Context, seedIDs []string, maxHops int, relations []string) ([]graph.Reached, error)
}

// Options configures retrieval fan-out and merge behaviour.
type Options struct {
	Collections    []domain.Collection
	KPerCollection int           // vector hits requested per collection
	SeedCount      int           // top vector hits used as traversal seeds
	MaxHops        int           // graph traversal bound
	VectorCap      int           // max vector hits kept in the bundle
	GraphCap       int           // max graph hits kept in the bundle
	Relations      []string      // optional traversal relation filter
	SearchTimeout  time.Duration // per retrieval call
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Collections:    domain.AllCollections,
		KPerCollection: 5,
		SeedCount:      3,
		MaxHops:        2,
		VectorCap:      10,
		GraphCap:       10,
		SearchTimeout:  5 * time.Second,
	}
}

// VectorHit is a vector-index contribution to the bundle.
type VectorHit struct {
	ID         string            `json:"id"`
	Score      float32           `json:"score"`
	Collection domain.Collection `json:"collection"`
	Payload    map[string]any    `json:"payload,omitempty"`
}

// GraphHit is a graph contribution: score = relevance / (1 + hops), so
// distant nodes are penalized.
type GraphHit struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Relevance float64 `json:"relevance"`
	Hops      int     `json:"hops"`
}

// ContextBundle is the merged retrieval result for one query. Both lists
// are ordered by descending score and independently capped; the lists stay
// tagged by origin and are never cross-normalized.
type ContextBundle struct {
	VectorHits []VectorHit `json:"vector_hits"`
	GraphHits  []GraphHit  `json:"graph_hits"`
}

// Empty reports whether retrieval produced nothing at all.
func (b *ContextBundle) Empty() bool {
	return len(b.VectorHits) == 0 && len(b.GraphHits) == 0
}

// Engine is the retrieval fusion engine.
type Engine struct {
	search Searcher
	graph  Traverser
	opts   Options
	logger *slog.Logger

	searchErrors *metrics.Counter
	duration     *metrics.Histogram
}

// New creates a fusion engine. reg may be nil to disable metrics.
func New(search Searcher, traverser Traverser, opts Options, reg *metrics.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{search: search, graph: traverser, opts: opts, logger: logger}
	if reg != nil {
		e.searchErrors = reg.Counter("fusion_search_errors_total", "Vector searches that failed and were skipped")
		e.duration = reg.Histogram("fusion_retrieve_seconds", "End-to-end retrieval duration", nil)
	}
	return e
}

// Retrieve fans out vector searches across all configured collections
// concurrently, derives a seed set from the top hits, runs one graph
// traversal, and merges everything into a bundle. Partial failures are
// absorbed: a failing collection contributes nothing, a failing traversal
// yields empty graph hits. Retrieve itself never fails; an empty bundle is
// a valid result.
func (e *Engine) Retrieve(ctx context.Context, queryVector []float32, filter map[string]string) *ContextBundle {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fusion.retrieve")
	defer span.End()
	start := time.Now()
	defer func() {
		if e.duration != nil {
			e.duration.Since(start)
		}
	}()

	vectorHits := e.searchAll(ctx, queryVector, filter)

	// All searches complete (or time out) before traversal begins:
	// the traversal seeds depend on the vector hits.
	graphHits := e.traverse(ctx, vectorHits)

	return &ContextBundle{VectorHits: vectorHits, GraphHits: graphHits}
}

// searchAll queries every collection concurrently and merges the hits into
// one list, ordered by descending score with (collection, id) tie-breaks,
// capped at VectorCap.
func (e *Engine) searchAll(ctx context.Context, queryVector []float32, filter map[string]string) []VectorHit {
	type colHits struct {
		collection domain.Collection
		hits       []semantic.SearchResult
	}

	results := fn.ParMapResult(e.opts.Collections, 0, func(c domain.Collection) fn.Result[colHits] {
		searchCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
		defer cancel()
		hits, err := e.search.Search(searchCtx, c, queryVector, e.opts.KPerCollection, filter)
		if err != nil {
			return fn.Errf[colHits]("search %s: %w", c, err)
		}
		return fn.Ok(colHits{collection: c, hits: hits})
	})

	var merged []VectorHit
	for i, r := range results {
		ch, err := r.Unwrap()
		if err != nil {
			// One collection failing must not sink the query.
			e.logger.Warn("fusion: collection search failed, skipping",
				"collection", e.opts.Collections[i], "err", err)
			if e.searchErrors != nil {
				e.searchErrors.Inc()
			}
			continue
		}
		for _, h := range ch.hits {
			merged = append(merged, VectorHit{
				ID:         h.ID,
				Score:      h.Score,
				Collection: ch.collection,
				Payload:    h.Payload,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Collection != merged[j].Collection {
			return merged[i].Collection < merged[j].Collection
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > e.opts.VectorCap {
		merged = merged[:e.opts.VectorCap]
	}
	return merged
}

// traverse derives graph seeds from the top vector hits and runs one
// bounded traversal. No seeds or a failing traversal yields nil.
func (e *Engine) traverse(ctx context.Context, vectorHits []VectorHit) []GraphHit {
	seeds := seedIDs(vectorHits, e.opts.SeedCount)
	if len(seeds) == 0 || e.graph == nil {
		return nil
	}

	travCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	reached, err := e.graph.Neighbors(travCtx, seeds, e.opts.MaxHops, e.opts.Relations)
	if err != nil {
		e.logger.Warn("fusion: graph traversal failed, continuing without", "err", err)
		return nil
	}

	hits := make([]GraphHit, len(reached))
	for i, r := range reached {
		hits[i] = GraphHit{
			ID:        r.ID,
			Score:     r.Relevance / float64(1+r.Hops),
			Relevance: r.Relevance,
			Hops:      r.Hops,
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > e.opts.GraphCap {
		hits = hits[:e.opts.GraphCap]
	}
	return hits
}

// seedIDs maps the top vector hits to graph node ids via the node_id
// payload key, falling back to the record id.
func seedIDs(hits []VectorHit, count int) []string {
	if count > len(hits) {
		count = len(hits)
	}
	seen := make(map[string]bool, count)
	var seeds []string
	for _, h := range hits[:count] {
		id := h.ID
		if nodeID, ok := h.Payload["node_id"].(string); ok && nodeID != "" {
			id = nodeID
		}
		if !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
	}
	return seeds
}
